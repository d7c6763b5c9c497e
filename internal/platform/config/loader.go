package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"leaf-diagnosis-server/internal/platform/errors"
)

const (
	DefaultPath = "config.yaml"

	EnvConfigPath    = "LEAF_CONFIG"
	EnvHTTPPort      = "LEAF_HTTP_PORT"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Loader reads a YAML file on top of DefaultConfig and applies environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads .env and the default config path.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file; a pinned file must exist.
func (l *Loader) WithPath(path string) *Loader {
	l.path = strings.TrimSpace(path)
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	// Path is empty when no file was found and only defaults apply.
	Path string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	path := l.path
	required := path != ""
	if path == "" {
		if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
			path, required = env, true
		} else {
			path = DefaultPath
		}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.load", fmt.Sprintf("parse %s", path), err)
		}
	case os.IsNotExist(err) && !required:
		path = ""
	default:
		return nil, errors.Wrap(errors.KindConfig, "config.load", fmt.Sprintf("read %s", path), err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIKey)); v != "" {
		cfg.Advisor.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIBaseURL)); v != "" {
		cfg.Advisor.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHTTPPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.KindConfig, "config.env", EnvHTTPPort+" is not a number", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}
	if cfg.Pipeline.InputSize <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "pipeline.input_size must be positive")
	}
	if strings.TrimSpace(cfg.Pipeline.TargetSpecies) == "" {
		return errors.New(errors.KindConfig, "config.validate", "pipeline.target_species is required")
	}
	if cfg.Web.MaxUploadSize <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "web.max_upload_size must be positive")
	}
	if cfg.Oracles.Timeout <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "oracles.timeout must be positive")
	}
	oracles := map[string]OracleConfig{
		"disease":      cfg.Oracles.Disease,
		"segmentation": cfg.Oracles.Segmentation,
		"severity":     cfg.Oracles.Severity,
	}
	for name, oc := range oracles {
		u, err := url.Parse(oc.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("oracles.%s.url %q is not an absolute URL", name, oc.URL))
		}
		if strings.TrimSpace(oc.ModelName) == "" {
			return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("oracles.%s.model_name is required", name))
		}
	}
	if cfg.Advisor.Timeout <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "advisor.timeout must be positive")
	}
	switch strings.ToLower(cfg.Advisor.Cache.Driver) {
	case "", "none", "memory", "redis":
	default:
		return errors.New(errors.KindConfig, "config.validate", fmt.Sprintf("unsupported advisor cache driver %q", cfg.Advisor.Cache.Driver))
	}
	return nil
}

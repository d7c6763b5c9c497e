package config

import (
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Web           WebConfig           `yaml:"web" mapstructure:"web"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Oracles       OraclesConfig       `yaml:"oracles" mapstructure:"oracles"`
	Advisor       AdvisorConfig       `yaml:"advisor" mapstructure:"advisor"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" mapstructure:"ip"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ServiceName     string        `yaml:"service_name" mapstructure:"service_name"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	StaticDir     string         `yaml:"static_dir" mapstructure:"static_dir"`
	UploadDir     string         `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadSize int64          `yaml:"max_upload_size" mapstructure:"max_upload_size"`
	CORSOrigins   []string       `yaml:"cors_origins" mapstructure:"cors_origins"`
	Security      SecurityConfig `yaml:"security" mapstructure:"security"`
}

// SecurityConfig bounds what an uploaded image may look like before decoding.
type SecurityConfig struct {
	MaxPixels      int64    `yaml:"max_pixels" mapstructure:"max_pixels"`
	MaxWidth       int      `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight      int      `yaml:"max_height" mapstructure:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats" mapstructure:"allowed_formats"`
}

type PipelineConfig struct {
	TargetSpecies string       `yaml:"target_species" mapstructure:"target_species"`
	InputSize     int          `yaml:"input_size" mapstructure:"input_size"`
	Region        RegionConfig `yaml:"region" mapstructure:"region"`
}

// RegionConfig controls the confidence jitter of the region-analysis strategy.
type RegionConfig struct {
	Jitter bool  `yaml:"jitter" mapstructure:"jitter"`
	Seed   int64 `yaml:"seed" mapstructure:"seed"`
}

type OraclesConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Disease      OracleConfig  `yaml:"disease" mapstructure:"disease"`
	Segmentation OracleConfig  `yaml:"segmentation" mapstructure:"segmentation"`
	Severity     OracleConfig  `yaml:"severity" mapstructure:"severity"`
}

// OracleConfig points at one model behind a TF-Serving compatible REST endpoint.
type OracleConfig struct {
	URL       string `yaml:"url" mapstructure:"url"`
	ModelName string `yaml:"model_name" mapstructure:"model_name"`
}

type AdvisorConfig struct {
	ModelName   string        `yaml:"model_name" mapstructure:"model_name"`
	BaseURL     string        `yaml:"url" mapstructure:"url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Cache       CacheConfig   `yaml:"cache" mapstructure:"cache"`
}

type CacheConfig struct {
	Driver string        `yaml:"driver" mapstructure:"driver"`
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Redis  RedisConfig   `yaml:"redis,omitempty" mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

type StorageConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	HistoryEnabled bool   `yaml:"history_enabled" mapstructure:"history_enabled"`
}

type ObservabilityConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"`
}

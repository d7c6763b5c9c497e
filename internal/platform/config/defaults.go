package config

import "time"

const defaultMaxUploadSize = 20 << 20

// DefaultConfig returns the configuration used when no file overrides a field.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            5000,
			ServiceName:     "tea-disease-pipeline",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			StaticDir:     "web",
			UploadDir:     "data/uploads",
			MaxUploadSize: defaultMaxUploadSize,
			CORSOrigins:   []string{"*"},
			Security: SecurityConfig{
				MaxPixels:      40_000_000,
				MaxWidth:       8192,
				MaxHeight:      8192,
				AllowedFormats: []string{"jpeg", "png", "webp", "bmp", "tiff", "gif"},
			},
		},
		Pipeline: PipelineConfig{
			TargetSpecies: "tea",
			InputSize:     224,
			Region: RegionConfig{
				Jitter: true,
			},
		},
		Oracles: OraclesConfig{
			Timeout: 20 * time.Second,
			Disease: OracleConfig{
				URL:       "http://localhost:8501",
				ModelName: "tea_disease_classifier",
			},
			Segmentation: OracleConfig{
				URL:       "http://localhost:8501",
				ModelName: "tea_disease_segmentation",
			},
			Severity: OracleConfig{
				URL:       "http://localhost:8501",
				ModelName: "tea_severity",
			},
		},
		Advisor: AdvisorConfig{
			ModelName:   "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     30 * time.Second,
			MaxTokens:   800,
			Temperature: 0.4,
			Cache: CacheConfig{
				Driver: "memory",
				TTL:    24 * time.Hour,
				Redis: RedisConfig{
					Addr:   "127.0.0.1:6379",
					Prefix: "leaf:advice:",
				},
			},
		},
		Storage: StorageConfig{
			Path:           "data/diagnosis.db",
			HistoryEnabled: true,
		},
		Observability: ObservabilityConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
		},
	}
}

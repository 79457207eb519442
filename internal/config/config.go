// Package config loads the service's configuration from environment
// variables, applying the defaults and validation rules of spec.md §6.
package config

import (
	"fmt"
	"time"

	"github.com/dittostore/dittostore/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the fully-resolved, validated configuration.
type Config struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
	Host   string `mapstructure:"host" validate:"required"`
	Port   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`

	DataDir string `mapstructure:"data_dir" validate:"required"`

	// Parsed separately via bytesize, so these accept both plain byte
	// counts and human-readable forms ("1Gi", "100MB").
	DefaultMaxRepoSize uint64 `mapstructure:"-" validate:"required,gt=0"`
	MaxUploadSize      uint64 `mapstructure:"-" validate:"required,gt=0"`

	SnapshotIntervalSecs  int `mapstructure:"snapshot_interval_secs" validate:"required,gt=0"`
	TTLSweepIntervalSecs  int `mapstructure:"ttl_sweep_interval_secs" validate:"required,gt=0"`
	CommandTimeoutSecs    int `mapstructure:"command_timeout_secs" validate:"required,gt=0"`
	CommandMaxOutputBytes int `mapstructure:"command_max_output_bytes" validate:"required,gt=0"`
	CacheMaxBytes         int `mapstructure:"cache_max_bytes" validate:"required,gt=0"`
	MaxConcurrentCommands int `mapstructure:"max_concurrent_commands" validate:"required,gt=0"`

	LogLevel           string `mapstructure:"log_level" validate:"required"`
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins" validate:"required"`
}

// SnapshotInterval returns SnapshotIntervalSecs as a time.Duration.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSecs) * time.Second
}

// TTLSweepInterval returns TTLSweepIntervalSecs as a time.Duration.
func (c Config) TTLSweepInterval() time.Duration {
	return time.Duration(c.TTLSweepIntervalSecs) * time.Second
}

// CommandTimeout returns CommandTimeoutSecs as a time.Duration.
func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSecs) * time.Second
}

const (
	defaultHost                  = "0.0.0.0"
	defaultPort                  = 8080
	defaultDataDir                = "/data"
	defaultMaxRepoSize           = "1Gi"   // parsed via bytesize
	defaultMaxUploadSize         = "100Mi" // parsed via bytesize
	defaultSnapshotIntervalSecs  = 300
	defaultTTLSweepIntervalSecs  = 60
	defaultCommandTimeoutSecs    = 30
	defaultCommandMaxOutputBytes = 10 << 20 // 10 MiB
	defaultCacheMaxBytes         = 256 << 20
	defaultMaxConcurrentCommands = 10
	defaultLogLevel              = "info"
	defaultCORSAllowedOrigins    = "*"
)

// envBindings maps each mapstructure key to the literal (non-prefixed)
// environment variable name spec.md §6 requires.
var envBindings = map[string]string{
	"api_key":                  "API_KEY",
	"host":                     "HOST",
	"port":                     "PORT",
	"data_dir":                 "DATA_DIR",
	"default_max_repo_size":    "DEFAULT_MAX_REPO_SIZE",
	"max_upload_size":          "MAX_UPLOAD_SIZE",
	"snapshot_interval_secs":   "SNAPSHOT_INTERVAL_SECS",
	"ttl_sweep_interval_secs":  "TTL_SWEEP_INTERVAL_SECS",
	"command_timeout_secs":     "COMMAND_TIMEOUT_SECS",
	"command_max_output_bytes": "COMMAND_MAX_OUTPUT_BYTES",
	"cache_max_bytes":          "CACHE_MAX_BYTES",
	"max_concurrent_commands":  "MAX_CONCURRENT_COMMANDS",
	"log_level":                "LOG_LEVEL",
	"cors_allowed_origins":     "CORS_ALLOWED_ORIGINS",
}

// Load reads configuration from the environment, applies defaults, and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("host", defaultHost)
	v.SetDefault("port", defaultPort)
	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("default_max_repo_size", defaultMaxRepoSize)
	v.SetDefault("max_upload_size", defaultMaxUploadSize)
	v.SetDefault("snapshot_interval_secs", defaultSnapshotIntervalSecs)
	v.SetDefault("ttl_sweep_interval_secs", defaultTTLSweepIntervalSecs)
	v.SetDefault("command_timeout_secs", defaultCommandTimeoutSecs)
	v.SetDefault("command_max_output_bytes", defaultCommandMaxOutputBytes)
	v.SetDefault("cache_max_bytes", defaultCacheMaxBytes)
	v.SetDefault("max_concurrent_commands", defaultMaxConcurrentCommands)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("cors_allowed_origins", defaultCORSAllowedOrigins)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	maxRepoSize, err := bytesize.ParseByteSize(v.GetString("default_max_repo_size"))
	if err != nil {
		return nil, fmt.Errorf("parse default_max_repo_size: %w", err)
	}
	cfg.DefaultMaxRepoSize = maxRepoSize.Uint64()

	maxUploadSize, err := bytesize.ParseByteSize(v.GetString("max_upload_size"))
	if err != nil {
		return nil, fmt.Errorf("parse max_upload_size: %w", err)
	}
	cfg.MaxUploadSize = maxUploadSize.Uint64()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

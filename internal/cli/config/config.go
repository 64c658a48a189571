// Package config loads schemalens.yml and environment overrides for the CLI
// and the service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the SchemaLens configuration
type Config struct {
	Repository string         `mapstructure:"repository"`
	Output     OutputConfig   `mapstructure:"output"`
	Staging    StagingConfig  `mapstructure:"staging"`
	Analysis   AnalysisConfig `mapstructure:"analysis"`
	Server     ServerConfig   `mapstructure:"server"`
	Ledger     LedgerConfig   `mapstructure:"ledger"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Database   DatabaseConfig `mapstructure:"database"`
	S3         S3Config       `mapstructure:"s3"`
}

// OutputConfig controls where and how schema documents are written
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
}

// StagingConfig controls the staged entity copies
type StagingConfig struct {
	Dir     string `mapstructure:"dir"`
	Enabled bool   `mapstructure:"enabled"`
}

// AnalysisConfig tunes the scan and resolution pipeline
type AnalysisConfig struct {
	// Concurrency bounds scan and resolution workers. 0 uses all CPUs.
	Concurrency int `mapstructure:"concurrency"`
	// MaxFileSize caps classification reads in bytes. 0 uses the scanner default.
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// ServerConfig represents the analysis service configuration
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

// LedgerConfig locates the run history database
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the served-document cache. An empty Redis address
// selects the in-memory cache.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig configures the optional Postgres document mirror
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// S3Config configures the optional S3-compatible document mirror
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Load loads the configuration from schemalens.yml or schemalens.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("repository", "")
	v.SetDefault("output.dir", "schemas")
	v.SetDefault("output.compress", false)
	v.SetDefault("staging.dir", "staging")
	v.SetDefault("staging.enabled", false)
	v.SetDefault("analysis.concurrency", 0)
	v.SetDefault("analysis.max_file_size", 0)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("ledger.path", "schemalens.db")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("database.url", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.bucket", "schema-documents")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.use_ssl", true)

	// Set config name and paths
	v.SetConfigName("schemalens")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support (SCHEMALENS_SERVER_PORT etc.)
	v.SetEnvPrefix("SCHEMALENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the Postgres mirror URL from config or environment
func GetDatabaseURL() string {
	// First check environment variable
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	// Then check config file
	cfg, err := Load()
	if err != nil {
		return ""
	}

	return cfg.Database.URL
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if cfg.Staging.Dir == "" {
		return fmt.Errorf("staging.dir must not be empty")
	}
	if cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger.path must not be empty")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Server.Workers < 0 {
		return fmt.Errorf("server.workers must not be negative, got: %d", cfg.Server.Workers)
	}
	if cfg.Server.QueueSize < 0 {
		return fmt.Errorf("server.queue_size must not be negative, got: %d", cfg.Server.QueueSize)
	}
	if cfg.Analysis.Concurrency < 0 {
		return fmt.Errorf("analysis.concurrency must not be negative, got: %d", cfg.Analysis.Concurrency)
	}
	if cfg.Analysis.MaxFileSize < 0 {
		return fmt.Errorf("analysis.max_file_size must not be negative, got: %d", cfg.Analysis.MaxFileSize)
	}
	return nil
}

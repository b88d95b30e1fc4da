// Package config loads the process configuration from config/helphub.yaml
// with environment overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/helphub/platform/pkg/logger"
)

// DatabaseConfig configures the relational backend. An empty DSN disables
// it and the runtime picks an in-memory backend instead.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// SnapshotConfig configures the file-snapshotted backend. An empty path
// means state is transient.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the optional leaderboard cache. An empty address
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// OTPConfig tunes one-time code issuance.
type OTPConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval string        `yaml:"cleanup_interval"` // cron spec
}

// Config is the full process configuration.
type Config struct {
	Database DatabaseConfig       `yaml:"database"`
	Snapshot SnapshotConfig       `yaml:"snapshot"`
	Redis    RedisConfig          `yaml:"redis"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	OTP      OTPConfig            `yaml:"otp"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is present: a
// transient in-memory backend and info-level text logging.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "postgres"},
		OTP: OTPConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: "@every 10m",
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

// Load reads config/helphub.yaml, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "helphub.yaml"))
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.OTP.TTL <= 0 {
		cfg.OTP.TTL = 5 * time.Minute
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

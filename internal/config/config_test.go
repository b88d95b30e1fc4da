package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, "@every 10m", cfg.OTP.CleanupInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromPathParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helphub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://localhost/helphub?sslmode=disable
snapshot:
  path: /var/lib/helphub/data.json
redis:
  addr: localhost:6379
  db: 2
otp:
  ttl: 2m
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/helphub?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "/var/lib/helphub/data.json", cfg.Snapshot.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 2*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromPathRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helphub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: ["), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://db/override")
	t.Setenv("SNAPSHOT_PATH", "/tmp/override.json")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("METRICS_ADDR", ":9091")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/override", cfg.Database.DSN)
	assert.Equal(t, "/tmp/override.json", cfg.Snapshot.Path)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, ":9091", cfg.Metrics.Addr)
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

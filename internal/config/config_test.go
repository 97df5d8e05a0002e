package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgrid-tools/devicehub/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "devicehub", cfg.Service.Name)
	assert.Equal(t, "8080", cfg.Service.HTTPPort)
	assert.True(t, cfg.Service.Migrate)
	assert.Equal(t, "disk", cfg.Blob.Backend)
	assert.Equal(t, "postgres", cfg.Directory.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(5*1024*1024), cfg.Blob.MaxFileSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DEVICE_TTL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("BLOB_S3_BUCKET", "device-configs")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Service.HTTPPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.DeviceTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "s3", cfg.Blob.Backend)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Load()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Blob.Backend = "s3"
	cfg.Blob.S3Bucket = ""
	assert.Error(t, cfg.Validate(), "s3 backend requires a bucket")

	cfg = base()
	cfg.Blob.Backend = "tape"
	assert.Error(t, cfg.Validate(), "unknown blob backend")

	cfg = base()
	cfg.Directory.Backend = "ldap"
	cfg.Directory.LDAPBaseDN = ""
	assert.Error(t, cfg.Validate(), "ldap backend requires a base DN")

	cfg = base()
	cfg.Database.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	db := config.DatabaseConfig{
		Host: "localhost", Port: "5432", User: "postgres",
		Password: "secret", Database: "devicehub", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=devicehub sslmode=disable",
		db.DSN())
}

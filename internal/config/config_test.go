package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9000"
database:
  url: "postgres://localhost:5432/shopadmin"
jwt:
  secret_key: "test-secret"
  access_token_duration: 5m
session:
  init_timeout: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, time.Second, cfg.Session.InitTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 256, cfg.Audit.QueueSize)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: "postgres://localhost:5432/shopadmin"
jwt:
  secret_key: "file-secret"
log:
  level: debug
`)

	t.Setenv("SHOPADMIN_JWT__SECRET_KEY", "env-secret")
	t.Setenv("SHOPADMIN_LOG__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.SecretKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ValidatesRequiredKeys(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		path := writeConfigFile(t, `
jwt:
  secret_key: "test-secret"
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.url")
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		path := writeConfigFile(t, `
database:
  url: "postgres://localhost:5432/shopadmin"
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret_key")
	})
}

func TestDefault_SaneValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Session.InitTimeout)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, 587, cfg.Mailer.SMTPPort)
}

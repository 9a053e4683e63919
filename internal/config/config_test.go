package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("database url required", func(t *testing.T) {
		t.Setenv("VFX_DATABASE_URL", "")
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "database.url")
	})

	t.Run("defaults with env", func(t *testing.T) {
		t.Setenv("VFX_DATABASE_URL", "postgres://vfx@localhost/vfx")
		t.Setenv("VFX_SERVER_HTTP_ADDR", ":9090")

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "postgres://vfx@localhost/vfx", cfg.Database.URL)
		assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "vfx_change_feed", cfg.RabbitMQ.Queue)
		assert.Equal(t, 50, cfg.ChangeLog.DefaultLimit)
		assert.Equal(t, int32(4), cfg.Database.LockConns)
		assert.False(t, cfg.Development())
	})

	t.Run("config file", func(t *testing.T) {
		dir := t.TempDir()
		body := "app:\n  env: development\ndatabase:\n  url: postgres://file@localhost/vfx\nrabbitmq:\n  enabled: false\nchangelog:\n  default_limit: 20\n  max_limit: 100\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.True(t, cfg.Development())
		assert.False(t, cfg.RabbitMQ.Enabled)
		assert.Equal(t, 20, cfg.ChangeLog.DefaultLimit)
		assert.Equal(t, "postgres://file@localhost/vfx", cfg.Database.URL)
	})

	t.Run("lock pool required", func(t *testing.T) {
		t.Setenv("VFX_DATABASE_URL", "postgres://vfx@localhost/vfx")
		t.Setenv("VFX_DATABASE_LOCK_CONNS", "0")
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "database.lock_conns")
	})

	t.Run("bad limits", func(t *testing.T) {
		t.Setenv("VFX_DATABASE_URL", "postgres://vfx@localhost/vfx")
		t.Setenv("VFX_CHANGELOG_DEFAULT_LIMIT", "900")
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "changelog")
	})
}

func TestNewLogger(t *testing.T) {
	var cfg Config
	cfg.Log.Level = "debug"
	cfg.Log.Encoding = "console"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}

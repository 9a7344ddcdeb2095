package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "filesystem", cfg.Content.Type)
	assert.Equal(t, "memory", cfg.Directory.Type)
	assert.Equal(t, "anonymous", cfg.Auth.Type)
	assert.False(t, cfg.GC.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.GC.Interval)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
server:
  listen_address: ":9000"
  rate_limit:
    requests_per_second: 100
content:
  type: memory
directory:
  type: badger
  badger:
    path: /tmp/ditto-dir
  root_owner:
    - admin
auth:
  type: static
  tokens:
    secret-token:
      client: admin
      attributes:
        - ops
gc:
  enabled: true
  interval: 1h
  dry_run: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// levels normalize to uppercase
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	assert.Equal(t, uint(100), cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, uint(100), cfg.Server.RateLimit.Burst, "burst defaults to the sustained rate")
	assert.Equal(t, "memory", cfg.Content.Type)
	assert.Equal(t, "badger", cfg.Directory.Type)
	assert.Equal(t, []string{"admin"}, cfg.Directory.RootOwner)
	assert.Equal(t, "admin", cfg.Auth.Tokens["secret-token"].Client)
	assert.Equal(t, []string{"ops"}, cfg.Auth.Tokens["secret-token"].Attributes)
	assert.True(t, cfg.GC.Enabled)
	assert.Equal(t, time.Hour, cfg.GC.Interval)
	assert.True(t, cfg.GC.DryRun)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: verbose
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestValidateCustomRules(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg
	}

	t.Run("static auth requires tokens", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Type = "static"
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no tokens")
	})

	t.Run("s3 content requires bucket", func(t *testing.T) {
		cfg := base()
		cfg.Content.Type = "s3"
		cfg.Content.S3 = map[string]any{"region": "us-east-1"}
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket")
	})

	t.Run("badger directory requires path", func(t *testing.T) {
		cfg := base()
		cfg.Directory.Type = "badger"
		cfg.Directory.Badger = map[string]any{}
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path")
	})

	t.Run("empty root owner role", func(t *testing.T) {
		cfg := base()
		cfg.Directory.RootOwner = []string{"admin", ""}
		assert.Error(t, Validate(cfg))
	})

	t.Run("defaults validate clean", func(t *testing.T) {
		assert.NoError(t, Validate(base()))
	})
}

func TestCreateContentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := CreateContentStore(ctx, &ContentConfig{Type: "memory"})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("filesystem", func(t *testing.T) {
		store, err := CreateContentStore(ctx, &ContentConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": t.TempDir()},
		})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("filesystem without path", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{},
		})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{Type: "tape"})
		assert.Error(t, err)
	})
}

func TestCreateDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		dir, err := CreateDirectory(ctx, &DirectoryConfig{Type: "memory"})
		require.NoError(t, err)
		assert.NotNil(t, dir)
	})

	t.Run("badger in memory", func(t *testing.T) {
		dir, err := CreateDirectory(ctx, &DirectoryConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true},
		})
		require.NoError(t, err)
		assert.NotNil(t, dir)
	})

	t.Run("badger without path", func(t *testing.T) {
		_, err := CreateDirectory(ctx, &DirectoryConfig{
			Type:   "badger",
			Badger: map[string]any{},
		})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := CreateDirectory(ctx, &DirectoryConfig{Type: "etcd"})
		assert.Error(t, err)
	})
}

func TestCreateAuthManager(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		mgr, err := CreateAuthManager(&AuthConfig{Type: "anonymous"})
		require.NoError(t, err)
		assert.NotNil(t, mgr)
	})

	t.Run("static", func(t *testing.T) {
		mgr, err := CreateAuthManager(&AuthConfig{
			Type: "static",
			Tokens: map[string]TokenIdentity{
				"tok": {Client: "admin"},
			},
		})
		require.NoError(t, err)
		assert.NotNil(t, mgr)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := CreateAuthManager(&AuthConfig{Type: "oauth"})
		assert.Error(t, err)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir 切到临时目录，避免读到仓库里的 config.yaml
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "public/exPosts", cfg.Store.File.Dir)
	assert.Equal(t, "test_blogDB", cfg.Mongo.Database)
	assert.Equal(t, PolicyLongLived, cfg.Mongo.Policy)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9999")
	t.Setenv("MONGODB_URI", "mongodb://db.internal:27017")
	t.Setenv("STORE_BACKEND", BackendDocument)
	t.Setenv("MONGO_POLICY", PolicyPerRequest)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, BackendDocument, cfg.Store.Backend)
	assert.Equal(t, PolicyPerRequest, cfg.Mongo.Policy)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "store:\n  backend: redis\nredis:\n  addr: cache:6380\n  db: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "s3")

	_, err := Load()
	assert.ErrorContains(t, err, "store.backend")
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: "8080"},
		Store:    StoreConfig{Backend: BackendDocument},
		Mongo:    MongoConfig{Policy: "sometimes"},
		Database: DatabaseConfig{Driver: "sqlite"},
	}
	assert.ErrorContains(t, cfg.Validate(), "mongo.policy")
}

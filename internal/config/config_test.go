package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/gongzuo.db", cfg.Database.Path)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Empty(t, cfg.Admin.Password)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Equal(t, "gongzuo-exports", cfg.Storage.KeyPrefix)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GONGZUO_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("GONGZUO_ADMIN_PASSWORD", "secret")
	t.Setenv("GONGZUO_STORAGE_BUCKET", "my-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "secret", cfg.Admin.Password)
	assert.Equal(t, "my-bucket", cfg.Storage.Bucket)
}

func TestDotEnvFileFillsMissingVariables(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# comment\n"+
			"GONGZUO_DATABASE_PATH=\"from-dotenv.db\"\n"+
			"GONGZUO_ADMIN_USERNAME=boss\n",
	), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("GONGZUO_DATABASE_PATH")
		os.Unsetenv("GONGZUO_ADMIN_USERNAME")
	})

	// an already exported variable wins over the .env entry
	t.Setenv("GONGZUO_ADMIN_USERNAME", "exported")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
	assert.Equal(t, "exported", cfg.Admin.Username)
}

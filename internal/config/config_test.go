package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ".fls", cfg.Sync.Extension)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Len(t, cfg.Sync.Folders, 2)

	_, ok := cfg.Folder(FolderMod)
	assert.True(t, ok)
	_, ok = cfg.Folder("NOPE")
	assert.False(t, ok)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flashsync.toml")

	content := `
[auth]
client_id = "app-123"
tenant_id = "contoso"

[sync]
base_dir = "/srv/flashfiles"
batch_size = 10

[[sync.folders]]
key = "MOD"
share_url = "https://contoso-my.sharepoint.com/:f:/g/personal/u/abc"

[[sync.folders]]
key = "ORI"
share_url = "https://contoso-my.sharepoint.com/:f:/g/personal/u/def"

[state]
backend = "memory"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app-123", cfg.Auth.ClientID)
	assert.Equal(t, "contoso", cfg.Auth.TenantID)
	assert.Equal(t, "/srv/flashfiles", cfg.Sync.BaseDir)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, "memory", cfg.State.Backend)

	// Untouched values keep defaults.
	assert.Equal(t, ".fls", cfg.Sync.Extension)
	assert.Equal(t, 300, cfg.Sync.ContentTimeoutSeconds)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("FLASHSYNC_CLIENT_SECRET", "s3cret")
	t.Setenv("FLASHSYNC_MOD_FILE_URL", "https://example.com/mod")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.ClientSecret)

	mod, ok := cfg.Folder(FolderMod)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/mod", mod.ShareURL)

	ori, ok := cfg.Folder(FolderOri)
	require.True(t, ok)
	assert.Empty(t, ori.ShareURL)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.State.Backend)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no folders", func(c *Config) { c.Sync.Folders = nil }},
		{"empty folder key", func(c *Config) { c.Sync.Folders[0].Key = "" }},
		{"duplicate folder key", func(c *Config) { c.Sync.Folders[1].Key = FolderMod }},
		{"bad state backend", func(c *Config) { c.State.Backend = "etcd" }},
		{"bad catalog driver", func(c *Config) { c.Catalog.Driver = "oracle" }},
		{"zero batch size", func(c *Config) { c.Sync.BatchSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTimeoutAccessors(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.ContentTimeout(), cfg.MetadataTimeout())
	assert.Equal(t, cfg.BatchDelay().Seconds(), float64(cfg.Sync.BatchDelaySeconds))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, 8780, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Server.HeartbeatSeconds)
	assert.Equal(t, 120, cfg.Server.StreamTimeoutSeconds)
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.Equal(t, 90, cfg.Sources.TimePeriodDays)
	assert.Equal(t, 300, cfg.Sources.FetchTimeoutSeconds)
	assert.Equal(t, DefaultGitHubAPIURL, cfg.GitHub.APIURL)
	assert.Equal(t, DefaultSheetsAPIURL, cfg.Sheets.APIURL)
	assert.Equal(t, "Responses", cfg.Sheets.SheetName)
	assert.Equal(t, "teamtempo.db", cfg.Database.Path)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teamtempo.toml")
	content := `
[server]
port = 9000
stream_timeout_seconds = 30

[github]
owner = "tempohq"
repo = "teamtempo"

[cache]
ttl_seconds = 60
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.StreamTimeoutSeconds)
	assert.Equal(t, "tempohq", cfg.GitHub.Owner)
	assert.Equal(t, "teamtempo", cfg.GitHub.Repo)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)

	// Unset keys fall back to defaults
	assert.Equal(t, 15, cfg.Server.HeartbeatSeconds)
	assert.Equal(t, 90, cfg.Sources.TimePeriodDays)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	content := `
[server]
port = 1234
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "teamtempo.toml"), []byte(content), 0o644))
	t.Chdir(dir)

	t.Run("project file overrides defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 1234, cfg.Server.Port)
	})

	t.Run("env overrides project file", func(t *testing.T) {
		t.Setenv("TEMPO_SERVER_PORT", "9999")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
	})
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "15s", cfg.Server.HeartbeatInterval().String())
	assert.Equal(t, "2m0s", cfg.Server.StreamTimeout().String())
	assert.Equal(t, "1h0m0s", cfg.Cache.TTL().String())
	assert.Equal(t, "5m0s", cfg.Sources.FetchTimeout().String())
}

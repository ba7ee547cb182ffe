package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSocketPath, cfg.Daemon.SocketPath)
	assert.Equal(t, DefaultLogLevel, cfg.Daemon.LogLevel)
}

func TestLoadOverridesOnlySpecifiedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[daemon]
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Daemon.LogLevel)
	assert.Equal(t, DefaultSocketPath, cfg.Daemon.SocketPath, "unspecified keys keep their default")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[daemon]
log_level = "verbose"
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings-parse")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`not = [valid`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings-parse")
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Daemon.LogLevel = "warn"
	cfg.TUI.Theme = "light"
	cfg.Integrations["linear"] = IntegrationConfig{Enabled: true, Options: map[string]string{"team": "eng"}}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", loaded.Daemon.LogLevel)
	assert.Equal(t, "light", loaded.TUI.Theme)
	assert.True(t, loaded.Integrations["linear"].Enabled)
	assert.Equal(t, "eng", loaded.Integrations["linear"].Options["team"])
}

func TestInitWritesTemplateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Init(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agent-console-dashboard configuration")

	err = Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already-exists")
}

func TestInitForceBacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[daemon]\nlog_level = \"debug\"\n"), 0o644))

	require.NoError(t, Init(path, true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var sawBackup bool
	for _, e := range entries {
		if filepath.Base(e.Name()) != "config.toml" && filepath.Ext(e.Name()) != ".lock" {
			sawBackup = true
		}
	}
	assert.True(t, sawBackup, "expected a config.toml.bak.* sibling file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agent-console-dashboard configuration")
}

func TestValidateRejectsEmptySocketPath(t *testing.T) {
	cfg := Default()
	cfg.Daemon.SocketPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxClosedSessions(t *testing.T) {
	cfg := Default()
	cfg.Daemon.MaxClosedSessions = 0
	assert.Error(t, cfg.Validate())
}

func TestBackupPathIsDistinctFromOriginal(t *testing.T) {
	path := "/tmp/config.toml"
	backup := BackupPath(path)
	assert.NotEqual(t, path, backup)
	assert.Contains(t, backup, "config.toml.bak.")
}

func TestDefaultConfigDirRespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/agent-console-dashboard", dir)
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[daemon]\nlog_level = \"info\"\n"), 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", w.Current().Daemon.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("[daemon]\nlog_level = \"debug\"\n"), 0o644))
	require.NoError(t, w.Reload())
	assert.Equal(t, "debug", w.Current().Daemon.LogLevel)

	// give any async fsnotify-triggered reload a moment to settle too,
	// so it can't race a later assertion in a follow-up test.
	time.Sleep(10 * time.Millisecond)
}

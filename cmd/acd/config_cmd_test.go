package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadedConfigReturnsDefaultsWhenFileMissing(t *testing.T) {
	oldConfigPath := configPath
	defer func() { configPath = oldConfigPath }()

	configPath = filepath.Join(t.TempDir(), "missing", "config.toml")

	cfg, err := loadedConfig()
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.TUI.Theme)
}

func TestLoadedConfigPropagatesValidationErrors(t *testing.T) {
	oldConfigPath := configPath
	defer func() { configPath = oldConfigPath }()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[daemon]\nlog_level = \"noisy\"\n"), 0o644))
	configPath = cfgPath

	_, err := loadedConfig()
	assert.Error(t, err)
}

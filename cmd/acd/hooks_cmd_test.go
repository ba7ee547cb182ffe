package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookPathsFallsBackToDefaultWhenNoConfig(t *testing.T) {
	oldConfigPath := configPath
	defer func() { configPath = oldConfigPath }()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "does-not-exist"))
	configPath = ""

	paths, err := hookPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".claude", "settings.json"), paths.SettingsPath)
}

func TestHookPathsUsesConfiguredSettingsPathOverride(t *testing.T) {
	oldConfigPath := configPath
	defer func() { configPath = oldConfigPath }()

	home := t.TempDir()
	t.Setenv("HOME", home)

	override := filepath.Join(home, "custom-settings.json")
	cfgPath := filepath.Join(home, "config.toml")
	contents := "[agents.claude-code]\nsettings_path = " + quoteTOML(override) + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(contents), 0o644))

	configPath = cfgPath

	paths, err := hookPaths()
	require.NoError(t, err)
	assert.Equal(t, override, paths.SettingsPath)
}

func quoteTOML(s string) string {
	return `"` + s + `"`
}

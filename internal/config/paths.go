package config

import (
	"os"
	"path/filepath"
	"time"
)

const configDirName = "agent-console-dashboard"
const configFileName = "config.toml"

// DefaultConfigDir resolves $XDG_CONFIG_HOME/agent-console-dashboard,
// falling back to ~/.config/agent-console-dashboard when XDG_CONFIG_HOME
// is unset, per spec.md §6's persisted-state layout.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", configDirName), nil
}

// DefaultConfigPath resolves the full config.toml path under
// DefaultConfigDir.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// BackupPath names the `config.toml.bak.<yyyyMMddTHHmmssZ>` sibling file
// `config init --force` preserves the previous file under.
func BackupPath(path string) string {
	return path + ".bak." + time.Now().UTC().Format("20060102T150405Z")
}

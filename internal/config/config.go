// Package config loads the daemon's config.toml: Load decodes the file
// with BurntSushi/toml over Default(); environment variables are not
// consulted. Watcher uses viper's file notification to keep a snapshot
// current as the file changes on disk; the daemon itself loads the file
// once at start and does not use Watcher.
package config

import (
	"fmt"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
)

func errConfigInvalid(reason string) error {
	return fmt.Errorf("%w: %s", daemonerr.ErrSettingsParse, reason)
}

// TUIConfig controls the interactive dashboard's display preferences.
type TUIConfig struct {
	RefreshIntervalMS int    `toml:"refresh_interval_ms"`
	Theme             string `toml:"theme"`
	ShowClosed        bool   `toml:"show_closed"`
}

// ClaudeCodeConfig controls how the daemon recognizes and manages
// Claude Code sessions specifically, under [agents.claude-code].
type ClaudeCodeConfig struct {
	SettingsPath string `toml:"settings_path"`
	AutoInstallHooks bool `toml:"auto_install_hooks"`
}

// AgentsConfig groups per-agent-type sections. Only claude-code is
// defined today; other agent types are free to add a section here
// without touching the rest of the schema.
type AgentsConfig struct {
	ClaudeCode ClaudeCodeConfig `toml:"claude-code"`
}

// IntegrationConfig is one `[integrations.<name>]` entry — a minimal,
// open-ended shape since integrations are plugin-like and the core spec
// does not enumerate them.
type IntegrationConfig struct {
	Enabled bool              `toml:"enabled"`
	Options map[string]string `toml:"options"`
}

// DaemonConfig controls the daemon process itself.
type DaemonConfig struct {
	SocketPath       string `toml:"socket_path"`
	IdleTimeoutMin   int    `toml:"idle_timeout_minutes"`
	MaxClosedSessions int   `toml:"max_closed_sessions"`
	LogLevel         string `toml:"log_level"`
}

// Config is the full decoded shape of config.toml.
type Config struct {
	TUI          TUIConfig                    `toml:"tui"`
	Agents       AgentsConfig                 `toml:"agents"`
	Integrations map[string]IntegrationConfig `toml:"integrations"`
	Daemon       DaemonConfig                 `toml:"daemon"`
}

const (
	DefaultSocketPath        = "/tmp/agent-console-dashboard.sock"
	DefaultIdleTimeoutMin    = 60
	DefaultMaxClosedSessions = 20
	DefaultLogLevel          = "info"
	DefaultRefreshIntervalMS = 500
	DefaultTheme             = "dark"
)

// Default returns the configuration applied when no config.toml exists
// yet, or when a key is absent from one that does.
func Default() *Config {
	return &Config{
		TUI: TUIConfig{
			RefreshIntervalMS: DefaultRefreshIntervalMS,
			Theme:             DefaultTheme,
			ShowClosed:        false,
		},
		Agents: AgentsConfig{
			ClaudeCode: ClaudeCodeConfig{
				AutoInstallHooks: true,
			},
		},
		Integrations: map[string]IntegrationConfig{},
		Daemon: DaemonConfig{
			SocketPath:        DefaultSocketPath,
			IdleTimeoutMin:    DefaultIdleTimeoutMin,
			MaxClosedSessions: DefaultMaxClosedSessions,
			LogLevel:          DefaultLogLevel,
		},
	}
}

// Validate rejects configuration values that would produce a broken
// daemon rather than failing in some more confusing way later.
func (c *Config) Validate() error {
	if c.Daemon.SocketPath == "" {
		return errConfigInvalid("daemon.socket_path must not be empty")
	}
	if c.Daemon.IdleTimeoutMin < 0 {
		return errConfigInvalid("daemon.idle_timeout_minutes must not be negative")
	}
	if c.Daemon.MaxClosedSessions <= 0 {
		return errConfigInvalid("daemon.max_closed_sessions must be positive")
	}
	switch c.Daemon.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errConfigInvalid("daemon.log_level must be one of debug, info, warn, error")
	}
	return nil
}

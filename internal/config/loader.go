package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
	"github.com/PabloLION/agent-console-dashboard/internal/lockfile"
)

// Load decodes config.toml at path over top of Default(), so any section
// or key the file omits keeps its default value. A missing file is not
// an error: it yields Default() unchanged, matching the daemon's
// zero-config-required posture.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", daemonerr.ErrSettingsIO, path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", daemonerr.ErrSettingsParse, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save encodes cfg as TOML and writes it to path, creating parent
// directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: ensure directory for %s: %v", daemonerr.ErrSettingsIO, path, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("%w: encode %s: %v", daemonerr.ErrSettingsIO, path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", daemonerr.ErrSettingsIO, path, err)
	}
	return nil
}

// Init writes a commented config.toml template to path. If a file already
// exists and force is false, it returns ErrAlreadyExists without touching
// anything. With force, the existing file is renamed to BackupPath(path)
// before the template is written; the rename is guarded by an exclusive
// flock on a sentinel lock file in the same directory so two concurrent
// `config init --force` invocations cannot interleave their backup-then-
// write sequences.
func Init(path string, force bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: ensure directory %s: %v", daemonerr.ErrSettingsIO, dir, err)
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%w: %s", daemonerr.ErrAlreadyExists, path)
		}

		unlock, err := acquireInitLock(dir)
		if err != nil {
			return err
		}
		defer unlock()

		if err := os.Rename(path, BackupPath(path)); err != nil {
			return fmt.Errorf("%w: backup existing %s: %v", daemonerr.ErrSettingsIO, path, err)
		}
	}

	return os.WriteFile(path, []byte(configTemplate), 0o644)
}

// acquireInitLock takes an exclusive, blocking flock on a sentinel file in
// dir, returning a function that releases it.
func acquireInitLock(dir string) (func(), error) {
	lockPath := filepath.Join(dir, ".config-init.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open init lock %s: %v", daemonerr.ErrSettingsIO, lockPath, err)
	}
	if err := lockfile.FlockExclusiveBlocking(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: acquire init lock %s: %v", daemonerr.ErrSettingsIO, lockPath, err)
	}
	return func() {
		_ = lockfile.FlockUnlock(f)
		_ = f.Close()
	}, nil
}

const configTemplate = `# agent-console-dashboard configuration.
# Generated by 'acd config init'. Edit freely; the daemon reads this
# file when it starts, so changes take effect on its next start.

[tui]
refresh_interval_ms = 500
theme = "dark"
show_closed = false

[agents.claude-code]
# settings_path overrides $HOME/.claude/settings.json, if set.
settings_path = ""
auto_install_hooks = true

[daemon]
socket_path = "/tmp/agent-console-dashboard.sock"
idle_timeout_minutes = 60
max_closed_sessions = 20
log_level = "info"

# [integrations.<name>]
# enabled = true
`

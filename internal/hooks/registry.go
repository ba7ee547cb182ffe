package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
)

const registrySchemaVersion = 1

// Handler is one `{type, command, timeout?, async?, status_message?}`
// entry inside a settings.json matcher group.
type Handler struct {
	Type          string `json:"type"`
	Command       string `json:"command"`
	Timeout       int    `json:"timeout,omitempty"`
	Async         bool   `json:"async,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
}

// MatcherGroup is one entry in a settings.json event array:
// `{matcher?, hooks: [handler, ...]}`.
type MatcherGroup struct {
	Matcher string    `json:"matcher,omitempty"`
	Hooks   []Handler `json:"hooks"`
}

// Settings is the subset of $HOME/.claude/settings.json this registry
// cares about. Arbitrary unrelated top-level keys are preserved via
// Extra and re-emitted with their values intact on write; whitespace and
// key order are not preserved (keys are written sorted, re-indented).
type Settings struct {
	Hooks map[string][]MatcherGroup `json:"hooks,omitempty"`
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes Hooks through the typed field and everything
// else into Extra, so round-tripping preserves keys this package does
// not understand.
func (s *Settings) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	if hooksRaw, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooksRaw, &s.Hooks); err != nil {
			return err
		}
		delete(raw, "hooks")
	}
	s.Extra = raw
	return nil
}

// MarshalJSON re-emits Extra's keys alongside the typed Hooks field.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Hooks != nil {
		hooksJSON, err := json.Marshal(s.Hooks)
		if err != nil {
			return nil, err
		}
		out["hooks"] = hooksJSON
	}
	return json.Marshal(out)
}

// RegistryEntry is one entry in registry.jsonc, tracking which settings
// handler this daemon installed and when.
type RegistryEntry struct {
	Event       string `json:"event"`
	Matcher     string `json:"matcher,omitempty"`
	Type        string `json:"type"`
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"`
	Async       bool   `json:"async,omitempty"`
	Scope       string `json:"scope"`
	Enabled     bool   `json:"enabled"`
	AddedAt     string `json:"added_at"`
	InstalledBy string `json:"installed_by"`
}

// matches implements the composite identity key (event, command, matcher).
func (e RegistryEntry) matches(event, command, matcher string) bool {
	return e.Event == event && e.Command == command && e.Matcher == matcher
}

// Registry is registry.jsonc's document shape.
type Registry struct {
	SchemaVersion int             `json:"schema_version"`
	AgentName     string          `json:"agent_name"`
	Hooks         []RegistryEntry `json:"hooks"`
}

// Paths bundles the two file paths the registry mutates together.
type Paths struct {
	SettingsPath string
	RegistryPath string
}

// DefaultPaths resolves $HOME/.claude/settings.json and
// $XDG_DATA_HOME/claude-hooks/registry.jsonc (falling back to
// ~/.local/share when XDG_DATA_HOME is unset), per spec.md §6.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	return Paths{
		SettingsPath: filepath.Join(home, ".claude", "settings.json"),
		RegistryPath: filepath.Join(dataHome, "claude-hooks", "registry.jsonc"),
	}, nil
}

func loadSettings(path string) (Settings, error) {
	data, err := readOrEmpty(path)
	if err != nil {
		return Settings{}, err
	}
	if len(data) == 0 {
		return Settings{Hooks: map[string][]MatcherGroup{}, Extra: map[string]json.RawMessage{}}, nil
	}
	var s Settings
	if err := json.Unmarshal(stripJSONCComments(data), &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %v", daemonerr.ErrSettingsParse, path, err)
	}
	if s.Hooks == nil {
		s.Hooks = map[string][]MatcherGroup{}
	}
	return s, nil
}

func saveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal settings: %v", daemonerr.ErrSettingsIO, err)
	}
	return writeAtomic(path, data, 0o600)
}

func loadRegistry(path string, agentName string) (Registry, error) {
	data, err := readOrEmpty(path)
	if err != nil {
		return Registry{}, err
	}
	if len(data) == 0 {
		return Registry{SchemaVersion: registrySchemaVersion, AgentName: agentName}, nil
	}
	var r Registry
	if err := json.Unmarshal(stripJSONCComments(data), &r); err != nil {
		return Registry{}, fmt.Errorf("%w: %s: %v", daemonerr.ErrSettingsParse, path, err)
	}
	return r, nil
}

func saveRegistry(path string, r Registry) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal registry: %v", daemonerr.ErrSettingsIO, err)
	}
	return writeAtomic(path, data, 0o600)
}

// Install registers a new hook handler under event, failing with
// ErrAlreadyExists if an entry with the same (event, command, matcher)
// composite key is already managed.
func Install(paths Paths, event string, handler Handler, matcher, installedBy, agentName string) error {
	registry, err := loadRegistry(paths.RegistryPath, agentName)
	if err != nil {
		return err
	}

	for _, e := range registry.Hooks {
		if e.matches(event, handler.Command, matcher) {
			return fmt.Errorf("%w: %s %s", daemonerr.ErrAlreadyExists, event, handler.Command)
		}
	}

	settings, err := loadSettings(paths.SettingsPath)
	if err != nil {
		return err
	}
	settings.Hooks[event] = append(settings.Hooks[event], MatcherGroup{
		Matcher: matcher,
		Hooks:   []Handler{handler},
	})
	if err := saveSettings(paths.SettingsPath, settings); err != nil {
		return err
	}

	registry.Hooks = append(registry.Hooks, RegistryEntry{
		Event:       event,
		Matcher:     matcher,
		Type:        handler.Type,
		Command:     handler.Command,
		Timeout:     handler.Timeout,
		Async:       handler.Async,
		Scope:       "user",
		Enabled:     true,
		AddedAt:     time.Now().Format("20060102-150405"),
		InstalledBy: installedBy,
	})
	if registry.SchemaVersion == 0 {
		registry.SchemaVersion = registrySchemaVersion
	}
	if registry.AgentName == "" {
		registry.AgentName = agentName
	}
	return saveRegistry(paths.RegistryPath, registry)
}

// Uninstall removes every registry entry matching (event, command) and,
// regardless of matcher, every settings matcher group under event that
// contains a handler with that command. It fails with ErrNotManaged if no
// registry entry matches.
func Uninstall(paths Paths, event, command, agentName string) error {
	registry, err := loadRegistry(paths.RegistryPath, agentName)
	if err != nil {
		return err
	}

	remaining := registry.Hooks[:0]
	found := false
	for _, e := range registry.Hooks {
		if e.Event == event && e.Command == command {
			found = true
			continue
		}
		remaining = append(remaining, e)
	}
	if !found {
		return fmt.Errorf("%w: %s %s", daemonerr.ErrNotManaged, event, command)
	}
	registry.Hooks = remaining

	settings, err := loadSettings(paths.SettingsPath)
	if err != nil {
		return err
	}
	groups := settings.Hooks[event]
	filtered := groups[:0]
	for _, g := range groups {
		matches := false
		for _, h := range g.Hooks {
			if h.Command == command {
				matches = true
				break
			}
		}
		if !matches {
			filtered = append(filtered, g)
		}
	}
	settings.Hooks[event] = filtered

	if err := saveSettings(paths.SettingsPath, settings); err != nil {
		return err
	}
	return saveRegistry(paths.RegistryPath, registry)
}

// ListedHook is one entry in List's merged view: every handler present
// in settings.json, annotated with whether a registry entry manages it.
type ListedHook struct {
	Event   string
	Matcher string
	Handler Handler
	Managed bool
	Entry   *RegistryEntry
}

// List merges the settings file's handlers with registry metadata: every
// handler present in settings.json is returned, annotated with whether a
// registry entry manages it. Unmanaged hooks installed by other tools
// are surfaced but never removed.
func List(paths Paths, agentName string) ([]ListedHook, error) {
	settings, err := loadSettings(paths.SettingsPath)
	if err != nil {
		return nil, err
	}
	registry, err := loadRegistry(paths.RegistryPath, agentName)
	if err != nil {
		return nil, err
	}

	var out []ListedHook
	for event, groups := range settings.Hooks {
		for _, g := range groups {
			for _, h := range g.Hooks {
				listed := ListedHook{Event: event, Matcher: g.Matcher, Handler: h}
				for i := range registry.Hooks {
					if registry.Hooks[i].matches(event, h.Command, g.Matcher) {
						listed.Managed = true
						listed.Entry = &registry.Hooks[i]
						break
					}
				}
				out = append(out, listed)
			}
		}
	}
	return out, nil
}

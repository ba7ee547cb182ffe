// Package hooks implements the Hook Registry: paired atomic mutation of
// the Claude Code agent settings file and this daemon's own local
// registry of hooks it installed.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PabloLION/agent-console-dashboard/internal/daemonerr"
)

// writeAtomic implements the Hook Registry's atomic-write contract:
// ensure the directory exists, write to a sibling temp file, fsync it,
// then rename over the original. If the rename fails the temp file is
// left in place as a safety copy.
func writeAtomic(path string, data []byte, freshMode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: ensure directory %s: %v", daemonerr.ErrWriteAtomic, dir, err)
	}

	mode := os.FileMode(0o644)
	if _, statErr := os.Stat(path); statErr != nil {
		mode = freshMode
	}

	tempPath := path + ".tmp." + time.Now().Format("20060102-150405")
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: open temp file %s: %v", daemonerr.ErrWriteAtomic, tempPath, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return &daemonerr.WriteAtomicError{OriginalPath: path, TempPath: tempPath, Cause: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &daemonerr.WriteAtomicError{OriginalPath: path, TempPath: tempPath, Cause: err}
	}
	if err := f.Close(); err != nil {
		return &daemonerr.WriteAtomicError{OriginalPath: path, TempPath: tempPath, Cause: err}
	}

	if err := os.Rename(tempPath, path); err != nil {
		return &daemonerr.WriteAtomicError{OriginalPath: path, TempPath: tempPath, Cause: err}
	}
	return nil
}

// readOrEmpty reads path, returning an empty byte slice (not an error) if
// the file does not exist — both the settings file and the registry
// treat a missing file as an empty document.
func readOrEmpty(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", daemonerr.ErrSettingsIO, path, err)
	}
	return data, nil
}

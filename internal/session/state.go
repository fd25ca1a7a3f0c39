package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	stateDir  = ".seshat"
	stateFile = "current_session"
)

// StateFilePath returns the full path to the current-session state file,
// creating the ~/.seshat directory if needed.
func StateFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	return filepath.Join(dir, stateFile), nil
}

// LoadCurrentSessionID loads the CLI's active session id from the local
// state file. Returns ("", nil) when no current session is set.
func LoadCurrentSessionID() (string, error) {
	filePath, err := StateFilePath()
	if err != nil {
		return "", err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading state file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// SaveCurrentSessionID marks a session as the CLI's active session.
// The write is atomic: temp file then rename, guarded by a file lock so
// concurrent CLI invocations cannot interleave.
func SaveCurrentSessionID(sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	filePath, err := StateFilePath()
	if err != nil {
		return err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(filePath), stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sessionID); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// ClearCurrentSessionID removes the current-session state file.
// Idempotent: clearing when no current session exists is not an error.
func ClearCurrentSessionID() error {
	filePath, err := StateFilePath()
	if err != nil {
		return err
	}

	lock := flock.New(filePath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

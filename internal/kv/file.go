package kv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultQuota mirrors the per-origin budget of browser local storage.
const DefaultQuota = 5 << 20

// FileSlot stores its value in a single file.
type FileSlot struct {
	mu    sync.Mutex
	path  string
	quota int
}

// NewFileSlot returns a slot backed by path. A quota of zero or less means
// unlimited.
func NewFileSlot(path string, quota int) *FileSlot {
	return &FileSlot{path: path, quota: quota}
}

// DefaultPath returns ~/.hezell/chatHistory.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hezell", "chatHistory.json"), nil
}

// Path returns the backing file path.
func (s *FileSlot) Path() string { return s.path }

// Get reads the stored value.
func (s *FileSlot) Get() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return data, nil
}

// Set replaces the stored value. The write goes to a temp file that is
// renamed over the target, so a crash never leaves a torn value.
func (s *FileSlot) Set(data []byte) error {
	if s.quota > 0 && len(data) > s.quota {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(data), s.quota)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chatHistory-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Remove deletes the stored value. Removing an empty slot is not an error.
func (s *FileSlot) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}

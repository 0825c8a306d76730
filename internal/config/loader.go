package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/log"
)

// Loader handles loading and merging settings from multiple sources.
type Loader struct {
	// userDir is the user-level config directory (e.g., ~/.hezell)
	userDir string

	// projectDir is the project-level config directory (e.g., .hezell)
	projectDir string
}

// NewLoader creates a new settings loader.
// It defaults to:
//   - userDir: ~/.hezell
//   - projectDir: .hezell
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		userDir:    filepath.Join(homeDir, ".hezell"),
		projectDir: ".hezell",
	}
}

// NewLoaderWithOptions creates a loader with custom options.
func NewLoaderWithOptions(userDir, projectDir string) *Loader {
	return &Loader{
		userDir:    userDir,
		projectDir: projectDir,
	}
}

// Sources returns the settings files in priority order (lowest to highest).
func (l *Loader) Sources() []string {
	return []string{
		filepath.Join(l.userDir, "settings.json"),
		filepath.Join(l.projectDir, "settings.json"),
		filepath.Join(l.projectDir, "settings.local.json"),
	}
}

// Load loads and merges settings from all sources.
// Missing files are skipped; a malformed file is an error naming the file.
//
// Later sources override earlier ones.
func (l *Loader) Load() (*Settings, error) {
	settings := NewSettings()
	for _, src := range l.Sources() {
		s, err := l.LoadFile(src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		log.Logger().Debug("settings loaded", zap.String("path", src))
		settings = MergeSettings(settings, s)
	}
	return settings, nil
}

// LoadFile loads settings from a specific file.
func (l *Loader) LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &settings, nil
}

// PersonasPath returns the custom personas file in the user directory.
func (l *Loader) PersonasPath() string {
	return filepath.Join(l.userDir, "personas.yaml")
}

// GetUserDir returns the user config directory path.
func (l *Loader) GetUserDir() string {
	return l.userDir
}

// GetProjectDir returns the project config directory path.
func (l *Loader) GetProjectDir() string {
	return l.projectDir
}

// Load is a convenience function that loads settings using the default loader.
func Load() (*Settings, error) {
	return NewLoader().Load()
}

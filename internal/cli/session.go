package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alexbotov/decktutor/pkg/decktutor"
	"gopkg.in/yaml.v3"
)

// sessionFile is the on-disk form of a login. Endpoint and game are kept so a
// session is only replayed against the service that issued it.
type sessionFile struct {
	Endpoint string             `yaml:"endpoint"`
	Game     decktutor.Game     `yaml:"game,omitempty"`
	Session  *decktutor.Session `yaml:"session,omitempty"`
}

// loadSession reads a session file. A missing file is an empty session.
func loadSession(path string) (*sessionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &sessionFile{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return &sf, nil
}

// saveSession writes the session file readable by the owner only
func saveSession(path string, sf *sessionFile) error {
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

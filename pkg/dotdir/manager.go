// Package dotdir manages the ~/.engram directory and the well-known files
// kept inside it.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the engram home directory.
	dirName = ".engram"

	// EnvHome overrides the engram home directory.
	EnvHome = "ENGRAM_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to the engram home directory, creating it
// when missing. Order of precedence is as follows:
//  1. Provided override
//  2. $ENGRAM_HOME
//  3. Home ~/.engram/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case os.Getenv(EnvHome) != "":
		dir = os.Getenv(EnvHome)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating engram directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Layout resolves the engram home and returns the file layout inside it.
func (m *Manager) Layout(overrideDir string) (Layout, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return Layout{}, err
	}
	return NewLayout(dir), nil
}

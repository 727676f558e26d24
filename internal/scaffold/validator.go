package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/canopy/internal/config"
)

// CheckExisting returns an error if dir already has a canopy.yml
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("already initialized\n\nFound existing: %s\n\nUse 'canopy init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultPath)
	}
	return nil
}

package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/canopy/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Options fills the generated canopy.yml
type Options struct {
	BaseURL  string
	UserID   string
	RedisURL string
	Force    bool // overwrite an existing canopy.yml
}

// Initialize writes canopy.yml into dir and validates it. Without Force an
// existing file is an error.
func Initialize(dir string, opts Options) (string, error) {
	path := filepath.Join(dir, config.DefaultPath)

	if opts.Force {
		if err := handleForce(path); err != nil {
			return "", err
		}
	} else if err := CheckExisting(dir); err != nil {
		return "", err
	}

	content, err := render(opts)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := validateCreatedFile(path); err != nil {
		return "", err
	}

	return path, nil
}

// handleForce removes an existing config if --force was specified
func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", filepath.Base(path))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func render(opts Options) ([]byte, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8000/api/"
	}
	if opts.UserID == "" {
		opts.UserID = "1"
	}

	raw, err := templatesFS.ReadFile("templates/canopy.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read canopy.yml template: %w", err)
	}

	tmpl, err := template.New("canopy.yml").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse canopy.yml template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("failed to render canopy.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// validateCreatedFile checks the written file loads as a valid config
func validateCreatedFile(path string) error {
	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s is not valid: %w", filepath.Base(path), err)
	}
	return nil
}

// PrintSuccess prints the success message
func PrintSuccess(path string) {
	fmt.Println("\n✅ Successfully initialized canopy!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Export your API token: export CANOPY_TOKEN=...")
	fmt.Println("  2. Run 'canopy show <root-id> --kind mission' to load a tree")
	fmt.Println("  3. Add roots under sync.roots and run 'canopyd' to keep a cached copy fresh")
}

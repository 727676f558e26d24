package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit    bool
	initBaseURL  string
	initUserID   string
	initRedisURL string
	initDir      string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a canopy.yml",
	Long: `Create a canopy.yml in the current directory (or --dir) with default
settings, then validate it.

The bearer token is never written to the file; export it in the variable
named by api.token_env (CANOPY_TOKEN by default).

Use --force to overwrite an existing canopy.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing canopy.yml")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "API base URL (default http://localhost:8000/api/)")
	initCmd.Flags().StringVar(&initUserID, "user-id", "", "Acting user id sent on create (default 1)")
	initCmd.Flags().StringVar(&initRedisURL, "redis-url", "", "Redis mirror URL (optional)")
	initCmd.Flags().StringVar(&initDir, "dir", "", "Directory to write canopy.yml into (default current directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := initDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}

	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return printer.Error("canopy.yml already exists", err.Error(), nil)
		}
	}

	path, err := scaffold.Initialize(dir, scaffold.Options{
		BaseURL:  initBaseURL,
		UserID:   initUserID,
		RedisURL: initRedisURL,
		Force:    forceInit,
	})
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	// Print success message
	scaffold.PrintSuccess(path)

	return nil
}

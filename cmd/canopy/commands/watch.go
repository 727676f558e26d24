package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/watch"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchRoot         string
	watchLevel        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream tree changes in real-time",
	Long: `Stream tree events published to the mirror by canopy and canopyd.

Shows loads, creates, updates and deletes as they happen.

Output Formats:
  default - Human-readable with timestamps and emojis
  json    - Line-delimited JSON (one event per line)

Examples:
  # Stream everything
  canopy watch

  # JSON output for one root
  canopy watch --root 12 --output=json | jq .

  # Only task events
  canopy watch --level task`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVarP(&watchRoot, "root", "r", "", "Only events for this root id")
	watchCmd.Flags().StringVar(&watchLevel, "level", "", "Only events at these levels (comma-separated)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format := watch.OutputFormat(watchOutputFormat)
	if format != watch.OutputFormatDefault && format != watch.OutputFormatJSON {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Format '%s' is not supported.", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	filter := &watch.Filter{RootID: okr.ID(watchRoot)}
	if watchLevel != "" {
		for _, part := range strings.Split(watchLevel, ",") {
			level, err := resolveLevelFlag(strings.TrimSpace(part))
			if err != nil {
				return err
			}
			filter.Levels = append(filter.Levels, level)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := connectMirror(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer client.Close()

	if format == watch.OutputFormatDefault {
		printer.Info("Watching tree events in namespace '%s' (Ctrl+C to stop)\n", client.Namespace())
	}

	if err := watch.StreamEvents(ctx, client, format, filter, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

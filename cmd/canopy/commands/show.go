package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/outline"
	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/resolver"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/internal/watch"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

var (
	showKind         string
	showOutputFormat string
	showCached       bool
	showWait         time.Duration
	showDepth        int
	showNode         string
	showLevel        string
	showStatus       string
	showTitle        string
	showAssignee     string
	showHideArchived bool
)

var showCmd = &cobra.Command{
	Use:   "show ROOT_ID",
	Short: "Load and display a goal tree",
	Long: `Load a Mission or Project tree and display it.

Output Formats:
  default - Indented tree with progress per node
  jsonl   - One node per line, with parent_id and depth
  json    - The whole tree as one document, including degraded fetches

Task Filters:
  --status        - Comma-separated statuses (backlog,in_progress,completed,cancelled)
  --title         - Glob pattern on the task title ("Call*")
  --assignee      - Assignee user id
  --hide-archived - Drop archived tasks

Examples:
  # Load a mission
  canopy show 12 --kind mission

  # Only open tasks, as JSONL for jq
  canopy show 12 --status backlog,in_progress --output=jsonl | jq 'select(.level=="task")'

  # Objectives and key results only
  canopy show 12 --depth 3

  # One node as JSON
  canopy show 12 --node 57 --level kr

  # Read the copy kept by canopyd, waiting up to 10s for it to appear
  canopy show 12 --cached --wait 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showKind, "kind", "k", "", "Root kind: mission or project (default from sync.roots)")
	showCmd.Flags().StringVarP(&showOutputFormat, "output", "o", "default", "Output format: default, jsonl or json")
	showCmd.Flags().BoolVar(&showCached, "cached", false, "Read the mirror's cached copy instead of the API")
	showCmd.Flags().DurationVar(&showWait, "wait", 0, "With --cached, wait this long for a copy to appear")
	showCmd.Flags().IntVar(&showDepth, "depth", 0, "Levels to expand below the root (0 = all)")
	showCmd.Flags().StringVar(&showNode, "node", "", "Print only the node with this id as JSON")
	showCmd.Flags().StringVar(&showLevel, "level", "", "Level of --node when ids collide (task, activity, kr, ...)")

	// Task filters
	showCmd.Flags().StringVar(&showStatus, "status", "", "Filter tasks by status (comma-separated)")
	showCmd.Flags().StringVar(&showTitle, "title", "", "Filter tasks by title (glob pattern)")
	showCmd.Flags().StringVar(&showAssignee, "assignee", "", "Filter tasks by assignee id")
	showCmd.Flags().BoolVar(&showHideArchived, "hide-archived", false, "Hide archived tasks")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rootID := okr.ID(args[0])

	format, err := outline.ParseFormat(showOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl, json"})
	}

	statuses, err := parseStatuses(showStatus)
	if err != nil {
		return printer.Error("invalid task filter", err.Error(), nil)
	}
	if showDepth < 0 {
		return printer.Error("invalid --depth", "Depth cannot be negative.", nil)
	}

	var level okr.Level
	if showLevel != "" {
		level, err = resolveLevelFlag(showLevel)
		if err != nil {
			return err
		}
	}

	opts := outline.Options{
		Format: format,
		Filter: &outline.Criteria{
			Statuses:     statuses,
			TitleGlob:    showTitle,
			Assignee:     okr.ID(showAssignee),
			HideArchived: showHideArchived,
		},
	}

	var snap *tree.Snapshot
	if showCached {
		snap, err = cachedSnapshot(ctx, rootID)
	} else {
		snap, err = liveSnapshot(ctx, rootID)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if showNode != "" {
		if err := outline.RenderNode(out, snap, level, okr.ID(showNode)); err != nil {
			return explainResolve(err, showNode)
		}
		return nil
	}

	if showDepth > 0 {
		opts.Expansion = expandToDepth(snap, showDepth)
	}

	if err := outline.Render(out, snap, opts); err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}
	return nil
}

func liveSnapshot(ctx context.Context, rootID okr.ID) (*tree.Snapshot, error) {
	s, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	kind, err := resolveKind(s.cfg, rootID, showKind)
	if err != nil {
		return nil, err
	}

	return s.load(ctx, rootID, kind)
}

func cachedSnapshot(ctx context.Context, rootID okr.ID) (*tree.Snapshot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := connectMirror(ctx, cfg, true)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var snap *tree.Snapshot
	if showWait > 0 {
		snap, err = watch.PollForSnapshot(ctx, client, rootID, time.Time{}, showWait)
	} else {
		snap, err = client.LoadSnapshot(ctx, rootID)
	}
	if err != nil {
		if mirror.IsNotFound(err) || showWait > 0 {
			return nil, printer.ErrorWithContext(
				fmt.Sprintf("no cached tree for root '%s'", rootID),
				err.Error(),
				map[string]string{"Namespace": client.Namespace()},
				[]string{"Load it live:\n  canopy show " + rootID.String(), "Add it to sync.roots and run canopyd"},
			)
		}
		return nil, fmt.Errorf("failed to read cached tree: %w", err)
	}

	printer.PartialLoad(snap)
	return snap, nil
}

// expandToDepth expands every node shallower than depth, so depth 1 shows
// only the root's children.
func expandToDepth(snap *tree.Snapshot, depth int) *tree.Expansion {
	expansion := tree.NewExpansion()
	_ = outline.Walk(outline.Build(snap, nil, nil), func(n *outline.Node) error {
		if n.Depth > 0 && n.Depth < depth {
			expansion.Expand(n.Ref())
		}
		return nil
	})
	return expansion
}

func resolveLevelFlag(value string) (okr.Level, error) {
	level, err := resolver.ResolveLevel(value)
	if err == nil {
		return level, nil
	}

	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		return "", printer.Error("ambiguous level", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	return "", printer.Error(
		fmt.Sprintf("unknown level '%s'", value),
		err.Error(),
		[]string{"Levels: epic, objective, key_result (kr, okr), activity, task"},
	)
}

// explainResolve turns node lookup failures into printer errors.
func explainResolve(err error, id string) error {
	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		return printer.Error("ambiguous id", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	if resolver.IsNotFoundError(err) {
		return printer.Error(
			fmt.Sprintf("node '%s' not found", id),
			err.Error(),
			[]string{"List the tree:\n  canopy show <root-id>"},
		)
	}
	return printer.Explain(err)
}

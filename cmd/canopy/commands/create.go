package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/canopy/internal/outline"
	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create LEVEL",
	Short: "Create a node in a goal tree",
	Long: `Create an epic, objective, key result, activity or task.

The tree is loaded first so the new node is validated against it, inserted
at the head of its parent's list and, when a mirror is configured, cached and
announced to watchers.

Examples:
  canopy create epic --root 12 --title "Grow revenue"
  canopy create objective --root 12 --parent 3 --title "Win EMEA"
  canopy create kr --root 12 --parent 7 --title "Close 10 deals" --target 10
  canopy create activity --root 12 --parent 21 --title "Outreach" --start today --end +2w
  canopy create task --root 12 --parent 40 --title "Call Acme" --status in_progress`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	addRootFlags(createCmd)
	createCmd.Flags().StringVarP(&mutParent, "parent", "p", "", "Parent id (defaults to the root for epics and project objectives)")
	addFieldFlags(createCmd)
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	level, err := mutationLevel(args[0])
	if err != nil {
		return err
	}
	if mutTitle == "" {
		return printer.Error("--title is required", fmt.Sprintf("A new %s needs a title.", level.Label()), nil)
	}

	// Validate field flags before anything touches the backend.
	create, err := newCreator(level)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	rootID := okr.ID(mutRoot)
	kind, err := resolveKind(s.cfg, rootID, mutKind)
	if err != nil {
		return err
	}
	snap, err := s.load(ctx, rootID, kind)
	if err != nil {
		return err
	}
	if err := checkKind(snap, level); err != nil {
		return err
	}

	parentID := okr.ID(mutParent)
	if parentID.IsZero() {
		if level != okr.LevelEpic && (level != okr.LevelObjective || snap.Kind.HasEpics()) {
			return printer.Error(
				"--parent is required",
				fmt.Sprintf("Pick the %s this %s belongs to.", parentLevel(snap, level).Label(), level.Label()),
				[]string{"List the tree:\n  canopy show " + rootID.String()},
			)
		}
		parentID = rootID
	}

	created, err := create(cmd.Context(), s.engine, parentID)
	if err != nil {
		return printer.Explain(err)
	}

	s.cache(ctx)
	printer.Success("Created %s %s under %s\n", level.Label(), created.NodeID(), parentID)
	if verbose {
		return outline.FormatSingleJSON(cmd.OutOrStdout(), created)
	}
	return nil
}

// creator issues the create call for one level.
type creator func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error)

// newCreator builds the draft for level from the field flags.
func newCreator(level okr.Level) (creator, error) {
	switch level {
	case okr.LevelEpic:
		draft := okr.Epic{Title: mutTitle, Description: mutDescription}
		return func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error) {
			return node(e.CreateEpic(ctx, parentID, draft))
		}, nil

	case okr.LevelObjective:
		draft := okr.Objective{Title: mutTitle, Description: mutDescription}
		return func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error) {
			return node(e.CreateObjective(ctx, parentID, draft))
		}, nil

	case okr.LevelKeyResult:
		draft := okr.KeyResult{Title: mutTitle, CurrentValue: mutCurrent, TargetValue: mutTarget}
		return func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error) {
			return node(e.CreateKeyResult(ctx, parentID, draft))
		}, nil

	case okr.LevelActivity:
		if mutStart == "" {
			mutStart = "today"
		}
		start, end, err := dateRange()
		if err != nil {
			return nil, err
		}
		draft := okr.Activity{Name: mutTitle, Description: mutDescription, StartDate: start, EndDate: end}
		return func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error) {
			return node(e.CreateActivity(ctx, parentID, draft))
		}, nil

	case okr.LevelTask:
		status := okr.TaskStatusBacklog
		if mutStatus != "" {
			var err error
			if status, err = taskStatus(mutStatus); err != nil {
				return nil, err
			}
		}
		draft := okr.Task{Title: mutTitle, Description: mutDescription, Status: status, Archived: mutArchived}
		return func(ctx context.Context, e *tree.Engine, parentID okr.ID) (okr.Node, error) {
			return node(e.CreateTask(ctx, parentID, draft))
		}, nil
	}

	return nil, fmt.Errorf("cannot create %s", level)
}

// node widens a typed engine result to okr.Node.
func node[T okr.Node](v T, err error) (okr.Node, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// parentLevel names the level a new node of the given level hangs under.
func parentLevel(snap *tree.Snapshot, level okr.Level) okr.Level {
	switch level {
	case okr.LevelObjective:
		if snap.Kind.HasEpics() {
			return okr.LevelEpic
		}
		return okr.LevelRoot
	case okr.LevelKeyResult:
		return okr.LevelObjective
	case okr.LevelActivity:
		return okr.LevelKeyResult
	case okr.LevelTask:
		return okr.LevelActivity
	default:
		return okr.LevelRoot
	}
}

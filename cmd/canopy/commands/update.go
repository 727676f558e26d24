package commands

import (
	"fmt"

	"github.com/dyluth/canopy/internal/outline"
	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update LEVEL ID",
	Short: "Update a node in a goal tree",
	Long: `Update the writable fields of an existing node.

Only the flags you pass are changed; every other writable field is sent
with its current value. Server-computed fields such as progress are never
sent.

Examples:
  canopy update task 88 --root 12 --status completed
  canopy update kr 57 --root 12 --current 7
  canopy update activity 40 --root 12 --end +1w`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

func init() {
	addRootFlags(updateCmd)
	addFieldFlags(updateCmd)
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := okr.ID(args[1])

	level, err := mutationLevel(args[0])
	if err != nil {
		return err
	}
	if !anyFieldChanged(cmd) {
		return printer.Error("nothing to update", "Pass at least one field flag.", []string{"See 'canopy update --help'"})
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

	updated, err := applyUpdate(cmd, s.engine, snap, level, id)
	if err != nil {
		return err
	}

	s.cache(ctx)
	printer.Success("Updated %s %s\n", level.Label(), id)
	if verbose {
		return outline.FormatSingleJSON(cmd.OutOrStdout(), updated)
	}
	return nil
}

func anyFieldChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"title", "description", "current", "target", "start", "end", "status", "archived"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// applyUpdate overlays the changed flags on the node's current fields and
// sends the result.
func applyUpdate(cmd *cobra.Command, e *tree.Engine, snap *tree.Snapshot, level okr.Level, id okr.ID) (okr.Node, error) {
	ctx := cmd.Context()
	changed := cmd.Flags().Changed

	missing := func() error {
		return printer.Error(
			fmt.Sprintf("%s '%s' not found", level.Label(), id),
			fmt.Sprintf("Root '%s' has no loaded %s with that id.", snap.RootID, level.Label()),
			[]string{"List the tree:\n  canopy show " + snap.RootID.String()},
		)
	}

	var (
		updated okr.Node
		err     error
	)

	switch level {
	case okr.LevelEpic:
		draft, _, ok := snap.Epics.Find(id)
		if !ok {
			return nil, missing()
		}
		overlayString(changed, "title", &draft.Title, mutTitle)
		overlayString(changed, "description", &draft.Description, mutDescription)
		updated, err = node(e.UpdateEpic(ctx, id, draft))

	case okr.LevelObjective:
		draft, _, ok := snap.Objectives.Find(id)
		if !ok {
			return nil, missing()
		}
		overlayString(changed, "title", &draft.Title, mutTitle)
		overlayString(changed, "description", &draft.Description, mutDescription)
		updated, err = node(e.UpdateObjective(ctx, id, draft))

	case okr.LevelKeyResult:
		draft, _, ok := snap.KeyResults.Find(id)
		if !ok {
			return nil, missing()
		}
		overlayString(changed, "title", &draft.Title, mutTitle)
		if changed("current") {
			draft.CurrentValue = mutCurrent
		}
		if changed("target") {
			draft.TargetValue = mutTarget
		}
		updated, err = node(e.UpdateKeyResult(ctx, id, draft))

	case okr.LevelActivity:
		draft, _, ok := snap.Activities.Find(id)
		if !ok {
			return nil, missing()
		}
		overlayString(changed, "title", &draft.Name, mutTitle)
		overlayString(changed, "description", &draft.Description, mutDescription)
		if changed("start") || changed("end") {
			if !changed("start") {
				mutStart = draft.StartDate
			}
			if !changed("end") {
				mutEnd = draft.EndDate
			}
			start, end, rangeErr := dateRange()
			if rangeErr != nil {
				return nil, rangeErr
			}
			draft.StartDate, draft.EndDate = start, end
		}
		updated, err = node(e.UpdateActivity(ctx, id, draft))

	case okr.LevelTask:
		draft, _, ok := snap.Tasks.Find(id)
		if !ok {
			return nil, missing()
		}
		overlayString(changed, "title", &draft.Title, mutTitle)
		overlayString(changed, "description", &draft.Description, mutDescription)
		if changed("status") {
			status, statusErr := taskStatus(mutStatus)
			if statusErr != nil {
				return nil, statusErr
			}
			draft.Status = status
		}
		if changed("archived") {
			draft.Archived = mutArchived
		}
		updated, err = node(e.UpdateTask(ctx, id, draft))

	default:
		return nil, fmt.Errorf("cannot update %s", level)
	}

	if err != nil {
		return nil, printer.Explain(err)
	}
	return updated, nil
}

func overlayString(changed func(string) bool, flag string, dst *string, value string) {
	if changed(flag) {
		*dst = value
	}
}

package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/timespec"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

// Field flags shared by create and update.
var (
	mutRoot        string
	mutKind        string
	mutParent      string
	mutTitle       string
	mutDescription string
	mutCurrent     int
	mutTarget      int
	mutStart       string
	mutEnd         string
	mutStatus      string
	mutArchived    bool
)

func addRootFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mutRoot, "root", "r", "", "Root (mission or project) id (required)")
	cmd.Flags().StringVarP(&mutKind, "kind", "k", "", "Root kind: mission or project (default from sync.roots)")
	_ = cmd.MarkFlagRequired("root")
}

func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mutTitle, "title", "t", "", "Title (name for activities)")
	cmd.Flags().StringVarP(&mutDescription, "description", "d", "", "Description")
	cmd.Flags().IntVar(&mutCurrent, "current", 0, "Key result current value")
	cmd.Flags().IntVar(&mutTarget, "target", 0, "Key result target value")
	cmd.Flags().StringVar(&mutStart, "start", "", "Activity start date (YYYY-MM-DD, today, +3d, ...)")
	cmd.Flags().StringVar(&mutEnd, "end", "", "Activity end date (YYYY-MM-DD, today, +2w, ...)")
	cmd.Flags().StringVar(&mutStatus, "status", "", "Task status: backlog, in_progress, completed, cancelled")
	cmd.Flags().BoolVar(&mutArchived, "archived", false, "Task archived flag")
}

// mutationLevel resolves the LEVEL argument and rejects the root level,
// which canopy never writes.
func mutationLevel(arg string) (okr.Level, error) {
	level, err := resolveLevelFlag(arg)
	if err != nil {
		return "", err
	}
	if level == okr.LevelRoot {
		return "", printer.Error(
			"roots are read-only",
			"Missions and projects are managed in the backend itself.",
			[]string{"Pick a level: epic, objective, kr, activity, task"},
		)
	}
	return level, nil
}

// dateRange parses --start and --end relative to today.
func dateRange() (string, string, error) {
	start, end, err := timespec.ParseRange(mutStart, mutEnd, now())
	if err != nil {
		return "", "", printer.Error("invalid date", err.Error(), []string{"Use YYYY-MM-DD, today, tomorrow, or an offset like +3d"})
	}
	return start, end, nil
}

func taskStatus(value string) (okr.TaskStatus, error) {
	status := okr.TaskStatus(value)
	if err := status.Validate(); err != nil {
		return "", printer.Error("invalid --status", err.Error(), nil)
	}
	return status, nil
}

// checkKind rejects epics under projects before any request is made.
func checkKind(snap *tree.Snapshot, level okr.Level) error {
	if level == okr.LevelEpic && !snap.Kind.HasEpics() {
		return printer.Error(
			"projects have no epics",
			fmt.Sprintf("Root '%s' is a project; its objectives sit directly under it.", snap.RootID),
			[]string{"Create an objective instead:\n  canopy create objective --root " + snap.RootID.String()},
		)
	}
	return nil
}

// now is replaced in tests.
var now = time.Now

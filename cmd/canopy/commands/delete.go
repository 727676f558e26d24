package commands

import (
	"fmt"

	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/resolver"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/spf13/cobra"
)

var (
	deleteRoot   string
	deleteKind   string
	deleteParent string
)

var deleteCmd = &cobra.Command{
	Use:   "delete LEVEL ID",
	Short: "Delete a node and its subtree",
	Long: `Delete a node from a goal tree.

The backend removes the node's descendants; canopy prunes them from the local
tree as well. Without --parent the parent is taken from the loaded tree.

Examples:
  canopy delete task 88 --root 12
  canopy delete objective 3 --root 12 --parent 7`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteRoot, "root", "r", "", "Root (mission or project) id (required)")
	deleteCmd.Flags().StringVarP(&deleteKind, "kind", "k", "", "Root kind: mission or project (default from sync.roots)")
	deleteCmd.Flags().StringVarP(&deleteParent, "parent", "p", "", "Parent id (default: looked up in the tree)")
	_ = deleteCmd.MarkFlagRequired("root")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := okr.ID(args[1])

	level, err := mutationLevel(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	rootID := okr.ID(deleteRoot)
	kind, err := resolveKind(s.cfg, rootID, deleteKind)
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

	parentID := okr.ID(deleteParent)
	if parentID.IsZero() {
		match, err := resolver.ResolveNode(snap, level, id)
		if err != nil {
			return explainResolve(err, id.String())
		}
		parentID = match.ParentID
	}

	if err := deleteNode(cmd, s.engine, level, parentID, id); err != nil {
		return printer.Explain(err)
	}

	s.cache(ctx)
	printer.Success("Deleted %s %s\n", level.Label(), id)
	return nil
}

func deleteNode(cmd *cobra.Command, e *tree.Engine, level okr.Level, parentID, id okr.ID) error {
	ctx := cmd.Context()
	switch level {
	case okr.LevelEpic:
		return e.DeleteEpic(ctx, parentID, id)
	case okr.LevelObjective:
		return e.DeleteObjective(ctx, parentID, id)
	case okr.LevelKeyResult:
		return e.DeleteKeyResult(ctx, parentID, id)
	case okr.LevelActivity:
		return e.DeleteActivity(ctx, parentID, id)
	case okr.LevelTask:
		return e.DeleteTask(ctx, parentID, id)
	}
	return fmt.Errorf("cannot delete %s", level)
}

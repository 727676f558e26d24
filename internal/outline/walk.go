package outline

import (
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// Node is one rendered position in the outline.
type Node struct {
	Level    okr.Level `json:"level"`
	ID       okr.ID    `json:"id"`
	ParentID okr.ID    `json:"parent_id"`
	Depth    int       `json:"depth"`
	Entity   any       `json:"entity"`

	// Collapsed is set when the node has children that are hidden by the
	// expansion state. Hidden holds how many.
	Collapsed bool `json:"collapsed,omitempty"`
	Hidden    int  `json:"hidden,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// Ref returns the node's expansion key.
func (n *Node) Ref() tree.NodeRef {
	return tree.NodeRef{Level: n.Level, ID: n.ID}
}

// Build arranges snap into a tree of Nodes, top-down and in bucket order.
// A nil expansion shows every level; otherwise a non-root node's children
// are included only when it is expanded. Tasks failing filter are dropped.
func Build(snap *tree.Snapshot, expansion *tree.Expansion, filter *Criteria) *Node {
	root := &Node{Level: okr.LevelRoot, ID: snap.RootID, Entity: snap.Root}
	fill(snap, root, expansion, filter)
	return root
}

func fill(snap *tree.Snapshot, n *Node, expansion *tree.Expansion, filter *Criteria) {
	children := childrenOf(snap, n, filter)
	if len(children) == 0 {
		return
	}

	if n.Level != okr.LevelRoot && expansion != nil && !expansion.IsExpanded(n.Ref()) {
		n.Collapsed = true
		n.Hidden = len(children)
		return
	}

	for _, child := range children {
		child.Depth = n.Depth + 1
		child.ParentID = n.ID
		fill(snap, child, expansion, filter)
	}
	n.Children = children
}

func childrenOf(snap *tree.Snapshot, n *Node, filter *Criteria) []*Node {
	switch n.Level {
	case okr.LevelRoot:
		if snap.Kind.HasEpics() {
			return wrap(okr.LevelEpic, snap.Epics.Get(n.ID))
		}
		return wrap(okr.LevelObjective, snap.Objectives.Get(n.ID))
	case okr.LevelEpic:
		return wrap(okr.LevelObjective, snap.Objectives.Get(n.ID))
	case okr.LevelObjective:
		return wrap(okr.LevelKeyResult, snap.KeyResults.Get(n.ID))
	case okr.LevelKeyResult:
		return wrap(okr.LevelActivity, snap.Activities.Get(n.ID))
	case okr.LevelActivity:
		var tasks []okr.Task
		for _, task := range snap.Tasks.Get(n.ID) {
			if filter.Matches(task) {
				tasks = append(tasks, task)
			}
		}
		return wrap(okr.LevelTask, tasks)
	}
	return nil
}

func wrap[T okr.Node](level okr.Level, list []T) []*Node {
	if len(list) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(list))
	for _, item := range list {
		out = append(out, &Node{Level: level, ID: item.NodeID(), Entity: item})
	}
	return out
}

// Walk visits n and its descendants depth-first, parents before children.
func Walk(n *Node, visit func(*Node) error) error {
	if err := visit(n); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := Walk(child, visit); err != nil {
			return err
		}
	}
	return nil
}

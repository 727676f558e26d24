package tree

import (
	"time"

	"github.com/dyluth/canopy/pkg/okr"
)

// Snapshot is the in-memory mirror of one tree: the root plus one Store per
// level. Epics are keyed by root id; Objectives by epic id (Mission) or root
// id (Project); KeyResults by objective id; Activities by key result id;
// Tasks by activity id.
type Snapshot struct {
	RootID okr.ID
	Kind   okr.RootKind
	Root   okr.Root

	Epics      *Store[okr.Epic]
	Objectives *Store[okr.Objective]
	KeyResults *Store[okr.KeyResult]
	Activities *Store[okr.Activity]
	Tasks      *Store[okr.Task]

	// Failures lists the per-parent fetches that were degraded to empty
	// during the load that produced this snapshot.
	Failures []*FetchFailure

	// Generation is the load generation that produced this snapshot.
	Generation uint64
	LoadedAt   time.Time
}

// NewSnapshot returns an empty snapshot for rootID.
func NewSnapshot(rootID okr.ID, kind okr.RootKind) *Snapshot {
	return &Snapshot{
		RootID:     rootID,
		Kind:       kind,
		Epics:      NewStore[okr.Epic](okr.LevelEpic),
		Objectives: NewStore[okr.Objective](okr.LevelObjective),
		KeyResults: NewStore[okr.KeyResult](okr.LevelKeyResult),
		Activities: NewStore[okr.Activity](okr.LevelActivity),
		Tasks:      NewStore[okr.Task](okr.LevelTask),
	}
}

// Partial reports whether any subtree was degraded during load.
func (s *Snapshot) Partial() bool {
	return len(s.Failures) > 0
}

// ObjectiveParents returns the ids that own Objective buckets: the epics of
// a Mission, or the root of a Project.
func (s *Snapshot) ObjectiveParents() []okr.ID {
	if s.Kind.HasEpics() {
		return nodeIDs(s.Epics.Get(s.RootID))
	}
	return []okr.ID{s.RootID}
}

// Clone returns a deep copy safe to hand to readers.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Epics = s.Epics.Clone()
	c.Objectives = s.Objectives.Clone()
	c.KeyResults = s.KeyResults.Clone()
	c.Activities = s.Activities.Clone()
	c.Tasks = s.Tasks.Clone()
	c.Failures = append([]*FetchFailure(nil), s.Failures...)
	return &c
}

// Counts returns the number of entities per level.
func (s *Snapshot) Counts() map[okr.Level]int {
	return map[okr.Level]int{
		okr.LevelEpic:      s.Epics.Len(),
		okr.LevelObjective: s.Objectives.Len(),
		okr.LevelKeyResult: s.KeyResults.Len(),
		okr.LevelActivity:  s.Activities.Len(),
		okr.LevelTask:      s.Tasks.Len(),
	}
}

// nodeIDs returns the ids of list in order.
func nodeIDs[T okr.Node](list []T) []okr.ID {
	out := make([]okr.ID, 0, len(list))
	for _, item := range list {
		out = append(out, item.NodeID())
	}
	return out
}

// Contains reports whether the node named by ref is in the snapshot.
func (s *Snapshot) Contains(ref NodeRef) bool {
	switch ref.Level {
	case okr.LevelRoot:
		return ref.ID == s.RootID
	case okr.LevelEpic:
		_, ok := s.Epics.Owner(ref.ID)
		return ok
	case okr.LevelObjective:
		_, ok := s.Objectives.Owner(ref.ID)
		return ok
	case okr.LevelKeyResult:
		_, ok := s.KeyResults.Owner(ref.ID)
		return ok
	case okr.LevelActivity:
		_, ok := s.Activities.Owner(ref.ID)
		return ok
	case okr.LevelTask:
		_, ok := s.Tasks.Owner(ref.ID)
		return ok
	}
	return false
}

package tree

import (
	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
)

const (
	identityOwner    = "owner_id"
	identityAssignee = "assignee_id"
)

// level binds one hierarchy level to its store, its backend collection and
// its wire keys, so loading and mutation share a single generic path.
type level[T okr.Node] struct {
	name     okr.Level
	store    func(*Snapshot) *Store[T]
	resource func(resource.API) resource.Resource[T]

	// foreignKey is both the list filter and the parent key in bodies.
	foreignKey func(*Snapshot) string

	// identityKey carries the acting user on create.
	identityKey string

	// prune drops the descendants of a removed child.
	prune func(*Snapshot, okr.ID)

	// parentKnown reports whether id may own children of this level in s.
	parentKnown func(s *Snapshot, id okr.ID) bool
}

func fixedKey(key string) func(*Snapshot) string {
	return func(*Snapshot) string { return key }
}

var epicLevel = level[okr.Epic]{
	name:        okr.LevelEpic,
	store:       func(s *Snapshot) *Store[okr.Epic] { return s.Epics },
	resource:    func(api resource.API) resource.Resource[okr.Epic] { return api.Epics() },
	foreignKey:  fixedKey("project"),
	identityKey: identityOwner,
	prune:       func(s *Snapshot, id okr.ID) { dropSubtree(s, s.Objectives, id, pruneObjective) },
	parentKnown: func(s *Snapshot, id okr.ID) bool { return s.Kind.HasEpics() && id == s.RootID },
}

var objectiveLevel = level[okr.Objective]{
	name:        okr.LevelObjective,
	store:       func(s *Snapshot) *Store[okr.Objective] { return s.Objectives },
	resource:    func(api resource.API) resource.Resource[okr.Objective] { return api.Objectives() },
	foreignKey:  func(s *Snapshot) string { return SourceFor(s.Kind).ForeignKey() },
	identityKey: identityOwner,
	prune:       pruneObjective,
	parentKnown: func(s *Snapshot, id okr.ID) bool {
		if !s.Kind.HasEpics() {
			return id == s.RootID
		}
		return owned(s.Epics, id)
	},
}

var keyResultLevel = level[okr.KeyResult]{
	name:        okr.LevelKeyResult,
	store:       func(s *Snapshot) *Store[okr.KeyResult] { return s.KeyResults },
	resource:    func(api resource.API) resource.Resource[okr.KeyResult] { return api.KeyResults() },
	foreignKey:  fixedKey("objective"),
	identityKey: identityOwner,
	prune:       pruneKeyResult,
	parentKnown: func(s *Snapshot, id okr.ID) bool { return owned(s.Objectives, id) },
}

var activityLevel = level[okr.Activity]{
	name:        okr.LevelActivity,
	store:       func(s *Snapshot) *Store[okr.Activity] { return s.Activities },
	resource:    func(api resource.API) resource.Resource[okr.Activity] { return api.Activities() },
	foreignKey:  fixedKey("okr"),
	identityKey: identityOwner,
	prune:       pruneActivity,
	parentKnown: func(s *Snapshot, id okr.ID) bool { return owned(s.KeyResults, id) },
}

var taskLevel = level[okr.Task]{
	name:        okr.LevelTask,
	store:       func(s *Snapshot) *Store[okr.Task] { return s.Tasks },
	resource:    func(api resource.API) resource.Resource[okr.Task] { return api.Tasks() },
	foreignKey:  fixedKey("activity"),
	identityKey: identityAssignee,
	prune:       func(*Snapshot, okr.ID) {},
	parentKnown: func(s *Snapshot, id okr.ID) bool { return owned(s.Activities, id) },
}

func owned[T okr.Node](store *Store[T], id okr.ID) bool {
	_, ok := store.Owner(id)
	return ok
}

func pruneObjective(s *Snapshot, id okr.ID) { dropSubtree(s, s.KeyResults, id, pruneKeyResult) }
func pruneKeyResult(s *Snapshot, id okr.ID) { dropSubtree(s, s.Activities, id, pruneActivity) }
func pruneActivity(s *Snapshot, id okr.ID)  { dropSubtree(s, s.Tasks, id, func(*Snapshot, okr.ID) {}) }

// dropSubtree removes the bucket owned by parentID from store and recurses
// into every child it held. The backend cascades deletes, so the mirror does too.
func dropSubtree[T okr.Node](s *Snapshot, store *Store[T], parentID okr.ID, next func(*Snapshot, okr.ID)) {
	for _, child := range store.Drop(parentID) {
		next(s, child.NodeID())
	}
}

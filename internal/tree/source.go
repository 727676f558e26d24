package tree

import (
	"context"

	"github.com/dyluth/canopy/pkg/okr"
)

// ObjectiveSource decides where a root's Objectives come from. Mission
// roots reach them through Epics; Project roots embed them in the root
// detail payload.
type ObjectiveSource interface {
	// Name identifies the variant in logs.
	Name() string

	// ForeignKey is the wire key linking an Objective to its parent, used
	// both as the list filter and in create/update bodies.
	ForeignKey() string

	// populate fills the Epic and Objective stores of snap and returns the
	// objective ids to fan out from, in bucket order.
	populate(ctx context.Context, l *Loader, detail okr.RootDetail, snap *Snapshot) ([]okr.ID, error)
}

// ViaEpic loads the Epic list of the root, then the Objectives of each Epic.
type ViaEpic struct{}

func (ViaEpic) Name() string       { return "via_epic" }
func (ViaEpic) ForeignKey() string { return "epic" }

func (ViaEpic) populate(ctx context.Context, l *Loader, _ okr.RootDetail, snap *Snapshot) ([]okr.ID, error) {
	epicIDs, err := fanOut(ctx, l, snap, epicLevel, []okr.ID{snap.RootID})
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, l, snap, objectiveLevel, epicIDs)
}

// Direct takes the Objectives embedded in the root detail. No list call is made.
type Direct struct{}

func (Direct) Name() string       { return "direct" }
func (Direct) ForeignKey() string { return "project" }

func (Direct) populate(_ context.Context, l *Loader, detail okr.RootDetail, snap *Snapshot) ([]okr.ID, error) {
	snap.Objectives.Set(snap.RootID, detail.Objectives)
	ids := nodeIDs(snap.Objectives.Get(snap.RootID))
	l.logEvent("level_fetched", map[string]interface{}{
		"root_id":    snap.RootID,
		"node_level": okr.LevelObjective,
		"parents":    1,
		"children":   len(ids),
		"source":     "embedded",
	})
	return ids, nil
}

// SourceFor returns the ObjectiveSource for kind.
func SourceFor(kind okr.RootKind) ObjectiveSource {
	if kind.HasEpics() {
		return ViaEpic{}
	}
	return Direct{}
}

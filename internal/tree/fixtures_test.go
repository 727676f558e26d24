package tree

import (
	"context"
	"sync"
	"testing"

	"github.com/dyluth/canopy/internal/testutil"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/require"
)

// missionAPI serves Mission M1:
//
//	M1 → E1 → O1 → K1 → A1, A2, A3
//	                     A2 → T1
//	M1 → E1 → O2
func missionAPI() *testutil.FakeAPI {
	api := testutil.NewFakeAPI()
	api.AddRoot(okr.Root{ID: "M1", Name: "Mission one"}, okr.KindMission)
	api.EpicStore.Seed(okr.Epic{ID: "E1", Project: "M1", Title: "Epic one"})
	api.ObjectiveStore.Seed(
		okr.Objective{ID: "O1", Epic: "E1", Title: "Objective one"},
		okr.Objective{ID: "O2", Epic: "E1", Title: "Objective two"},
	)
	api.KeyResultStore.Seed(okr.KeyResult{ID: "K1", Objective: "O1", Title: "Key result", TargetValue: 10, Progress: 40})
	api.ActivityStore.Seed(
		okr.Activity{ID: "A1", KeyResult: "K1", Name: "Activity one", StartDate: "2026-01-01", Progress: 10},
		okr.Activity{ID: "A2", KeyResult: "K1", Name: "Activity two", StartDate: "2026-01-01"},
		okr.Activity{ID: "A3", KeyResult: "K1", Name: "Activity three", StartDate: "2026-01-01"},
	)
	api.TaskStore.Seed(okr.Task{ID: "T1", Activity: "A2", Title: "Task one", Status: okr.TaskStatusBacklog, CompletionPercentage: 25})
	return api
}

// projectAPI serves Project P1 with O1 and O2 embedded. O1 has K1; O2 has
// no key results.
func projectAPI() *testutil.FakeAPI {
	api := testutil.NewFakeAPI()
	api.AddRoot(okr.Root{ID: "P1", Name: "Project one"}, okr.KindProject)
	api.ObjectiveStore.Seed(
		okr.Objective{ID: "O1", Project: "P1", Title: "Objective one"},
		okr.Objective{ID: "O2", Project: "P1", Title: "Objective two"},
	)
	api.KeyResultStore.Seed(okr.KeyResult{ID: "K1", Objective: "O1", Title: "Key result"})
	return api
}

func quiet() Option {
	return WithLogger(nil)
}

func loadedEngine(t *testing.T, api *testutil.FakeAPI, rootID okr.ID, kind okr.RootKind, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(api, "7", append([]Option{quiet()}, opts...)...)
	_, err := e.Load(context.Background(), rootID, kind)
	require.NoError(t, err)
	api.ResetCalls()
	return e
}

// assertContainment checks every bucket key at a level is a child id known
// at the level above.
func assertContainment(t *testing.T, snap *Snapshot) {
	t.Helper()
	contains := func(ids []okr.ID, id okr.ID) bool {
		for _, known := range ids {
			if known == id {
				return true
			}
		}
		return false
	}

	objectiveParents := snap.ObjectiveParents()
	for _, p := range snap.Objectives.Parents() {
		require.True(t, contains(objectiveParents, p), "objective bucket %s has no parent", p)
	}
	for _, p := range snap.KeyResults.Parents() {
		require.True(t, contains(snap.Objectives.IDs(), p), "key result bucket %s has no parent", p)
	}
	for _, p := range snap.Activities.Parents() {
		require.True(t, contains(snap.KeyResults.IDs(), p), "activity bucket %s has no parent", p)
	}
	for _, p := range snap.Tasks.Parents() {
		require.True(t, contains(snap.Activities.IDs(), p), "task bucket %s has no parent", p)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Event(nil), p.events...)
}

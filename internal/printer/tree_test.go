package printer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/assert"
)

func TestPartialLoad(t *testing.T) {
	t.Run("complete snapshot prints nothing", func(t *testing.T) {
		_, errOut := capture(t)
		PartialLoad(tree.NewSnapshot("M1", okr.KindMission))
		PartialLoad(nil)
		assert.Empty(t, errOut.String())
	})

	t.Run("lists failures", func(t *testing.T) {
		_, errOut := capture(t)
		snap := tree.NewSnapshot("M1", okr.KindMission)
		snap.Failures = []*tree.FetchFailure{{Level: okr.LevelTask, ParentID: "A2", Err: errors.New("502")}}

		PartialLoad(snap)
		assert.Contains(t, errOut.String(), "Partial tree: 1 subtree could not be loaded")
		assert.Contains(t, errOut.String(), "Task under A2: 502")
	})

	t.Run("caps the list", func(t *testing.T) {
		_, errOut := capture(t)
		snap := tree.NewSnapshot("M1", okr.KindMission)
		for i := 0; i < 7; i++ {
			snap.Failures = append(snap.Failures, &tree.FetchFailure{Level: okr.LevelActivity, ParentID: okr.ID(fmt.Sprint(i)), Err: errors.New("boom")})
		}

		PartialLoad(snap)
		assert.Contains(t, errOut.String(), "7 subtrees")
		assert.Contains(t, errOut.String(), "...and 2 more")
		assert.NotContains(t, errOut.String(), "Activity under 5")
	})
}

func TestExplain(t *testing.T) {
	unauthorized := &resource.StatusError{Method: "GET", Path: "/tasks/", StatusCode: http.StatusUnauthorized}

	tests := []struct {
		name   string
		err    error
		title  string
		output string
	}{
		{"not loaded", tree.ErrNotLoaded, "No tree loaded", "canopy show"},
		{"superseded", fmt.Errorf("load: %w", tree.ErrSuperseded), "Load superseded", "Retry"},
		{"timeout", context.DeadlineExceeded, "Request timed out", "api.timeout"},
		{"orphan", &tree.OrphanChildError{Level: okr.LevelTask, ChildID: "T1", ParentID: "A1"}, "Task not found", "Parent: A1"},
		{"unknown parent", &tree.UnknownParentError{Level: okr.LevelKeyResult, ParentID: "OX", RootID: "P1", Kind: okr.KindProject}, "Cannot create Key Result there", "Parent: OX"},
		{"unauthorized", &tree.MutationFailure{Level: okr.LevelTask, Op: tree.OpCreate, ID: "A1", Err: unauthorized}, "Backend rejected credentials", "api.token_env"},
		{"mutation", &tree.MutationFailure{Level: okr.LevelKeyResult, Op: tree.OpUpdate, ID: "K1", Err: errors.New("400")}, "Failed to update Key Result", "Local state was not modified"},
		{"fetch", &tree.FetchFailure{Level: okr.LevelEpic, ParentID: "M1", Err: errors.New("500")}, "Failed to load tree", "Fetching Epic failed"},
		{"other", errors.New("disk full"), "Error", "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut := capture(t)
			err := Explain(tt.err)
			assert.EqualError(t, err, tt.title)
			assert.Contains(t, errOut.String(), tt.output)
		})
	}

	assert.NoError(t, Explain(nil))
}

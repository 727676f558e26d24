package tree

import (
	"context"
	"testing"

	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpansionToggle(t *testing.T) {
	x := NewExpansion()
	ref := NodeRef{Level: okr.LevelObjective, ID: "O1"}

	assert.False(t, x.IsExpanded(ref))
	assert.True(t, x.Toggle(ref))
	assert.True(t, x.IsExpanded(ref))
	assert.False(t, x.Toggle(ref))
	assert.False(t, x.IsExpanded(ref))
}

func TestExpansionIDsAreScopedByLevel(t *testing.T) {
	x := NewExpansion(NodeRef{Level: okr.LevelTask, ID: "1"})

	assert.True(t, x.IsExpanded(NodeRef{Level: okr.LevelTask, ID: "1"}))
	assert.False(t, x.IsExpanded(NodeRef{Level: okr.LevelActivity, ID: "1"}))
}

func TestExpansionRefsSorted(t *testing.T) {
	x := NewExpansion()
	x.Expand(NodeRef{Level: okr.LevelTask, ID: "T1"})
	x.Expand(NodeRef{Level: okr.LevelEpic, ID: "E2"})
	x.Expand(NodeRef{Level: okr.LevelEpic, ID: "E1"})
	x.Expand(NodeRef{Level: okr.LevelRoot, ID: "M1"})
	x.Collapse(NodeRef{Level: okr.LevelTask, ID: "T1"})

	assert.Equal(t, []NodeRef{
		{Level: okr.LevelRoot, ID: "M1"},
		{Level: okr.LevelEpic, ID: "E1"},
		{Level: okr.LevelEpic, ID: "E2"},
	}, x.Refs())
}

func TestExpansionPrune(t *testing.T) {
	e := loadedEngine(t, missionAPI(), "M1", okr.KindMission)
	x := NewExpansion(
		NodeRef{Level: okr.LevelRoot, ID: "M1"},
		NodeRef{Level: okr.LevelKeyResult, ID: "K1"},
		NodeRef{Level: okr.LevelActivity, ID: "A2"},
	)

	require.NoError(t, e.DeleteKeyResult(context.Background(), "O1", "K1"))

	assert.Equal(t, 2, x.Prune(e.Snapshot()))
	assert.Equal(t, []NodeRef{{Level: okr.LevelRoot, ID: "M1"}}, x.Refs())
}

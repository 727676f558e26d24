package outline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/resolver"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missionSnapshot() *tree.Snapshot {
	snap := tree.NewSnapshot("M1", okr.KindMission)
	snap.Root = okr.Root{ID: "M1", Name: "Grow the business", Kind: "mision"}
	snap.Generation = 3
	snap.LoadedAt = time.Now().Add(-90 * time.Second)
	snap.Epics.Set("M1", []okr.Epic{{ID: "E1", Project: "M1", Title: "Europe"}})
	snap.Objectives.Set("E1", []okr.Objective{
		{ID: "O1", Epic: "E1", Title: "Win accounts"},
		{ID: "O2", Epic: "E1", Title: "Hire"},
	})
	snap.KeyResults.Set("O1", []okr.KeyResult{{ID: "K1", Objective: "O1", Title: "Sign logos", CurrentValue: 4, TargetValue: 10, Progress: 40}})
	snap.KeyResults.Set("O2", nil)
	snap.Activities.Set("K1", []okr.Activity{
		{ID: "A1", KeyResult: "K1", Name: "Outreach", StartDate: "2025-10-01", EndDate: "2025-10-31", Progress: 10},
		{ID: "A2", KeyResult: "K1", Name: "Events", StartDate: "2025-11-01"},
	})
	snap.Tasks.Set("A1", []okr.Task{
		{ID: "T1", Activity: "A1", Title: "Call list", Status: okr.TaskStatusInProgress, CompletionPercentage: 25, AssigneeName: "ana"},
		{ID: "T2", Activity: "A1", Title: "Email list", Status: okr.TaskStatusCompleted, CompletionPercentage: 100},
	})
	snap.Tasks.Set("A2", nil)
	return snap
}

func TestRenderDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, missionSnapshot(), Options{}))

	output := buf.String()
	assert.Contains(t, output, "Mission 'Grow the business' (M1)")
	assert.Contains(t, output, "generation 3, loaded 1m ago")
	assert.Contains(t, output, "└── [epic] E1  Europe")
	assert.Contains(t, output, "    ├── [objective] O1  Win accounts")
	assert.Contains(t, output, "[kr] K1  Sign logos  4/10 (40%)")
	assert.Contains(t, output, "[activity] A1  Outreach  2025-10-01..2025-10-31 (10%)")
	assert.Contains(t, output, "[activity] A2  Events  2025-11-01.. (0%)")
	assert.Contains(t, output, "[task] T1  Call list  in_progress (25%) @ana")
	assert.Contains(t, output, "1 epic, 2 objectives, 1 key result, 2 activities, 2 tasks")

	// Siblings after the first objective keep the vertical rule.
	assert.Contains(t, output, "    │   └── [kr] K1")
}

func TestRenderEmptyRoot(t *testing.T) {
	snap := tree.NewSnapshot("P1", okr.KindProject)
	snap.Root = okr.Root{ID: "P1", Name: "Side project"}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, Options{}))

	assert.Contains(t, buf.String(), "Project 'Side project' (P1)")
	assert.Contains(t, buf.String(), "loaded never")
	assert.Contains(t, buf.String(), "No objectives found")
}

func TestRenderWithExpansion(t *testing.T) {
	snap := missionSnapshot()
	expansion := tree.NewExpansion(
		tree.NodeRef{Level: okr.LevelEpic, ID: "E1"},
		tree.NodeRef{Level: okr.LevelObjective, ID: "O1"},
	)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, Options{Expansion: expansion}))

	output := buf.String()
	assert.Contains(t, output, "[kr] K1  Sign logos  4/10 (40%)  (+2 hidden)")
	assert.NotContains(t, output, "[activity]")
	// O2 has an empty bucket, so nothing is hidden.
	assert.Contains(t, output, "[objective] O2  Hire\n")
}

func TestRenderCollapsedEverything(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, missionSnapshot(), Options{Expansion: tree.NewExpansion()}))

	output := buf.String()
	assert.Contains(t, output, "[epic] E1  Europe  (+2 hidden)")
	assert.Contains(t, output, "1 epic\n")
}

func TestRenderWithFilter(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Filter: &Criteria{Statuses: []okr.TaskStatus{okr.TaskStatusCompleted}}}
	require.NoError(t, Render(&buf, missionSnapshot(), opts))

	output := buf.String()
	assert.Contains(t, output, "[task] T2")
	assert.NotContains(t, output, "[task] T1")
	assert.Contains(t, output, "1 task")
}

func TestRenderJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, missionSnapshot(), Options{Format: OutputFormatJSONL}))

	var nodes []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var n map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &n))
		nodes = append(nodes, n)
	}

	require.Len(t, nodes, 8)
	assert.Equal(t, "epic", nodes[0]["level"])
	assert.Equal(t, "M1", nodes[0]["parent_id"])
	assert.Equal(t, float64(1), nodes[0]["depth"])
	assert.NotContains(t, nodes[0], "children")

	assert.Equal(t, "A2", nodes[6]["id"])
	assert.Equal(t, float64(4), nodes[6]["depth"])

	last := nodes[len(nodes)-1]
	assert.Equal(t, "objective", last["level"])
	assert.Equal(t, "O2", last["id"])
	assert.Equal(t, "E1", last["parent_id"])

	task := nodes[4]
	assert.Equal(t, "T1", task["id"])
	entity := task["entity"].(map[string]any)
	assert.Equal(t, "Call list", entity["title"])
}

func TestRenderJSON(t *testing.T) {
	snap := missionSnapshot()
	snap.Failures = []*tree.FetchFailure{{Level: okr.LevelTask, ParentID: "A9", Err: errors.New("timeout")}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, Options{Format: OutputFormatJSON}))

	var doc struct {
		RootID     string `json:"root_id"`
		Kind       string `json:"kind"`
		Generation int    `json:"generation"`
		Partial    bool   `json:"partial"`
		Failures   []struct {
			Level    string `json:"level"`
			ParentID string `json:"parent_id"`
			Error    string `json:"error"`
		} `json:"failures"`
		Tree struct {
			Level    string `json:"level"`
			Children []struct {
				ID       string `json:"id"`
				Children []struct {
					ID string `json:"id"`
				} `json:"children"`
			} `json:"children"`
		} `json:"tree"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "M1", doc.RootID)
	assert.Equal(t, "mission", doc.Kind)
	assert.Equal(t, 3, doc.Generation)
	assert.True(t, doc.Partial)
	require.Len(t, doc.Failures, 1)
	assert.Equal(t, "timeout", doc.Failures[0].Error)
	assert.Equal(t, "root", doc.Tree.Level)
	require.Len(t, doc.Tree.Children, 1)
	require.Len(t, doc.Tree.Children[0].Children, 2)
	assert.Equal(t, "O1", doc.Tree.Children[0].Children[0].ID)
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Render(&buf, nil, Options{}), tree.ErrNotLoaded)

	err := Render(&buf, missionSnapshot(), Options{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"default", "jsonl", "json"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, OutputFormat(s), f)
	}

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestRenderNode(t *testing.T) {
	snap := missionSnapshot()

	var buf bytes.Buffer
	require.NoError(t, RenderNode(&buf, snap, "", "K1"))

	var n struct {
		Level    string         `json:"level"`
		ParentID string         `json:"parent_id"`
		Entity   map[string]any `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &n))
	assert.Equal(t, "key_result", n.Level)
	assert.Equal(t, "O1", n.ParentID)
	assert.Equal(t, "Sign logos", n.Entity["key_result"])

	err := RenderNode(&buf, snap, okr.LevelTask, "K1")
	assert.True(t, resolver.IsNotFoundError(err))
}

func TestRenderCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := mirror.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	t.Run("not cached", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := RenderCached(ctx, client, "M1", Options{}, &buf)
		require.Error(t, err)
		assert.True(t, IsNotCached(err))
		assert.Contains(t, err.Error(), "namespace 'test-ns'")
	})

	t.Run("cached copy", func(t *testing.T) {
		require.NoError(t, client.SaveSnapshot(ctx, missionSnapshot()))

		var buf bytes.Buffer
		snap, err := RenderCached(ctx, client, "M1", Options{}, &buf)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), snap.Generation)
		assert.Contains(t, buf.String(), "[task] T1  Call list")
		assert.Contains(t, buf.String(), "1 epic, 2 objectives, 1 key result, 2 activities, 2 tasks")
	})

	t.Run("redis down", func(t *testing.T) {
		down := miniredis.NewMiniRedis()
		require.NoError(t, down.Start())
		addr := down.Addr()
		down.Close()

		unreachable, err := mirror.NewClient(&redis.Options{Addr: addr, MaxRetries: -1}, "test-ns")
		require.NoError(t, err)
		defer unreachable.Close()

		var buf bytes.Buffer
		_, err = RenderCached(ctx, unreachable, "M1", Options{}, &buf)
		require.Error(t, err)
		assert.False(t, IsNotCached(err))
	})
}

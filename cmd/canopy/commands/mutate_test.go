package commands

import (
	"path/filepath"
	"testing"

	"github.com/dyluth/canopy/internal/config"
	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommand(t *testing.T) {
	t.Run("task under activity", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		require.NoError(t, h.run("create", "task", "--root", "12", "--parent", "5", "--title", "Ring Acme", "--status", "in_progress"))
		assert.Contains(t, h.stdout.String(), "Created Task 1000 under 5")

		created, ok := h.api.TaskStore.Get("1000")
		require.True(t, ok)
		assert.Equal(t, "Ring Acme", created.Title)
		assert.Equal(t, okr.TaskStatusInProgress, created.Status)
		assert.Equal(t, okr.ID("5"), created.Activity)

		posts := h.api.CallsTo(resource.ResourceTasks, "POST")
		require.Len(t, posts, 1)
		assert.Equal(t, int64(5), posts[0].Body["assignee_id"])
		assert.NotContains(t, posts[0].Body, "completion_percentage")
	})

	t.Run("activity with explicit dates", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		require.NoError(t, h.run("create", "activity", "--root", "12", "--parent", "4", "--title", "Demo day", "--start", "2025-11-01", "--end", "2025-11-30"))

		created, ok := h.api.ActivityStore.Get("1000")
		require.True(t, ok)
		assert.Equal(t, "2025-11-01", created.StartDate)
		assert.Equal(t, "2025-11-30", created.EndDate)
		assert.Equal(t, okr.ID("4"), created.KeyResult)
	})

	t.Run("project objective defaults to the root", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedProject()

		require.NoError(t, h.run("create", "objective", "--root", "30", "--title", "Launch"))

		created, ok := h.api.ObjectiveStore.Get("1000")
		require.True(t, ok)
		assert.Equal(t, okr.ID("30"), created.Project)
		assert.True(t, created.Epic.IsZero())
	})

	t.Run("mission objective needs a parent", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		err := h.run("create", "objective", "--root", "12", "--title", "Orphan")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--parent is required")
		assert.Empty(t, h.api.CallsTo(resource.ResourceObjectives, "POST"))
	})

	t.Run("projects have no epics", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedProject()

		err := h.run("create", "epic", "--root", "30", "--title", "Nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "projects have no epics")
		assert.Empty(t, h.api.CallsTo(resource.ResourceEpics, "POST"))
	})

	t.Run("title required", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		err := h.run("create", "task", "--root", "12", "--parent", "5")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--title is required")
		assert.Empty(t, h.api.Calls(), "nothing is loaded before flags are valid")
	})
}

func TestUpdateCommand(t *testing.T) {
	t.Run("task status keeps other fields", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		require.NoError(t, h.run("update", "task", "6", "--root", "12", "--status", "completed"))
		assert.Contains(t, h.stdout.String(), "Updated Task 6")

		updated, ok := h.api.TaskStore.Get("6")
		require.True(t, ok)
		assert.Equal(t, okr.TaskStatusCompleted, updated.Status)
		assert.Equal(t, "Call list", updated.Title)
		assert.Equal(t, 25, updated.CompletionPercentage)

		puts := h.api.CallsTo(resource.ResourceTasks, "PUT")
		require.Len(t, puts, 1)
		assert.Equal(t, int64(5), puts[0].Body["activity"], "parent key is re-sent on update")
	})

	t.Run("key result values", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		require.NoError(t, h.run("update", "kr", "4", "--root", "12", "--current", "7"))

		updated, ok := h.api.KeyResultStore.Get("4")
		require.True(t, ok)
		assert.Equal(t, 7, updated.CurrentValue)
		assert.Equal(t, 10, updated.TargetValue)
		assert.Equal(t, 40, updated.Progress)
	})

	t.Run("nothing to update", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		err := h.run("update", "task", "6", "--root", "12")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing to update")
		assert.Empty(t, h.api.Calls())
	})

	t.Run("unknown node", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		err := h.run("update", "task", "99", "--root", "12", "--title", "Ghost")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.Empty(t, h.api.CallsTo(resource.ResourceTasks, "PUT"))
	})

	t.Run("roots are read-only", func(t *testing.T) {
		h := newHarness(t, false)

		err := h.run("update", "root", "12", "--root", "12", "--title", "Renamed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "roots are read-only")
	})
}

func TestDeleteCommand(t *testing.T) {
	t.Run("parent looked up in the tree", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		require.NoError(t, h.run("delete", "task", "7", "--root", "12"))
		assert.Contains(t, h.stdout.String(), "Deleted Task 7")

		_, ok := h.api.TaskStore.Get("7")
		assert.False(t, ok)
		_, ok = h.api.TaskStore.Get("6")
		assert.True(t, ok)
	})

	t.Run("wrong parent is rejected locally", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()

		err := h.run("delete", "task", "7", "--root", "12", "--parent", "4")
		require.Error(t, err)
		assert.Empty(t, h.api.CallsTo(resource.ResourceTasks, "DELETE"))

		_, ok := h.api.TaskStore.Get("7")
		assert.True(t, ok)
	})

	t.Run("backend failure", func(t *testing.T) {
		h := newHarness(t, false)
		h.seedMission()
		h.api.FailDelete(resource.ResourceTasks, "7", &resource.StatusError{Method: "DELETE", Path: "/tasks/7/", StatusCode: 500})

		err := h.run("delete", "task", "7", "--root", "12")
		require.Error(t, err)

		_, ok := h.api.TaskStore.Get("7")
		assert.True(t, ok)
	})
}

func TestCreateUpdatesMirror(t *testing.T) {
	h := newHarness(t, true)
	h.seedMission()

	require.NoError(t, h.run("create", "task", "--root", "12", "--parent", "5", "--title", "Cached"))

	require.NoError(t, h.run("show", "12", "--cached"))
	assert.Contains(t, h.stdout.String(), "[task] 1000  Cached")
}

func TestInitCommand(t *testing.T) {
	h := newHarness(t, false)
	dir := t.TempDir()

	require.NoError(t, h.run("init", "--dir", dir, "--base-url", "https://okr.example.com/api/", "--user-id", "9"))

	cfg, err := config.Load(filepath.Join(dir, config.DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, "https://okr.example.com/api/", cfg.API.BaseURL)
	assert.Equal(t, okr.ID("9"), cfg.UserID())

	err = h.run("init", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

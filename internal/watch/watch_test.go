package watch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func cachedSnapshot(loadedAt time.Time) *tree.Snapshot {
	snap := tree.NewSnapshot("P1", okr.KindProject)
	snap.Root = okr.Root{ID: "P1", Name: "Project"}
	snap.LoadedAt = loadedAt
	snap.Objectives.Set("P1", []okr.Objective{{ID: "O1", Project: "P1", Title: "Objective"}})
	return snap
}

func TestPollForSnapshot(t *testing.T) {
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()

	client, err := mirror.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	defer client.Close()

	t.Run("returns snapshot when cached already", func(t *testing.T) {
		require.NoError(t, client.SaveSnapshot(ctx, cachedSnapshot(time.Now())))
		defer client.DeleteSnapshot(ctx, "P1")

		snap, err := PollForSnapshot(ctx, client, "P1", time.Time{}, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, okr.ID("P1"), snap.RootID)
		require.Len(t, snap.Objectives.Get("P1"), 1)
	})

	t.Run("returns snapshot when cached after delay", func(t *testing.T) {
		defer client.DeleteSnapshot(ctx, "P1")

		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = client.SaveSnapshot(ctx, cachedSnapshot(time.Now()))
		}()

		snap, err := PollForSnapshot(ctx, client, "P1", time.Time{}, 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, snap)
	})

	t.Run("waits for a newer copy", func(t *testing.T) {
		defer client.DeleteSnapshot(ctx, "P1")

		since := time.Now()
		require.NoError(t, client.SaveSnapshot(ctx, cachedSnapshot(since.Add(-time.Minute))))

		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = client.SaveSnapshot(ctx, cachedSnapshot(since.Add(time.Second)))
		}()

		snap, err := PollForSnapshot(ctx, client, "P1", since, 2*time.Second)
		require.NoError(t, err)
		require.True(t, snap.LoadedAt.After(since))
	})

	t.Run("returns timeout error when never cached", func(t *testing.T) {
		snap, err := PollForSnapshot(ctx, client, "P404", time.Time{}, 500*time.Millisecond)
		require.Error(t, err)
		require.Nil(t, snap)
		require.Contains(t, err.Error(), "timeout waiting for cached tree P404")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(300 * time.Millisecond)
			cancel()
		}()

		snap, err := PollForSnapshot(cancelCtx, client, "P404", time.Time{}, 5*time.Second)
		require.ErrorIs(t, err, context.Canceled)
		require.Nil(t, snap)
	})
}

// Package watch follows the mirror: it streams tree events as they are
// published and waits for cached snapshots to appear.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// PollInterval is how often PollForSnapshot checks the mirror.
const PollInterval = 200 * time.Millisecond

// PollForSnapshot polls for a cached copy of rootID loaded after newerThan
// (zero accepts any copy). Returns the snapshot or an error if timeout occurs.
func PollForSnapshot(ctx context.Context, client *mirror.Client, rootID okr.ID, newerThan time.Time, timeout time.Duration) (*tree.Snapshot, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for cached tree %s after %v", rootID, timeout)

		case <-ticker.C:
			snap, err := client.LoadSnapshot(ctx, rootID)
			if err != nil {
				if mirror.IsNotFound(err) {
					// Not cached yet, continue polling
					continue
				}
				return nil, fmt.Errorf("failed to query cached tree: %w", err)
			}

			if !newerThan.IsZero() && !snap.LoadedAt.After(newerThan) {
				continue
			}
			return snap, nil
		}
	}
}

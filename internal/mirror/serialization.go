package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// Serialization helpers for the snapshot metadata hash. Scalars are stored as
// individual fields; the root entity and the degraded-fetch list are JSON.

type failureRecord struct {
	Level    okr.Level `json:"level"`
	ParentID okr.ID    `json:"parent_id"`
	Error    string    `json:"error"`
}

// SnapshotToHash converts the non-bucket parts of a snapshot to a Redis hash.
func SnapshotToHash(snap *tree.Snapshot) (map[string]interface{}, error) {
	rootJSON, err := json.Marshal(snap.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal root: %w", err)
	}

	failures := make([]failureRecord, 0, len(snap.Failures))
	for _, f := range snap.Failures {
		record := failureRecord{Level: f.Level, ParentID: f.ParentID}
		if f.Err != nil {
			record.Error = f.Err.Error()
		}
		failures = append(failures, record)
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal failures: %w", err)
	}

	return map[string]interface{}{
		"root_id":      snap.RootID.String(),
		"kind":         string(snap.Kind),
		"root":         string(rootJSON),
		"failures":     string(failuresJSON),
		"generation":   snap.Generation,
		"loaded_at_ms": snap.LoadedAt.UnixMilli(),
	}, nil
}

// HashToSnapshot converts a metadata hash back to a snapshot with empty stores.
func HashToSnapshot(hash map[string]string) (*tree.Snapshot, error) {
	rootID := okr.ID(hash["root_id"])
	if rootID.IsZero() {
		return nil, fmt.Errorf("missing root_id field")
	}

	kind := okr.RootKind(hash["kind"])
	if err := kind.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kind field: %w", err)
	}

	generation, err := strconv.ParseUint(hash["generation"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid generation field: %w", err)
	}

	loadedAtMs, _ := strconv.ParseInt(hash["loaded_at_ms"], 10, 64)

	snap := tree.NewSnapshot(rootID, kind)
	snap.Generation = generation
	snap.LoadedAt = time.UnixMilli(loadedAtMs)

	if rootJSON := hash["root"]; rootJSON != "" {
		if err := json.Unmarshal([]byte(rootJSON), &snap.Root); err != nil {
			return nil, fmt.Errorf("failed to unmarshal root: %w", err)
		}
	}

	if failuresJSON := hash["failures"]; failuresJSON != "" {
		var records []failureRecord
		if err := json.Unmarshal([]byte(failuresJSON), &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failures: %w", err)
		}
		for _, r := range records {
			snap.Failures = append(snap.Failures, &tree.FetchFailure{
				Level:    r.Level,
				ParentID: r.ParentID,
				Err:      errors.New(r.Error),
			})
		}
	}

	return snap, nil
}

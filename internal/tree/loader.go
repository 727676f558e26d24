package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
	"golang.org/x/sync/errgroup"
)

// Loader builds a Snapshot of one tree by walking it level by level.
//
// Each level is fetched in full before the next begins: the list calls of a
// level run in parallel (bounded by the configured concurrency), and their
// results are written to the store in parent order once all have returned.
// A level with no parents issues no calls.
type Loader struct {
	api  resource.API
	opts options
}

// NewLoader returns a Loader backed by api.
func NewLoader(api resource.API, opts ...Option) *Loader {
	return &Loader{api: api, opts: buildOptions(opts)}
}

// Load fetches the root detail and every level below it. The root fetch is
// always fatal. Other levels follow the configured FailurePolicy; degraded
// parents are listed in Snapshot.Failures.
func (l *Loader) Load(ctx context.Context, rootID okr.ID, kind okr.RootKind) (*Snapshot, error) {
	if rootID.IsZero() {
		return nil, fmt.Errorf("root id is required")
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	start := l.opts.now()
	source := SourceFor(kind)
	l.logEvent("load_started", map[string]interface{}{
		"root_id": rootID,
		"kind":    kind,
		"source":  source.Name(),
		"policy":  l.opts.policy.Name,
	})

	snap, err := l.load(ctx, rootID, kind, source)
	elapsed := l.opts.now().Sub(start)
	l.opts.metrics.observeLoad(kind, elapsed, err)
	if err != nil {
		l.logEvent("load_failed", map[string]interface{}{
			"root_id":     rootID,
			"kind":        kind,
			"error":       err.Error(),
			"duration_ms": elapsed.Milliseconds(),
		})
		return nil, err
	}

	counts := snap.Counts()
	l.logEvent("load_complete", map[string]interface{}{
		"root_id":     rootID,
		"kind":        kind,
		"epics":       counts[okr.LevelEpic],
		"objectives":  counts[okr.LevelObjective],
		"key_results": counts[okr.LevelKeyResult],
		"activities":  counts[okr.LevelActivity],
		"tasks":       counts[okr.LevelTask],
		"degraded":    len(snap.Failures),
		"duration_ms": elapsed.Milliseconds(),
	})
	return snap, nil
}

func (l *Loader) load(ctx context.Context, rootID okr.ID, kind okr.RootKind, source ObjectiveSource) (*Snapshot, error) {
	detail, err := l.api.Root(ctx, rootID, kind)
	l.opts.metrics.observeFetch(okr.LevelRoot, err)
	if err != nil {
		return nil, &FetchFailure{Level: okr.LevelRoot, ParentID: rootID, Err: err}
	}

	snap := NewSnapshot(rootID, kind)
	snap.Root = detail.Root

	objectiveIDs, err := source.populate(ctx, l, detail, snap)
	if err != nil {
		return nil, err
	}
	keyResultIDs, err := fanOut(ctx, l, snap, keyResultLevel, objectiveIDs)
	if err != nil {
		return nil, err
	}
	activityIDs, err := fanOut(ctx, l, snap, activityLevel, keyResultIDs)
	if err != nil {
		return nil, err
	}
	if _, err := fanOut(ctx, l, snap, taskLevel, activityIDs); err != nil {
		return nil, err
	}

	snap.LoadedAt = l.opts.now()
	return snap, nil
}

// fanOut lists the children of every parent at lvl and stores them. It
// returns the child ids in parent order, each id once, for the next level.
func fanOut[T okr.Node](ctx context.Context, l *Loader, snap *Snapshot, lvl level[T], parents []okr.ID) ([]okr.ID, error) {
	if len(parents) == 0 {
		return nil, nil
	}

	mode := l.opts.policy.Mode(lvl.name)
	key := lvl.foreignKey(snap)
	res := lvl.resource(l.api)

	start := l.opts.now()
	results := make([][]T, len(parents))
	failed := make([]error, len(parents))

	g, gctx := errgroup.WithContext(ctx)
	if l.opts.concurrency > 0 {
		g.SetLimit(l.opts.concurrency)
	}
	for i, parentID := range parents {
		g.Go(func() error {
			children, err := res.List(gctx, resource.Parent{Key: key, ID: parentID})
			l.opts.metrics.observeFetch(lvl.name, err)
			if err != nil {
				if mode == Fatal || ctx.Err() != nil {
					return &FetchFailure{Level: lvl.name, ParentID: parentID, Err: err}
				}
				failed[i] = err
				return nil
			}
			results[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store := lvl.store(snap)
	degraded := 0
	for i, parentID := range parents {
		if failed[i] != nil {
			degraded++
			failure := &FetchFailure{Level: lvl.name, ParentID: parentID, Err: failed[i]}
			snap.Failures = append(snap.Failures, failure)
			l.logEvent("fetch_degraded", map[string]interface{}{
				"root_id":    snap.RootID,
				"node_level": lvl.name,
				"parent_id":  parentID,
				"error":      failed[i].Error(),
			})
			continue
		}
		store.Set(parentID, results[i])
	}
	// Set may move a child reported under two parents, so collect ids only
	// after every bucket is written.
	seen := make(map[okr.ID]struct{})
	var next []okr.ID
	for _, parentID := range parents {
		for _, child := range store.Get(parentID) {
			id := child.NodeID()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			next = append(next, id)
		}
	}

	l.logEvent("level_fetched", map[string]interface{}{
		"root_id":    snap.RootID,
		"node_level": lvl.name,
		"parents":    len(parents),
		"children":   len(next),
		"failures":   degraded,
		"latency_ms": l.opts.now().Sub(start).Milliseconds(),
	})
	return next, nil
}

// logEvent writes a structured JSON log line.
func (l *Loader) logEvent(eventType string, data map[string]interface{}) {
	writeEvent(l.opts, "loader", eventType, data)
}

func writeEvent(o options, component, eventType string, data map[string]interface{}) {
	data["timestamp"] = o.now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = component
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		o.logger.Printf("[Tree] Failed to marshal log event: %v", err)
		return
	}
	o.logger.Println(string(jsonData))
}

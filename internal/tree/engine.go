package tree

import (
	"context"
	"errors"
	"sync"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
)

// ErrSuperseded is returned by a load that finished after a newer load had
// started. Its result is discarded; the newer load wins.
var ErrSuperseded = errors.New("load superseded by a newer load")

// mutation is a committed change kept while loads are in flight so it can be
// replayed onto whatever snapshot those loads produce. apply must be
// idempotent: create upserts, update replaces only if present, delete
// removes only if present.
type mutation struct {
	op       Op
	level    okr.Level
	rootID   okr.ID
	entityID okr.ID
	gen      uint64 // newest load generation at commit time
	apply    func(*Snapshot)
}

// Engine owns the mirror of one tree and serialises every write to it.
//
// Loads are stamped with increasing generations. Only the newest load that
// finishes is installed; any mutation committed while it was in flight is
// replayed onto its result first, so a reload never reverts a confirmed write.
// Network calls are made without holding the lock.
type Engine struct {
	api    resource.API
	actor  okr.ID
	loader *Loader
	opts   options

	mu       sync.Mutex
	snap     *Snapshot
	latest   uint64
	inFlight int
	journal  []mutation
}

// NewEngine returns an Engine that talks to api and attributes created
// entities to actor.
func NewEngine(api resource.API, actor okr.ID, opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		api:    api,
		actor:  actor,
		loader: &Loader{api: api, opts: o},
		opts:   o,
	}
}

// Actor returns the identity sent on create.
func (e *Engine) Actor() okr.ID {
	return e.actor
}

// Load fetches a full tree and installs it as the mirror. A failed load
// leaves any previously installed snapshot untouched.
func (e *Engine) Load(ctx context.Context, rootID okr.ID, kind okr.RootKind) (*Snapshot, error) {
	e.mu.Lock()
	e.latest++
	gen := e.latest
	e.inFlight++
	e.mu.Unlock()

	snap, err := e.loader.Load(ctx, rootID, kind)

	e.mu.Lock()
	e.inFlight--
	if err != nil {
		e.settleJournal()
		e.mu.Unlock()
		return nil, err
	}
	if gen != e.latest {
		e.settleJournal()
		e.mu.Unlock()
		e.opts.metrics.observeDiscard()
		e.logEvent("stale_load_discarded", map[string]interface{}{
			"root_id":    rootID,
			"generation": gen,
			"latest":     e.latestGeneration(),
		})
		return nil, ErrSuperseded
	}

	snap.Generation = gen
	replayed := 0
	for _, m := range e.journal {
		if m.gen != gen || m.rootID != snap.RootID {
			continue
		}
		m.apply(snap)
		replayed++
		e.logEvent("mutation_replayed", map[string]interface{}{
			"root_id":    snap.RootID,
			"node_level": m.level,
			"op":         m.op,
			"entity_id":  m.entityID,
			"generation": gen,
		})
	}
	e.journal = nil
	e.snap = snap
	out := snap.Clone()
	e.mu.Unlock()

	e.opts.metrics.observeReplay(replayed)
	e.publish(ctx, newEvent(e.opts, EventTreeLoaded, snap.RootID, gen))
	return out, nil
}

// Snapshot returns a copy of the installed mirror, or nil before the first
// successful load.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil
	}
	return e.snap.Clone()
}

// Loading reports whether any load is in flight.
func (e *Engine) Loading() bool {
	return e.InFlight() > 0
}

// InFlight returns the number of loads in flight.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Generation returns the generation of the installed snapshot, or zero.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return 0
	}
	return e.snap.Generation
}

// commit applies m to the installed snapshot and journals it for any load
// still in flight. It returns the generation it was applied to.
func (e *Engine) commit(m mutation) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil && e.snap.RootID == m.rootID {
		m.apply(e.snap)
	}
	if e.inFlight > 0 {
		m.gen = e.latest
		e.journal = append(e.journal, m)
	}
	if e.snap == nil {
		return 0
	}
	return e.snap.Generation
}

// settleJournal drops journal entries once no load can consume them.
// Callers hold e.mu.
func (e *Engine) settleJournal() {
	if e.inFlight == 0 {
		e.journal = nil
	}
}

func (e *Engine) latestGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

func (e *Engine) publish(ctx context.Context, ev *Event) {
	if e.opts.publisher == nil {
		return
	}
	if err := e.opts.publisher.Publish(ctx, ev); err != nil {
		// Non-fatal: the mirror already reflects the change
		e.opts.logger.Printf("[Engine] Failed to publish %s event: %v", ev.Type, err)
	}
}

func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	writeEvent(e.opts, "engine", eventType, data)
}

// Package syncd keeps cached copies of configured trees fresh: it reloads
// each root on an interval and saves the result to the mirror.
package syncd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Target is one tree to keep refreshed.
type Target struct {
	RootID okr.ID
	Kind   okr.RootKind
}

// SnapshotStore persists loaded snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *tree.Snapshot) error
}

// Config configures a Refresher.
type Config struct {
	Targets  []Target
	Interval time.Duration
	Actor    okr.ID

	// EngineOptions are applied to every per-root engine.
	EngineOptions []tree.Option

	// Logger defaults to stderr.
	Logger *log.Logger

	// Registerer receives the refresher's own collectors. Nil disables them.
	Registerer prometheus.Registerer
}

// RootStatus is the last known outcome for one target.
type RootStatus struct {
	RootID        okr.ID       `json:"root_id"`
	Kind          okr.RootKind `json:"kind"`
	Refreshes     int          `json:"refreshes"`
	LastSuccessMs int64        `json:"last_success_ms,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Generation    uint64       `json:"generation"`
	Partial       bool         `json:"partial"`
}

// Refresher reloads every target in turn. Each root has its own Engine so
// generations and journals never mix between trees.
type Refresher struct {
	api       resource.API
	store     SnapshotStore
	cfg       Config
	logger    *log.Logger
	refreshes *prometheus.CounterVec
	lastOK    *prometheus.GaugeVec

	mu      sync.Mutex
	engines map[okr.ID]*tree.Engine
	status  map[okr.ID]*RootStatus
}

// NewRefresher creates a refresher. Interval defaults to 30s.
func NewRefresher(api resource.API, store SnapshotStore, cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	r := &Refresher{
		api:     api,
		store:   store,
		cfg:     cfg,
		logger:  cfg.Logger,
		engines: make(map[okr.ID]*tree.Engine),
		status:  make(map[okr.ID]*RootStatus),
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	for _, target := range cfg.Targets {
		r.status[target.RootID] = &RootStatus{RootID: target.RootID, Kind: target.Kind}
	}

	if cfg.Registerer != nil {
		factory := promauto.With(cfg.Registerer)
		r.refreshes = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_sync_refreshes_total",
			Help: "Refresh attempts per root, by outcome",
		}, []string{"root", "outcome"})
		r.lastOK = factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canopy_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh per root",
		}, []string{"root"})
	}

	return r
}

// Engine returns the engine used for rootID, creating it on first use.
func (r *Refresher) Engine(rootID okr.ID) *tree.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[rootID]
	if !ok {
		opts := append([]tree.Option{tree.WithLogger(r.logger)}, r.cfg.EngineOptions...)
		engine = tree.NewEngine(r.api, r.cfg.Actor, opts...)
		r.engines[rootID] = engine
	}
	return engine
}

// RefreshOnce reloads every target and saves each success. A failing
// target does not stop the others; their errors are joined.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	var errs []error
	for _, target := range r.cfg.Targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.refresh(ctx, target); err != nil {
			errs = append(errs, fmt.Errorf("root %s: %w", target.RootID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Refresher) refresh(ctx context.Context, target Target) error {
	snap, err := r.Engine(target.RootID).Load(ctx, target.RootID, target.Kind)
	if err == nil {
		err = r.store.SaveSnapshot(ctx, snap)
		if err != nil {
			err = fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	r.record(target, snap, err)

	if err != nil {
		r.logger.Printf("[Syncd] Refresh of %s %s failed: %v", target.Kind, target.RootID, err)
		return err
	}

	counts := snap.Counts()
	r.logEvent("root_refreshed", map[string]interface{}{
		"root_id":    target.RootID,
		"kind":       target.Kind,
		"generation": snap.Generation,
		"partial":    snap.Partial(),
		"tasks":      counts[okr.LevelTask],
	})
	return nil
}

func (r *Refresher) record(target Target, snap *tree.Snapshot, err error) {
	r.mu.Lock()
	status := r.status[target.RootID]
	status.Refreshes++
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.LastError = ""
		status.LastSuccessMs = snap.LoadedAt.UnixMilli()
		status.Generation = snap.Generation
		status.Partial = snap.Partial()
	}
	r.mu.Unlock()

	if r.refreshes == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.refreshes.WithLabelValues(target.RootID.String(), outcome).Inc()
	if err == nil {
		r.lastOK.WithLabelValues(target.RootID.String()).Set(float64(snap.LoadedAt.Unix()))
	}
}

// Status returns a copy of every target's status in configuration order.
func (r *Refresher) Status() []RootStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RootStatus, 0, len(r.cfg.Targets))
	for _, target := range r.cfg.Targets {
		out = append(out, *r.status[target.RootID])
	}
	return out
}

// Run refreshes immediately and then on every interval until ctx is
// cancelled. Refresh errors are logged and never stop the loop.
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.cfg.Targets) == 0 {
		return fmt.Errorf("no roots configured (set sync.roots in canopy.yml)")
	}

	r.logger.Printf("[Syncd] Refreshing %d root(s) every %s", len(r.cfg.Targets), r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		_ = r.RefreshOnce(ctx)

		select {
		case <-ctx.Done():
			r.logger.Printf("[Syncd] Shutting down...")
			return nil
		case <-ticker.C:
		}
	}
}

// logEvent emits a structured JSON log line.
func (r *Refresher) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "syncd"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		r.logger.Printf("[Syncd] Failed to marshal log event: %v", err)
		return
	}

	r.logger.Println(string(jsonData))
}

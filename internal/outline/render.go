// Package outline renders loaded trees for the command line.
package outline

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/resolver"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// OutputFormat specifies how to format the outline.
type OutputFormat string

const (
	// OutputFormatDefault draws an indented tree
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs one node per line
	OutputFormatJSONL OutputFormat = "jsonl"

	// OutputFormatJSON outputs the snapshot as one nested document
	OutputFormatJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputFormatDefault, OutputFormatJSONL, OutputFormatJSON:
		return f, nil
	case "":
		return OutputFormatDefault, nil
	}
	return "", fmt.Errorf("unknown output format: %s (must be default, jsonl or json)", s)
}

// Options control what Render shows.
type Options struct {
	Format OutputFormat

	// Expansion limits which subtrees are drawn. Nil shows everything.
	Expansion *tree.Expansion

	Filter *Criteria
}

// Render writes snap to w in the requested format.
func Render(w io.Writer, snap *tree.Snapshot, opts Options) error {
	if snap == nil {
		return tree.ErrNotLoaded
	}

	root := Build(snap, opts.Expansion, opts.Filter)

	switch opts.Format {
	case OutputFormatDefault, "":
		FormatTree(w, snap, root)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, root); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	case OutputFormatJSON:
		if err := FormatJSON(w, snap, root); err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}

	return nil
}

// RenderCached renders the copy of rootID held by the mirror without
// contacting the API. Returns the snapshot so callers can report on it.
func RenderCached(ctx context.Context, client *mirror.Client, rootID okr.ID, opts Options, w io.Writer) (*tree.Snapshot, error) {
	snap, err := client.LoadSnapshot(ctx, rootID)
	if err != nil {
		if mirror.IsNotFound(err) {
			return nil, &NotCachedError{RootID: rootID, Namespace: client.Namespace()}
		}
		return nil, fmt.Errorf("failed to read cached tree: %w", err)
	}

	if err := Render(w, snap, opts); err != nil {
		return nil, err
	}
	return snap, nil
}

// RenderNode writes a single node of snap as pretty-printed JSON.
// An empty level searches every level.
func RenderNode(w io.Writer, snap *tree.Snapshot, level okr.Level, id okr.ID) error {
	match, err := resolver.ResolveNode(snap, level, id)
	if err != nil {
		return err
	}

	n := &Node{Level: match.Ref.Level, ID: match.Ref.ID, ParentID: match.ParentID}
	n.Entity = entityOf(snap, match)

	if err := FormatSingleJSON(w, n); err != nil {
		return fmt.Errorf("failed to format %s: %w", match.Ref.Level, err)
	}
	return nil
}

func entityOf(snap *tree.Snapshot, m resolver.Match) any {
	switch m.Ref.Level {
	case okr.LevelRoot:
		return snap.Root
	case okr.LevelEpic:
		e, _, _ := snap.Epics.Find(m.Ref.ID)
		return e
	case okr.LevelObjective:
		o, _, _ := snap.Objectives.Find(m.Ref.ID)
		return o
	case okr.LevelKeyResult:
		k, _, _ := snap.KeyResults.Find(m.Ref.ID)
		return k
	case okr.LevelActivity:
		a, _, _ := snap.Activities.Find(m.Ref.ID)
		return a
	case okr.LevelTask:
		t, _, _ := snap.Tasks.Find(m.Ref.ID)
		return t
	}
	return nil
}

// NotCachedError means the mirror holds no copy of the requested root.
type NotCachedError struct {
	RootID    okr.ID
	Namespace string
}

func (e *NotCachedError) Error() string {
	return fmt.Sprintf("no cached tree for root '%s' in namespace '%s'", e.RootID, e.Namespace)
}

// IsNotCached returns true if the error is a NotCachedError.
func IsNotCached(err error) bool {
	_, ok := err.(*NotCachedError)
	return ok
}

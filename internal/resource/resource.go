// Package resource defines the capability set canopy needs from the remote
// goal-tracking backend and provides its HTTP implementation.
//
// Every level below the root is a collection with the same four operations,
// keyed by a parent filter on list. The root itself is only ever read.
package resource

import (
	"context"

	"github.com/dyluth/canopy/pkg/okr"
)

// Resource collection names on the backend.
const (
	ResourceProjects   = "projects"
	ResourceEpics      = "epics"
	ResourceObjectives = "objectives"
	ResourceKeyResults = "okrs"
	ResourceActivities = "activities"
	ResourceTasks      = "tasks"
)

// Parent identifies the bucket a list call is scoped to: Key is the query
// parameter (and foreign key name), ID its value.
type Parent struct {
	Key string
	ID  okr.ID
}

// Resource is the per-level capability set. Implementations must be safe for
// concurrent use; the tree loader fans out List calls in parallel.
type Resource[T okr.Node] interface {
	// List returns the children of parent. An empty result is not an error.
	List(ctx context.Context, parent Parent) ([]T, error)

	// Create posts body and returns the server's view of the new entity.
	Create(ctx context.Context, body map[string]any) (T, error)

	// Update replaces the entity's fields with body and returns the server's view.
	Update(ctx context.Context, id okr.ID, body map[string]any) (T, error)

	// Delete removes the entity.
	Delete(ctx context.Context, id okr.ID) error
}

// API is the whole backend as seen by the tree engine.
type API interface {
	// Root fetches the root detail payload. Project roots embed Objectives.
	Root(ctx context.Context, id okr.ID, kind okr.RootKind) (okr.RootDetail, error)

	Epics() Resource[okr.Epic]
	Objectives() Resource[okr.Objective]
	KeyResults() Resource[okr.KeyResult]
	Activities() Resource[okr.Activity]
	Tasks() Resource[okr.Task]
}

package tree

import (
	"errors"
	"fmt"

	"github.com/dyluth/canopy/pkg/okr"
)

// ErrNotLoaded is returned by mutations issued before any tree was loaded.
var ErrNotLoaded = errors.New("no tree loaded")

// ErrIDChanged is returned by Store.Replace when the replacement carries a
// different id from the child it replaces.
var ErrIDChanged = errors.New("replacement changes the child id")

// Op names a mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FetchFailure reports a failed list or detail fetch during a load.
// ParentID is the bucket whose children could not be fetched (the root id for
// root and epic-list fetches).
type FetchFailure struct {
	Level    okr.Level
	ParentID okr.ID
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("failed to fetch %s for parent %s: %v", e.Level, e.ParentID, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// MutationFailure reports a Resource Client failure during create, update or
// delete. The local mirror is never modified when this is returned.
type MutationFailure struct {
	Level okr.Level
	Op    Op
	ID    okr.ID // target id for update/delete, parent id for create
	Err   error
}

func (e *MutationFailure) Error() string {
	return fmt.Sprintf("failed to %s %s %s: %v", e.Op, e.Level, e.ID, e.Err)
}

func (e *MutationFailure) Unwrap() error {
	return e.Err
}

// OrphanChildError means a child id could not be found in the expected
// bucket (or in any bucket when ParentID is empty).
type OrphanChildError struct {
	Level    okr.Level
	ChildID  okr.ID
	ParentID okr.ID
}

func (e *OrphanChildError) Error() string {
	if e.ParentID.IsZero() {
		return fmt.Sprintf("%s %s not found in any parent", e.Level, e.ChildID)
	}
	return fmt.Sprintf("%s %s not found under parent %s", e.Level, e.ChildID, e.ParentID)
}

// UnknownParentError means a create named a parent that cannot own children
// of Level in the loaded tree: an id missing from the level above, or the
// root of a Project for an Epic.
type UnknownParentError struct {
	Level    okr.Level
	ParentID okr.ID
	RootID   okr.ID
	Kind     okr.RootKind
}

func (e *UnknownParentError) Error() string {
	if e.Level == okr.LevelEpic && !e.Kind.HasEpics() {
		return fmt.Sprintf("%s %s has no epics", e.Kind, e.RootID)
	}
	return fmt.Sprintf("%s parent %s is not in %s %s", e.Level, e.ParentID, e.Kind, e.RootID)
}

// IsFetchFailure reports whether err is (or wraps) a FetchFailure.
func IsFetchFailure(err error) bool {
	var target *FetchFailure
	return errors.As(err, &target)
}

// IsMutationFailure reports whether err is (or wraps) a MutationFailure.
func IsMutationFailure(err error) bool {
	var target *MutationFailure
	return errors.As(err, &target)
}

// IsOrphan reports whether err is (or wraps) an OrphanChildError.
func IsOrphan(err error) bool {
	var target *OrphanChildError
	return errors.As(err, &target)
}

// IsUnknownParent reports whether err is (or wraps) an UnknownParentError.
func IsUnknownParent(err error) bool {
	var target *UnknownParentError
	return errors.As(err, &target)
}

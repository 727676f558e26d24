package tree

import (
	"context"
	"fmt"

	"github.com/dyluth/canopy/pkg/okr"
)

// Mutations are applied to the mirror only after the backend confirms them.
// A failed call returns a *MutationFailure and leaves the mirror unchanged.

// CreateEpic creates an Epic under the root and inserts it at the head of
// the root's bucket.
func (e *Engine) CreateEpic(ctx context.Context, rootID okr.ID, draft okr.Epic) (okr.Epic, error) {
	return create(ctx, e, epicLevel, rootID, draft)
}

// UpdateEpic replaces the writable fields of an Epic.
func (e *Engine) UpdateEpic(ctx context.Context, id okr.ID, draft okr.Epic) (okr.Epic, error) {
	return update(ctx, e, epicLevel, id, draft)
}

// DeleteEpic deletes an Epic that must belong to rootID.
func (e *Engine) DeleteEpic(ctx context.Context, rootID, id okr.ID) error {
	return remove(ctx, e, epicLevel, rootID, id)
}

// CreateObjective creates an Objective under parentID: an Epic for Mission
// trees, the root for Project trees.
func (e *Engine) CreateObjective(ctx context.Context, parentID okr.ID, draft okr.Objective) (okr.Objective, error) {
	return create(ctx, e, objectiveLevel, parentID, draft)
}

func (e *Engine) UpdateObjective(ctx context.Context, id okr.ID, draft okr.Objective) (okr.Objective, error) {
	return update(ctx, e, objectiveLevel, id, draft)
}

func (e *Engine) DeleteObjective(ctx context.Context, parentID, id okr.ID) error {
	return remove(ctx, e, objectiveLevel, parentID, id)
}

func (e *Engine) CreateKeyResult(ctx context.Context, objectiveID okr.ID, draft okr.KeyResult) (okr.KeyResult, error) {
	return create(ctx, e, keyResultLevel, objectiveID, draft)
}

func (e *Engine) UpdateKeyResult(ctx context.Context, id okr.ID, draft okr.KeyResult) (okr.KeyResult, error) {
	return update(ctx, e, keyResultLevel, id, draft)
}

func (e *Engine) DeleteKeyResult(ctx context.Context, objectiveID, id okr.ID) error {
	return remove(ctx, e, keyResultLevel, objectiveID, id)
}

func (e *Engine) CreateActivity(ctx context.Context, keyResultID okr.ID, draft okr.Activity) (okr.Activity, error) {
	return create(ctx, e, activityLevel, keyResultID, draft)
}

func (e *Engine) UpdateActivity(ctx context.Context, id okr.ID, draft okr.Activity) (okr.Activity, error) {
	return update(ctx, e, activityLevel, id, draft)
}

func (e *Engine) DeleteActivity(ctx context.Context, keyResultID, id okr.ID) error {
	return remove(ctx, e, activityLevel, keyResultID, id)
}

// CreateTask creates a Task assigned to the engine's actor.
func (e *Engine) CreateTask(ctx context.Context, activityID okr.ID, draft okr.Task) (okr.Task, error) {
	return create(ctx, e, taskLevel, activityID, draft)
}

func (e *Engine) UpdateTask(ctx context.Context, id okr.ID, draft okr.Task) (okr.Task, error) {
	return update(ctx, e, taskLevel, id, draft)
}

func (e *Engine) DeleteTask(ctx context.Context, activityID, id okr.ID) error {
	return remove(ctx, e, taskLevel, activityID, id)
}

func create[T okr.Node](ctx context.Context, e *Engine, lvl level[T], parentID okr.ID, draft T) (T, error) {
	var zero T
	if parentID.IsZero() {
		return zero, fmt.Errorf("%s parent id is required", lvl.name)
	}

	e.mu.Lock()
	if e.snap == nil {
		e.mu.Unlock()
		return zero, ErrNotLoaded
	}
	rootID := e.snap.RootID
	kind := e.snap.Kind
	key := lvl.foreignKey(e.snap)
	known := lvl.parentKnown(e.snap, parentID)
	e.mu.Unlock()
	if !known {
		return zero, &UnknownParentError{Level: lvl.name, ParentID: parentID, RootID: rootID, Kind: kind}
	}

	body := draft.Fields()
	body[key] = parentID.Wire()
	body[lvl.identityKey] = e.actor.Wire()

	created, err := lvl.resource(e.api).Create(ctx, body)
	if err == nil && created.NodeID().IsZero() {
		err = fmt.Errorf("response carried no id")
	}
	e.opts.metrics.observeMutation(lvl.name, OpCreate, err)
	if err != nil {
		return zero, e.failed(lvl.name, OpCreate, parentID, err)
	}

	id := created.NodeID()
	gen := e.commit(mutation{
		op:       OpCreate,
		level:    lvl.name,
		rootID:   rootID,
		entityID: id,
		apply: func(s *Snapshot) {
			// A reload or concurrent delete may have removed the parent.
			if !lvl.parentKnown(s, parentID) {
				return
			}
			store := lvl.store(s)
			if owner, ok := store.Owner(id); ok && owner == parentID {
				_ = store.Replace(parentID, id, created)
				return
			}
			store.Append(parentID, created)
		},
	})
	e.committed(ctx, nodeEvent(e.opts, EventNodeCreated, rootID, gen, lvl.name, parentID, id, &created))
	return created, nil
}

func update[T okr.Node](ctx context.Context, e *Engine, lvl level[T], id okr.ID, draft T) (T, error) {
	var zero T
	e.mu.Lock()
	if e.snap == nil {
		e.mu.Unlock()
		return zero, ErrNotLoaded
	}
	rootID := e.snap.RootID
	key := lvl.foreignKey(e.snap)
	parentID, ok := lvl.store(e.snap).Owner(id)
	e.mu.Unlock()
	if !ok {
		return zero, &OrphanChildError{Level: lvl.name, ChildID: id}
	}

	body := draft.Fields()
	body[key] = parentID.Wire()

	updated, err := lvl.resource(e.api).Update(ctx, id, body)
	if err == nil && updated.NodeID() != id {
		err = fmt.Errorf("response id %q does not match %q", updated.NodeID(), id)
	}
	e.opts.metrics.observeMutation(lvl.name, OpUpdate, err)
	if err != nil {
		return zero, e.failed(lvl.name, OpUpdate, id, err)
	}

	gen := e.commit(mutation{
		op:       OpUpdate,
		level:    lvl.name,
		rootID:   rootID,
		entityID: id,
		apply: func(s *Snapshot) {
			store := lvl.store(s)
			if owner, ok := store.Owner(id); ok {
				_ = store.Replace(owner, id, updated)
			}
		},
	})
	e.committed(ctx, nodeEvent(e.opts, EventNodeUpdated, rootID, gen, lvl.name, parentID, id, &updated))
	return updated, nil
}

// remove checks that id sits in parentID's bucket before calling the
// backend, then filters it out together with its local descendants.
func remove[T okr.Node](ctx context.Context, e *Engine, lvl level[T], parentID, id okr.ID) error {
	e.mu.Lock()
	if e.snap == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	rootID := e.snap.RootID
	owner, ok := lvl.store(e.snap).Owner(id)
	e.mu.Unlock()
	if !ok || owner != parentID {
		return &OrphanChildError{Level: lvl.name, ChildID: id, ParentID: parentID}
	}

	err := lvl.resource(e.api).Delete(ctx, id)
	e.opts.metrics.observeMutation(lvl.name, OpDelete, err)
	if err != nil {
		return e.failed(lvl.name, OpDelete, id, err)
	}

	gen := e.commit(mutation{
		op:       OpDelete,
		level:    lvl.name,
		rootID:   rootID,
		entityID: id,
		apply: func(s *Snapshot) {
			store := lvl.store(s)
			if owner, ok := store.Owner(id); ok {
				_ = store.Remove(owner, id)
				lvl.prune(s, id)
			}
		},
	})
	e.committed(ctx, nodeEvent[T](e.opts, EventNodeDeleted, rootID, gen, lvl.name, parentID, id, nil))
	return nil
}

func (e *Engine) failed(level okr.Level, op Op, id okr.ID, err error) error {
	e.logEvent("mutation_failed", map[string]interface{}{
		"node_level": level,
		"op":         op,
		"id":         id,
		"error":      err.Error(),
	})
	return &MutationFailure{Level: level, Op: op, ID: id, Err: err}
}

func (e *Engine) committed(ctx context.Context, ev *Event) {
	e.logEvent("mutation_committed", map[string]interface{}{
		"root_id":    ev.RootID,
		"node_level": ev.Level,
		"event":      ev.Type,
		"parent_id":  ev.ParentID,
		"entity_id":  ev.EntityID,
		"generation": ev.Generation,
	})
	e.publish(ctx, ev)
}

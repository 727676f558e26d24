package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
)

// Call records one request made against a FakeAPI.
type Call struct {
	Resource string
	Method   string
	Parent   resource.Parent
	ID       okr.ID
	Body     map[string]any
}

// FakeAPI is an in-memory resource.API. Entities are stored server-side
// style: one flat list per collection, filtered by foreign key on List.
// Created entities get sequential integer ids starting at 1000.
//
// Failures and hooks are keyed by resource name plus a parent or entity id
// so a test can break or stall exactly one fan-out call.
type FakeAPI struct {
	mu       sync.Mutex
	nextID   int
	roots    map[okr.ID]okr.Root
	calls    []Call
	failures map[string]error
	hooks    map[string]func()

	EpicStore      *FakeResource[okr.Epic]
	ObjectiveStore *FakeResource[okr.Objective]
	KeyResultStore *FakeResource[okr.KeyResult]
	ActivityStore  *FakeResource[okr.Activity]
	TaskStore      *FakeResource[okr.Task]
}

// NewFakeAPI returns an empty FakeAPI.
func NewFakeAPI() *FakeAPI {
	api := &FakeAPI{
		nextID:   1000,
		roots:    make(map[okr.ID]okr.Root),
		failures: make(map[string]error),
		hooks:    make(map[string]func()),
	}
	api.EpicStore = &FakeResource[okr.Epic]{api: api, name: resource.ResourceEpics}
	api.ObjectiveStore = &FakeResource[okr.Objective]{api: api, name: resource.ResourceObjectives}
	api.KeyResultStore = &FakeResource[okr.KeyResult]{api: api, name: resource.ResourceKeyResults}
	api.ActivityStore = &FakeResource[okr.Activity]{api: api, name: resource.ResourceActivities}
	api.TaskStore = &FakeResource[okr.Task]{api: api, name: resource.ResourceTasks}
	return api
}

func (f *FakeAPI) Epics() resource.Resource[okr.Epic]           { return f.EpicStore }
func (f *FakeAPI) Objectives() resource.Resource[okr.Objective] { return f.ObjectiveStore }
func (f *FakeAPI) KeyResults() resource.Resource[okr.KeyResult] { return f.KeyResultStore }
func (f *FakeAPI) Activities() resource.Resource[okr.Activity]  { return f.ActivityStore }
func (f *FakeAPI) Tasks() resource.Resource[okr.Task]           { return f.TaskStore }

// AddRoot registers a root. Its Kind is set from kind.
func (f *FakeAPI) AddRoot(root okr.Root, kind okr.RootKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root.Kind = kind.Tipo()
	f.roots[root.ID] = root
}

// Root returns the root detail. Project roots embed every Objective whose
// project key matches.
func (f *FakeAPI) Root(ctx context.Context, id okr.ID, kind okr.RootKind) (okr.RootDetail, error) {
	if err := f.enter(ctx, Call{Resource: resource.ResourceProjects, Method: "GET", ID: id}, key(resource.ResourceProjects, "GET", id)); err != nil {
		return okr.RootDetail{}, err
	}

	f.mu.Lock()
	root, ok := f.roots[id]
	f.mu.Unlock()
	if !ok || root.Kind != kind.Tipo() {
		return okr.RootDetail{}, &resource.StatusError{Method: "GET", Path: "/projects/" + id.String() + "/", StatusCode: 404}
	}

	detail := okr.RootDetail{Root: root}
	if !kind.HasEpics() {
		detail.Objectives = f.ObjectiveStore.matching("project", id)
		if detail.Objectives == nil {
			detail.Objectives = []okr.Objective{}
		}
	}
	return detail, nil
}

// FailList makes List on res for parentID return err.
func (f *FakeAPI) FailList(res string, parentID okr.ID, err error) {
	f.setFailure(key(res, "GET", parentID), err)
}

// FailRoot makes the root detail fetch for id return err.
func (f *FakeAPI) FailRoot(id okr.ID, err error) {
	f.setFailure(key(resource.ResourceProjects, "GET", id), err)
}

// FailCreate makes every Create on res return err.
func (f *FakeAPI) FailCreate(res string, err error) {
	f.setFailure(key(res, "POST", ""), err)
}

// FailUpdate makes Update of id on res return err.
func (f *FakeAPI) FailUpdate(res string, id okr.ID, err error) {
	f.setFailure(key(res, "PUT", id), err)
}

// FailDelete makes Delete of id on res return err.
func (f *FakeAPI) FailDelete(res string, id okr.ID, err error) {
	f.setFailure(key(res, "DELETE", id), err)
}

// OnList runs hook inside List on res for parentID, after the result has
// been read and before it is returned. A hook that blocks models a slow
// response carrying data that may be stale by the time it arrives.
func (f *FakeAPI) OnList(res string, parentID okr.ID, hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[key(res, "GET", parentID)] = hook
}

// Calls returns every recorded call in order.
func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls for res and method.
func (f *FakeAPI) CallsTo(res, method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Resource == res && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (f *FakeAPI) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeAPI) setFailure(k string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, k)
		return
	}
	f.failures[k] = err
}

// enter records c, runs any hook and returns any injected failure.
func (f *FakeAPI) enter(ctx context.Context, c Call, k string) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hook := f.hooks[k]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[k]
}

func (f *FakeAPI) allocID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	return id
}

func key(res, method string, id okr.ID) string {
	return res + " " + method + " " + id.String()
}

// FakeResource is one server-side collection.
type FakeResource[T okr.Node] struct {
	api   *FakeAPI
	name  string
	mu    sync.Mutex
	items []T
}

// Seed appends items to the collection in order.
func (r *FakeResource[T]) Seed(items ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
}

// All returns every stored item.
func (r *FakeResource[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Get returns the stored item with id.
func (r *FakeResource[T]) Get(id okr.ID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.NodeID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (r *FakeResource[T]) List(ctx context.Context, parent resource.Parent) ([]T, error) {
	out := r.matching(parent.Key, parent.ID)
	if err := r.api.enter(ctx, Call{Resource: r.name, Method: "GET", Parent: parent}, key(r.name, "GET", parent.ID)); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (r *FakeResource[T]) Create(ctx context.Context, body map[string]any) (T, error) {
	var zero T
	if err := r.api.enter(ctx, Call{Resource: r.name, Method: "POST", Body: copyBody(body)}, key(r.name, "POST", "")); err != nil {
		return zero, err
	}

	fields := copyBody(body)
	fields["id"] = r.api.allocID()
	created, err := decode[T](fields)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	r.items = append(r.items, created)
	r.mu.Unlock()
	return created, nil
}

func (r *FakeResource[T]) Update(ctx context.Context, id okr.ID, body map[string]any) (T, error) {
	var zero T
	if err := r.api.enter(ctx, Call{Resource: r.name, Method: "PUT", ID: id, Body: copyBody(body)}, key(r.name, "PUT", id)); err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.NodeID() != id {
			continue
		}
		fields, err := encode(item)
		if err != nil {
			return zero, err
		}
		for k, v := range body {
			fields[k] = v
		}
		updated, err := decode[T](fields)
		if err != nil {
			return zero, err
		}
		r.items[i] = updated
		return updated, nil
	}
	return zero, &resource.StatusError{Method: "PUT", Path: "/" + r.name + "/" + id.String() + "/", StatusCode: 404}
}

func (r *FakeResource[T]) Delete(ctx context.Context, id okr.ID) error {
	if err := r.api.enter(ctx, Call{Resource: r.name, Method: "DELETE", ID: id}, key(r.name, "DELETE", id)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.NodeID() == id {
			r.items = append(r.items[:i:i], r.items[i+1:]...)
			return nil
		}
	}
	return &resource.StatusError{Method: "DELETE", Path: "/" + r.name + "/" + id.String() + "/", StatusCode: 404}
}

// matching returns the items whose fkey field equals parentID.
func (r *FakeResource[T]) matching(fkey string, parentID okr.ID) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, item := range r.items {
		fields, err := encode(item)
		if err != nil {
			continue
		}
		raw, err := json.Marshal(fields[fkey])
		if err != nil {
			continue
		}
		var fk okr.ID
		if err := json.Unmarshal(raw, &fk); err != nil {
			continue
		}
		if fk == parentID {
			out = append(out, item)
		}
	}
	return out
}

func encode(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return fields, nil
}

func decode[T any](fields map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("failed to decode entity: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode entity: %w", err)
	}
	return out, nil
}

func copyBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	return out
}

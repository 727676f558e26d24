package tree

import (
	"fmt"

	"github.com/dyluth/canopy/pkg/okr"
)

// Store maps parent ids to the ordered children of one level.
//
// Alongside the buckets it keeps an owner index (child id → parent id) that
// is maintained by every write, so finding the parent of a child is a map
// lookup rather than a scan of every bucket. A child id appears in at most
// one bucket at a time; writes that would place it in a second bucket move it.
//
// Store is not safe for concurrent use. The Engine serialises access.
type Store[T okr.Node] struct {
	level   okr.Level
	buckets map[okr.ID][]T
	owners  map[okr.ID]okr.ID
	order   []okr.ID // parent ids in first-write order
	gen     uint64
}

// NewStore returns an empty store for level.
func NewStore[T okr.Node](level okr.Level) *Store[T] {
	return &Store[T]{
		level:   level,
		buckets: make(map[okr.ID][]T),
		owners:  make(map[okr.ID]okr.ID),
	}
}

// Level returns the level this store holds.
func (s *Store[T]) Level() okr.Level {
	return s.level
}

// Generation increments on every successful write.
func (s *Store[T]) Generation() uint64 {
	return s.gen
}

// Get returns a copy of the bucket for parentID. Absent buckets yield an
// empty, non-nil slice.
func (s *Store[T]) Get(parentID okr.ID) []T {
	bucket := s.buckets[parentID]
	out := make([]T, len(bucket))
	copy(out, bucket)
	return out
}

// Has reports whether a bucket was ever set for parentID (even if empty).
// A parent whose fetch failed during a degraded load has no bucket.
func (s *Store[T]) Has(parentID okr.ID) bool {
	_, ok := s.buckets[parentID]
	return ok
}

// Set replaces the bucket for parentID. Duplicate ids within list keep
// their first occurrence; ids owned by another bucket are moved here.
func (s *Store[T]) Set(parentID okr.ID, list []T) {
	for _, old := range s.buckets[parentID] {
		delete(s.owners, old.NodeID())
	}

	bucket := make([]T, 0, len(list))
	seen := make(map[okr.ID]struct{}, len(list))
	for _, item := range list {
		id := item.NodeID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if owner, ok := s.owners[id]; ok && owner != parentID {
			s.detach(owner, id)
		}
		s.owners[id] = parentID
		bucket = append(bucket, item)
	}

	s.ensureParent(parentID)
	s.buckets[parentID] = bucket
	s.gen++
}

// Append inserts entity at the head of parentID's bucket: buckets are ordered
// most-recent-first for locally created children. If the id is already
// present anywhere it is removed first.
func (s *Store[T]) Append(parentID okr.ID, entity T) {
	id := entity.NodeID()
	if owner, ok := s.owners[id]; ok {
		s.detach(owner, id)
	}

	bucket := s.buckets[parentID]
	next := make([]T, 0, len(bucket)+1)
	next = append(next, entity)
	next = append(next, bucket...)

	s.ensureParent(parentID)
	s.buckets[parentID] = next
	s.owners[id] = parentID
	s.gen++
}

// Replace swaps the child with entityID in parentID's bucket for next,
// keeping its position. Ids are server-assigned and never change, so next
// must carry entityID.
func (s *Store[T]) Replace(parentID, entityID okr.ID, next T) error {
	if newID := next.NodeID(); newID != entityID {
		return fmt.Errorf("%w: %s %s replaced by %s", ErrIDChanged, s.level, entityID, newID)
	}
	idx := s.indexOf(parentID, entityID)
	if idx < 0 {
		return &OrphanChildError{Level: s.level, ChildID: entityID, ParentID: parentID}
	}

	bucket := s.buckets[parentID]
	updated := make([]T, len(bucket))
	copy(updated, bucket)
	updated[idx] = next
	s.buckets[parentID] = updated
	s.gen++
	return nil
}

// Remove filters entityID out of parentID's bucket.
func (s *Store[T]) Remove(parentID, entityID okr.ID) error {
	if s.indexOf(parentID, entityID) < 0 {
		return &OrphanChildError{Level: s.level, ChildID: entityID, ParentID: parentID}
	}
	s.detach(parentID, entityID)
	s.gen++
	return nil
}

// Owner returns the parent whose bucket holds childID.
func (s *Store[T]) Owner(childID okr.ID) (okr.ID, bool) {
	parent, ok := s.owners[childID]
	return parent, ok
}

// Find returns the child and its owning parent.
func (s *Store[T]) Find(childID okr.ID) (T, okr.ID, bool) {
	var zero T
	parent, ok := s.owners[childID]
	if !ok {
		return zero, "", false
	}
	idx := s.indexOf(parent, childID)
	if idx < 0 {
		return zero, "", false
	}
	return s.buckets[parent][idx], parent, true
}

// Parents returns every parent id with a bucket, in first-write order.
func (s *Store[T]) Parents() []okr.ID {
	out := make([]okr.ID, 0, len(s.order))
	for _, id := range s.order {
		if _, ok := s.buckets[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IDs returns every child id across all buckets, bucket by bucket.
func (s *Store[T]) IDs() []okr.ID {
	out := make([]okr.ID, 0, len(s.owners))
	for _, parent := range s.Parents() {
		for _, item := range s.buckets[parent] {
			out = append(out, item.NodeID())
		}
	}
	return out
}

// Len returns the total number of children.
func (s *Store[T]) Len() int {
	return len(s.owners)
}

// Clone returns an independent copy.
func (s *Store[T]) Clone() *Store[T] {
	c := &Store[T]{
		level:   s.level,
		buckets: make(map[okr.ID][]T, len(s.buckets)),
		owners:  make(map[okr.ID]okr.ID, len(s.owners)),
		order:   append([]okr.ID(nil), s.order...),
		gen:     s.gen,
	}
	for parent, bucket := range s.buckets {
		c.buckets[parent] = append(make([]T, 0, len(bucket)), bucket...)
	}
	for child, parent := range s.owners {
		c.owners[child] = parent
	}
	return c
}

func (s *Store[T]) indexOf(parentID, entityID okr.ID) int {
	for i, item := range s.buckets[parentID] {
		if item.NodeID() == entityID {
			return i
		}
	}
	return -1
}

// detach drops entityID from parentID's bucket and the owner index.
func (s *Store[T]) detach(parentID, entityID okr.ID) {
	bucket := s.buckets[parentID]
	filtered := make([]T, 0, len(bucket))
	for _, item := range bucket {
		if item.NodeID() != entityID {
			filtered = append(filtered, item)
		}
	}
	s.buckets[parentID] = filtered
	delete(s.owners, entityID)
}

func (s *Store[T]) ensureParent(parentID okr.ID) {
	if _, ok := s.buckets[parentID]; !ok {
		s.order = append(s.order, parentID)
	}
}

// Drop deletes the bucket for parentID entirely and returns what it held.
func (s *Store[T]) Drop(parentID okr.ID) []T {
	bucket, ok := s.buckets[parentID]
	if !ok {
		return nil
	}
	for _, item := range bucket {
		delete(s.owners, item.NodeID())
	}
	delete(s.buckets, parentID)
	for i, id := range s.order {
		if id == parentID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.gen++
	return bucket
}

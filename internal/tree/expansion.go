package tree

import (
	"sort"
	"sync"

	"github.com/dyluth/canopy/pkg/okr"
)

// NodeRef names a node by level and id. Ids are only unique within a level.
type NodeRef struct {
	Level okr.Level `json:"level"`
	ID    okr.ID    `json:"id"`
}

// Expansion is the set of expanded nodes in a view. It has no bearing on the
// mirror's contents. Safe for concurrent use.
type Expansion struct {
	mu   sync.RWMutex
	open map[NodeRef]struct{}
}

// NewExpansion returns an Expansion with refs expanded.
func NewExpansion(refs ...NodeRef) *Expansion {
	x := &Expansion{open: make(map[NodeRef]struct{}, len(refs))}
	for _, ref := range refs {
		x.open[ref] = struct{}{}
	}
	return x
}

// Toggle flips ref and returns whether it is now expanded.
func (x *Expansion) Toggle(ref NodeRef) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.open[ref]; ok {
		delete(x.open, ref)
		return false
	}
	x.open[ref] = struct{}{}
	return true
}

func (x *Expansion) Expand(ref NodeRef) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.open[ref] = struct{}{}
}

func (x *Expansion) Collapse(ref NodeRef) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.open, ref)
}

func (x *Expansion) IsExpanded(ref NodeRef) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.open[ref]
	return ok
}

// Refs returns the expanded nodes sorted by level then id.
func (x *Expansion) Refs() []NodeRef {
	x.mu.RLock()
	out := make([]NodeRef, 0, len(x.open))
	for ref := range x.open {
		out = append(out, ref)
	}
	x.mu.RUnlock()

	rank := make(map[okr.Level]int, len(okr.Levels))
	for i, l := range okr.Levels {
		rank[l] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return rank[out[i].Level] < rank[out[j].Level]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Prune drops refs to nodes no longer present in snap and returns how many
// were removed.
func (x *Expansion) Prune(snap *Snapshot) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	removed := 0
	for ref := range x.open {
		if !snap.Contains(ref) {
			delete(x.open, ref)
			removed++
		}
	}
	return removed
}

package tree

import (
	"context"
	"encoding/json"

	"github.com/dyluth/canopy/pkg/okr"
	"github.com/google/uuid"
)

// EventType names what an Event announces.
type EventType string

const (
	EventTreeLoaded  EventType = "tree_loaded"
	EventNodeCreated EventType = "node_created"
	EventNodeUpdated EventType = "node_updated"
	EventNodeDeleted EventType = "node_deleted"
)

// Event is published after a load is installed or a mutation is committed
// to the mirror.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	RootID     okr.ID          `json:"root_id"`
	Level      okr.Level       `json:"level,omitempty"`
	ParentID   okr.ID          `json:"parent_id,omitempty"`
	EntityID   okr.ID          `json:"entity_id,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`
	Generation uint64          `json:"generation"`
	Timestamp  int64           `json:"timestamp_ms"`
}

// Publisher receives events. Failures are logged and never undo the change
// that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

func newEvent(o options, typ EventType, rootID okr.ID, generation uint64) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Type:       typ,
		RootID:     rootID,
		Generation: generation,
		Timestamp:  o.now().UnixMilli(),
	}
}

func nodeEvent[T okr.Node](o options, typ EventType, rootID okr.ID, generation uint64, lvl okr.Level, parentID okr.ID, entityID okr.ID, entity *T) *Event {
	ev := newEvent(o, typ, rootID, generation)
	ev.Level = lvl
	ev.ParentID = parentID
	ev.EntityID = entityID
	if entity != nil {
		if data, err := json.Marshal(entity); err == nil {
			ev.Entity = data
		}
	}
	return ev
}

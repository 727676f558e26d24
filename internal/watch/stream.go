package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// OutputFormat specifies how events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes one JSON object per line
	OutputFormatJSON OutputFormat = "json"
)

// Filter selects which events are written. Zero values match everything.
type Filter struct {
	RootID okr.ID
	Levels []okr.Level // tree_loaded events carry no level and always pass
	Types  []tree.EventType
}

// Matches reports whether ev passes every criterion.
func (f *Filter) Matches(ev *tree.Event) bool {
	if f == nil {
		return true
	}
	if !f.RootID.IsZero() && ev.RootID != f.RootID {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, ev.Type) {
		return false
	}
	if len(f.Levels) > 0 && ev.Level != "" && !contains(f.Levels, ev.Level) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type formatter interface {
	FormatEvent(ev *tree.Event) error
	FormatError(err error) error
}

func newFormatter(format OutputFormat, w io.Writer) (formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{writer: w}, nil
	}
	return nil, fmt.Errorf("unknown output format: %s (must be default or json)", format)
}

// StreamEvents subscribes to the mirror and writes matching events to w
// until ctx is cancelled.
func StreamEvents(ctx context.Context, client *mirror.Client, format OutputFormat, filter *Filter, w io.Writer) error {
	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	return Stream(ctx, sub, format, filter, w)
}

// Stream writes events from an open subscription. It returns nil once ctx is
// cancelled or the subscription ends.
func Stream(ctx context.Context, sub *mirror.Subscription, format OutputFormat, filter *Filter, w io.Writer) error {
	f, err := newFormatter(format, w)
	if err != nil {
		return err
	}

	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !filter.Matches(ev) {
				continue
			}
			if err := f.FormatEvent(ev); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}

		case streamErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err := f.FormatError(streamErr); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatEvent(ev *tree.Event) error {
	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05")

	var line string
	switch ev.Type {
	case tree.EventTreeLoaded:
		line = fmt.Sprintf("🌳 Tree loaded: root=%s, generation=%d", ev.RootID, ev.Generation)
	case tree.EventNodeCreated:
		line = fmt.Sprintf("✨ %s created: id=%s, parent=%s%s", ev.Level.Label(), ev.EntityID, ev.ParentID, describe(ev))
	case tree.EventNodeUpdated:
		line = fmt.Sprintf("✏️  %s updated: id=%s, parent=%s%s", ev.Level.Label(), ev.EntityID, ev.ParentID, describe(ev))
	case tree.EventNodeDeleted:
		line = fmt.Sprintf("🗑️  %s deleted: id=%s, parent=%s", ev.Level.Label(), ev.EntityID, ev.ParentID)
	default:
		line = fmt.Sprintf("Event: %s, root=%s", ev.Type, ev.RootID)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, line)
	return err
}

func (f *defaultFormatter) FormatError(err error) error {
	_, werr := fmt.Fprintf(f.writer, "⚠️  Skipping malformed event: %v\n", err)
	return werr
}

// describe pulls a title and, for tasks, the status from the event entity.
func describe(ev *tree.Event) string {
	if len(ev.Entity) == 0 {
		return ""
	}

	var fields struct {
		Title     string         `json:"title"`
		KeyResult string         `json:"key_result"`
		Name      string         `json:"name"`
		Status    okr.TaskStatus `json:"status"`
	}
	if err := json.Unmarshal(ev.Entity, &fields); err != nil {
		return ""
	}

	title := fields.Title
	switch ev.Level {
	case okr.LevelKeyResult:
		title = fields.KeyResult
	case okr.LevelActivity:
		title = fields.Name
	}

	out := ""
	if title != "" {
		out += fmt.Sprintf(", title=%q", title)
	}
	if ev.Level == okr.LevelTask && fields.Status != "" {
		out += fmt.Sprintf(", status=%s", fields.Status)
	}
	return out
}

type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) FormatEvent(ev *tree.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

// FormatError is silent so the output stays valid JSONL.
func (f *jsonFormatter) FormatError(err error) error {
	return nil
}

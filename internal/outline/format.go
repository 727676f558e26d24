package outline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// FormatTree writes the outline as an indented tree to the provided writer.
// Each row shows the level tag, id, title and the level's progress fields.
// Returns the number of nodes written below the root.
func FormatTree(w io.Writer, snap *tree.Snapshot, root *Node) int {
	fmt.Fprintf(w, "%s '%s' (%s)\n", kindLabel(snap.Kind), formatTitle(snap.Root.Name), snap.RootID)
	fmt.Fprintf(w, "generation %d, loaded %s\n", snap.Generation, formatAge(snap.LoadedAt))

	if len(root.Children) == 0 {
		fmt.Fprintf(w, "\nNo %ss found\n", strings.ToLower(childLevel(snap.Kind).Label()))
		return 0
	}

	fmt.Fprintln(w)
	counts := make(map[okr.Level]int)
	for i, child := range root.Children {
		writeBranch(w, child, "", i == len(root.Children)-1, counts)
	}

	fmt.Fprintf(w, "\n%s\n", formatCounts(counts))

	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func writeBranch(w io.Writer, n *Node, prefix string, last bool, counts map[okr.Level]int) {
	connector, indent := "├── ", "│   "
	if last {
		connector, indent = "└── ", "    "
	}

	counts[n.Level]++
	row := formatRow(n)
	if n.Collapsed {
		row += fmt.Sprintf("  (+%d hidden)", n.Hidden)
	}
	fmt.Fprintf(w, "%s%s%s\n", prefix, connector, row)

	for i, child := range n.Children {
		writeBranch(w, child, prefix+indent, i == len(n.Children)-1, counts)
	}
}

// formatRow renders one node without tree decoration.
func formatRow(n *Node) string {
	switch e := n.Entity.(type) {
	case okr.Epic:
		return fmt.Sprintf("[epic] %s  %s", e.ID, formatTitle(e.Title))
	case okr.Objective:
		return fmt.Sprintf("[objective] %s  %s", e.ID, formatTitle(e.Title))
	case okr.KeyResult:
		return fmt.Sprintf("[kr] %s  %s  %d/%d (%d%%)", e.ID, formatTitle(e.Title), e.CurrentValue, e.TargetValue, e.Progress)
	case okr.Activity:
		return fmt.Sprintf("[activity] %s  %s  %s (%d%%)", e.ID, formatTitle(e.Name), formatDates(e.StartDate, e.EndDate), e.Progress)
	case okr.Task:
		row := fmt.Sprintf("[task] %s  %s  %s (%d%%)", e.ID, formatTitle(e.Title), formatStatus(e.Status), e.CompletionPercentage)
		if e.AssigneeName != "" {
			row += " @" + e.AssigneeName
		}
		return row
	}
	return fmt.Sprintf("[%s] %s", n.Level, n.ID)
}

// FormatJSONL writes every node below the root as line-delimited JSON.
// Children are not nested; use parent_id and depth to rebuild the tree.
func FormatJSONL(w io.Writer, root *Node) error {
	return Walk(root, func(n *Node) error {
		if n.Level == okr.LevelRoot {
			return nil
		}

		flat := *n
		flat.Children = nil
		data, err := json.Marshal(&flat)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s to JSON: %w", n.Level, n.ID, err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
		return nil
	})
}

// document is the shape of the pretty JSON output.
type document struct {
	RootID     okr.ID         `json:"root_id"`
	Kind       okr.RootKind   `json:"kind"`
	Generation uint64         `json:"generation"`
	LoadedAtMs int64          `json:"loaded_at_ms"`
	Partial    bool           `json:"partial"`
	Failures   []failureEntry `json:"failures,omitempty"`
	Tree       *Node          `json:"tree"`
}

type failureEntry struct {
	Level    okr.Level `json:"level"`
	ParentID okr.ID    `json:"parent_id"`
	Error    string    `json:"error"`
}

// FormatJSON writes the snapshot and its nested outline as pretty-printed JSON.
func FormatJSON(w io.Writer, snap *tree.Snapshot, root *Node) error {
	doc := document{
		RootID:     snap.RootID,
		Kind:       snap.Kind,
		Generation: snap.Generation,
		Partial:    snap.Partial(),
		Tree:       root,
	}
	if !snap.LoadedAt.IsZero() {
		doc.LoadedAtMs = snap.LoadedAt.UnixMilli()
	}
	for _, f := range snap.Failures {
		entry := failureEntry{Level: f.Level, ParentID: f.ParentID}
		if f.Err != nil {
			entry.Error = f.Err.Error()
		}
		doc.Failures = append(doc.Failures, entry)
	}

	return FormatSingleJSON(w, doc)
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

func kindLabel(kind okr.RootKind) string {
	if kind == okr.KindMission {
		return "Mission"
	}
	return "Project"
}

func childLevel(kind okr.RootKind) okr.Level {
	if kind.HasEpics() {
		return okr.LevelEpic
	}
	return okr.LevelObjective
}

// formatTitle keeps the first non-empty line with max 60 characters.
// Empty titles return "-".
func formatTitle(title string) string {
	var firstLine string
	for _, line := range strings.Split(title, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}

	if len(firstLine) > 60 {
		return firstLine[:57] + "..."
	}
	return firstLine
}

// formatDates shows "start..end", or "start.." for open-ended activities.
func formatDates(start, end string) string {
	if start == "" && end == "" {
		return "-"
	}
	return start + ".." + end
}

func formatStatus(status okr.TaskStatus) string {
	if status == "" {
		return "-"
	}
	return string(status)
}

// formatAge formats a load time as relative time like "2m ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}

// formatCounts renders "1 epic, 2 objectives, ..." in level order.
func formatCounts(counts map[okr.Level]int) string {
	var parts []string
	for _, level := range okr.Levels {
		n, ok := counts[level]
		if !ok {
			continue
		}
		name := strings.ToLower(level.Label())
		if n != 1 {
			if level == okr.LevelActivity {
				name = "activities"
			} else {
				name += "s"
			}
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, ", ")
}

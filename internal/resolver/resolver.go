// Package resolver turns what users type on the command line into levels and
// nodes of a loaded tree.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// levelAliases maps accepted spellings to levels. Inputs are lower-cased and
// have '-' and ' ' folded to '_' before lookup.
var levelAliases = map[string]okr.Level{
	"root":       okr.LevelRoot,
	"mission":    okr.LevelRoot,
	"project":    okr.LevelRoot,
	"epic":       okr.LevelEpic,
	"objective":  okr.LevelObjective,
	"obj":        okr.LevelObjective,
	"key_result": okr.LevelKeyResult,
	"keyresult":  okr.LevelKeyResult,
	"kr":         okr.LevelKeyResult,
	"okr":        okr.LevelKeyResult,
	"activity":   okr.LevelActivity,
	"act":        okr.LevelActivity,
	"task":       okr.LevelTask,
}

// ResolveLevel resolves a level name, alias or unambiguous prefix.
// "obj" and "ob" resolve to objective; "k" resolves to key_result.
func ResolveLevel(input string) (okr.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "" {
		return "", fmt.Errorf("level cannot be empty")
	}

	// Plural forms
	switch {
	case normalized == "activities":
		normalized = "activity"
	case strings.HasSuffix(normalized, "s") && levelAliases[strings.TrimSuffix(normalized, "s")] != "":
		normalized = strings.TrimSuffix(normalized, "s")
	}

	if level, ok := levelAliases[normalized]; ok {
		return level, nil
	}

	matched := make(map[okr.Level]bool)
	for alias, level := range levelAliases {
		if strings.HasPrefix(alias, normalized) {
			matched[level] = true
		}
	}

	switch len(matched) {
	case 0:
		return "", &NotFoundError{Input: input, What: "level"}
	case 1:
		for level := range matched {
			return level, nil
		}
	}

	names := make([]string, 0, len(matched))
	for level := range matched {
		names = append(names, string(level))
	}
	sort.Strings(names)
	return "", &AmbiguousError{Input: input, What: "level", Matches: names}
}

// Match is a node found in a snapshot.
type Match struct {
	Ref      tree.NodeRef
	ParentID okr.ID
}

// ResolveNode finds id in snap. With an empty level every level is searched
// and an id present at more than one level is ambiguous.
func ResolveNode(snap *tree.Snapshot, level okr.Level, id okr.ID) (Match, error) {
	if snap == nil {
		return Match{}, tree.ErrNotLoaded
	}
	if id.IsZero() {
		return Match{}, fmt.Errorf("id cannot be empty")
	}

	levels := okr.Levels
	if level != "" {
		if err := level.Validate(); err != nil {
			return Match{}, err
		}
		levels = []okr.Level{level}
	}

	var matches []Match
	for _, l := range levels {
		if parent, ok := owner(snap, l, id); ok {
			matches = append(matches, Match{Ref: tree.NodeRef{Level: l, ID: id}, ParentID: parent})
		}
	}

	switch len(matches) {
	case 0:
		what := "node"
		if level != "" {
			what = string(level)
		}
		return Match{}, &NotFoundError{Input: id.String(), What: what}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, string(m.Ref.Level))
		}
		return Match{}, &AmbiguousError{Input: id.String(), What: "node", Matches: names}
	}
}

func owner(snap *tree.Snapshot, level okr.Level, id okr.ID) (okr.ID, bool) {
	switch level {
	case okr.LevelRoot:
		return "", id == snap.RootID
	case okr.LevelEpic:
		return snap.Epics.Owner(id)
	case okr.LevelObjective:
		return snap.Objectives.Owner(id)
	case okr.LevelKeyResult:
		return snap.KeyResults.Owner(id)
	case okr.LevelActivity:
		return snap.Activities.Owner(id)
	case okr.LevelTask:
		return snap.Tasks.Owner(id)
	}
	return "", false
}

// NotFoundError indicates nothing matched the input.
type NotFoundError struct {
	Input string
	What  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.What, e.Input)
}

// AmbiguousError indicates more than one candidate matched the input.
type AmbiguousError struct {
	Input   string
	What    string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous %s '%s' matches %d candidates", e.What, e.Input, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly message listing the candidates
// (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous %s '%s' matches %d candidates:\n", err.What, err.Input, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nPass --level to pick one."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}

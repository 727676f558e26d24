package tree

import "github.com/dyluth/canopy/pkg/okr"

// FailureMode decides what a fetch failure at a level does to a load.
type FailureMode int

const (
	// Fatal aborts the whole load; no snapshot is produced.
	Fatal FailureMode = iota

	// Degrade records a FetchFailure, leaves that one parent without a
	// bucket, and continues the cascade with its subtree empty.
	Degrade
)

func (m FailureMode) String() string {
	if m == Degrade {
		return "degrade"
	}
	return "fatal"
}

// FailurePolicy maps each level to a FailureMode. Levels not listed are Fatal.
type FailurePolicy struct {
	Name  string
	Modes map[okr.Level]FailureMode
}

// Mode returns the failure mode for level.
func (p FailurePolicy) Mode(level okr.Level) FailureMode {
	if mode, ok := p.Modes[level]; ok {
		return mode
	}
	return Fatal
}

// DefaultPolicy: the root detail and the epic list are fatal because nothing
// below them can be discovered without them. Every per-parent fan-out fetch
// below degrades to an empty subtree for that parent.
var DefaultPolicy = FailurePolicy{
	Name: "default",
	Modes: map[okr.Level]FailureMode{
		okr.LevelRoot:      Fatal,
		okr.LevelEpic:      Fatal,
		okr.LevelObjective: Degrade,
		okr.LevelKeyResult: Degrade,
		okr.LevelActivity:  Degrade,
		okr.LevelTask:      Degrade,
	},
}

// StrictPolicy makes every fetch failure fatal.
var StrictPolicy = FailurePolicy{
	Name:  "strict",
	Modes: map[okr.Level]FailureMode{},
}

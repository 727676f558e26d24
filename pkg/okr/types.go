package okr

import (
	"fmt"
	"strings"
)

// RootKind discriminates the two root topologies.
type RootKind string

const (
	// KindMission roots own Epics, which own Objectives.
	KindMission RootKind = "mission"

	// KindProject roots own Objectives directly.
	KindProject RootKind = "project"
)

// ParseRootKind accepts the canonical names as well as the backend's tipo
// discriminator values (mision, proyecto).
func ParseRootKind(s string) (RootKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mission", "mision", "misión":
		return KindMission, nil
	case "project", "proyecto":
		return KindProject, nil
	default:
		return "", fmt.Errorf("invalid root kind: %q (must be 'mission' or 'project')", s)
	}
}

// Validate checks the kind is one of the known values.
func (k RootKind) Validate() error {
	if k != KindMission && k != KindProject {
		return fmt.Errorf("invalid root kind: %q (must be 'mission' or 'project')", string(k))
	}
	return nil
}

// Tipo returns the backend discriminator for the kind.
func (k RootKind) Tipo() string {
	if k == KindMission {
		return "mision"
	}
	return "proyecto"
}

// HasEpics reports whether an Epic layer sits between the root and its Objectives.
func (k RootKind) HasEpics() bool {
	return k == KindMission
}

// Level names a fixed position in the hierarchy.
type Level string

const (
	LevelRoot      Level = "root"
	LevelEpic      Level = "epic"
	LevelObjective Level = "objective"
	LevelKeyResult Level = "key_result"
	LevelActivity  Level = "activity"
	LevelTask      Level = "task"
)

// Levels lists every level top-down.
var Levels = []Level{LevelRoot, LevelEpic, LevelObjective, LevelKeyResult, LevelActivity, LevelTask}

// Validate checks the level is known.
func (l Level) Validate() error {
	for _, known := range Levels {
		if l == known {
			return nil
		}
	}
	return fmt.Errorf("invalid level: %q", string(l))
}

// Label returns a human-readable level name.
func (l Level) Label() string {
	switch l {
	case LevelKeyResult:
		return "Key Result"
	case LevelRoot:
		return "Root"
	case LevelEpic:
		return "Epic"
	case LevelObjective:
		return "Objective"
	case LevelActivity:
		return "Activity"
	case LevelTask:
		return "Task"
	default:
		return string(l)
	}
}

// TaskStatus is the flat lifecycle of a Task. It is opaque to the tree
// engine and simply round-tripped.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists the known statuses in display order.
var TaskStatuses = []TaskStatus{TaskStatusBacklog, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled}

// Known reports whether the status is one of the documented values.
// Servers may send others; callers that only display data should not reject them.
func (s TaskStatus) Known() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Validate is used on user input only.
func (s TaskStatus) Validate() error {
	if !s.Known() {
		return fmt.Errorf("invalid task status: %q (must be one of backlog, in_progress, completed, cancelled)", string(s))
	}
	return nil
}

package outline

import (
	"path/filepath"

	"github.com/dyluth/canopy/pkg/okr"
)

// Criteria defines filtering criteria for tasks.
// All filters are ANDed together - a task must match ALL criteria to be shown.
// Levels above Task are never filtered.
type Criteria struct {
	Statuses        []okr.TaskStatus // Any of these statuses, empty = no filter
	TitleGlob       string           // Glob pattern for the task title, empty = no filter
	Assignee        okr.ID           // Exact match for assignee_id, empty = no filter
	HideArchived    bool             // Drop tasks with archived set
}

// Matches returns true if the task matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(task okr.Task) bool {
	if c == nil {
		return true
	}

	if task.Archived && c.HideArchived {
		return false
	}

	if len(c.Statuses) > 0 {
		found := false
		for _, s := range c.Statuses {
			if task.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if c.TitleGlob != "" {
		matched, err := filepath.Match(c.TitleGlob, task.Title)
		if err != nil || !matched {
			return false
		}
	}

	if !c.Assignee.IsZero() && task.Assignee != c.Assignee {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	if c == nil {
		return false
	}
	return len(c.Statuses) > 0 ||
		c.TitleGlob != "" ||
		!c.Assignee.IsZero() ||
		c.HideArchived
}

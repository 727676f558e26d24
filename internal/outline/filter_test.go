package outline

import (
	"testing"

	"github.com/dyluth/canopy/pkg/okr"
	"github.com/stretchr/testify/assert"
)

func TestCriteriaMatches(t *testing.T) {
	task := okr.Task{ID: "T1", Title: "Call customers", Status: okr.TaskStatusInProgress, Assignee: "7"}

	tests := []struct {
		name     string
		criteria *Criteria
		task     okr.Task
		expected bool
	}{
		{"nil criteria", nil, task, true},
		{"empty criteria", &Criteria{}, task, true},
		{"status match", &Criteria{Statuses: []okr.TaskStatus{okr.TaskStatusBacklog, okr.TaskStatusInProgress}}, task, true},
		{"status mismatch", &Criteria{Statuses: []okr.TaskStatus{okr.TaskStatusCompleted}}, task, false},
		{"title glob match", &Criteria{TitleGlob: "Call*"}, task, true},
		{"title glob mismatch", &Criteria{TitleGlob: "Email*"}, task, false},
		{"malformed glob", &Criteria{TitleGlob: "[Call"}, task, false},
		{"assignee match", &Criteria{Assignee: "7"}, task, true},
		{"assignee mismatch", &Criteria{Assignee: "8"}, task, false},
		{"archived shown by default", &Criteria{}, okr.Task{Archived: true}, true},
		{"archived hidden", &Criteria{HideArchived: true}, okr.Task{Archived: true}, false},
		{"all criteria", &Criteria{Statuses: []okr.TaskStatus{okr.TaskStatusInProgress}, TitleGlob: "*customers", Assignee: "7", HideArchived: true}, task, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.criteria.Matches(tt.task))
		})
	}
}

func TestCriteriaHasFilters(t *testing.T) {
	var nilCriteria *Criteria
	assert.False(t, nilCriteria.HasFilters())
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{Statuses: []okr.TaskStatus{okr.TaskStatusBacklog}}).HasFilters())
	assert.True(t, (&Criteria{TitleGlob: "*"}).HasFilters())
	assert.True(t, (&Criteria{Assignee: "1"}).HasFilters())
	assert.True(t, (&Criteria{HideArchived: true}).HasFilters())
}

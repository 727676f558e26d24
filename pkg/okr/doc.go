// Package okr provides type-safe Go definitions for the goal-tracking hierarchy
// mirrored by canopy.
//
// # Overview
//
// A tree hangs off a Root, which is either a Mission or a Project. The levels
// below the Root are fixed:
//
//	Mission → Epic → Objective → KeyResult → Activity → Task
//	Project →        Objective → KeyResult → Activity → Task
//
// Containment is strict: every child has exactly one parent of a fixed type.
// Under a Mission an Objective belongs to an Epic; under a Project it belongs
// to the Root directly.
//
// # Server-owned fields
//
// KeyResult.Progress, Activity.Progress and Task.CompletionPercentage are
// computed by the server. They are decoded from responses but never sent back:
// each entity's Fields method returns only the writable field set, and that is
// the only thing a client puts on the wire.
//
// # Identifiers
//
// The backend assigns integer ids. ID accepts them as JSON numbers or strings
// and writes numeric ids back as numbers, so parent foreign keys round-trip in
// the shape the server expects.
//
// # Usage Example
//
//	task := okr.Task{
//		Title:  "Draft launch checklist",
//		Status: okr.TaskStatusBacklog,
//	}
//	body := task.Fields()
//	// body = {"title": "...", "desc": "", "status": "backlog", "archived": false}
package okr

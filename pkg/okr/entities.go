package okr

// Node is implemented by every entity that lives below a Root.
type Node interface {
	// NodeID returns the entity's server-assigned id.
	NodeID() ID

	// ParentID returns the parent foreign key as reported by the server.
	// It may be empty when a response omits it.
	ParentID() ID

	// Fields returns the writable field set sent on create and update.
	// Server-computed fields are never included.
	Fields() map[string]any
}

// Root is a Mission or Project.
type Root struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"tipo,omitempty"` // backend discriminator: mision | proyecto
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedBy   ID     `json:"created_by,omitempty"`
}

// RootDetail is the root detail payload. Project roots embed their
// Objectives; Mission roots leave Objectives empty and expose Epics through
// the epics resource.
type RootDetail struct {
	Root
	Objectives []Objective `json:"objectives,omitempty"`
}

// Epic groups Objectives under a Mission.
type Epic struct {
	ID          ID     `json:"id"`
	Project     ID     `json:"project"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       ID     `json:"owner,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"` // read-only
	Created     string `json:"created,omitempty"`    // read-only
	Updated     string `json:"updated,omitempty"`    // read-only
}

func (e Epic) NodeID() ID   { return e.ID }
func (e Epic) ParentID() ID { return e.Project }

func (e Epic) Fields() map[string]any {
	return map[string]any{
		"title":       e.Title,
		"description": e.Description,
	}
}

// Objective belongs to an Epic (Mission trees) or to the Root (Project trees).
type Objective struct {
	ID          ID     `json:"id"`
	Epic        ID     `json:"epic"`
	Project     ID     `json:"project"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       ID     `json:"owner,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"` // read-only
	Created     string `json:"created,omitempty"`    // read-only
	Updated     string `json:"updated,omitempty"`    // read-only
}

func (o Objective) NodeID() ID { return o.ID }

// ParentID prefers the Epic foreign key and falls back to the Project.
func (o Objective) ParentID() ID {
	if !o.Epic.IsZero() {
		return o.Epic
	}
	return o.Project
}

func (o Objective) Fields() map[string]any {
	return map[string]any{
		"title":       o.Title,
		"description": o.Description,
	}
}

// KeyResult is a measurable outcome of an Objective (an "OKR" on the wire).
type KeyResult struct {
	ID           ID     `json:"id"`
	Objective    ID     `json:"objective"`
	Title        string `json:"key_result"`
	CurrentValue int    `json:"current_value"`
	TargetValue  int    `json:"target_value"`
	Progress     int    `json:"progress"` // read-only, server computed
	Owner        ID     `json:"owner,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"` // read-only
	Created      string `json:"created,omitempty"`    // read-only
	Updated      string `json:"updated,omitempty"`    // read-only
}

func (k KeyResult) NodeID() ID   { return k.ID }
func (k KeyResult) ParentID() ID { return k.Objective }

func (k KeyResult) Fields() map[string]any {
	return map[string]any{
		"key_result":    k.Title,
		"current_value": k.CurrentValue,
		"target_value":  k.TargetValue,
	}
}

// Activity is a dated unit of work under a KeyResult.
type Activity struct {
	ID          ID     `json:"id"`
	KeyResult   ID     `json:"okr"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Progress    int    `json:"progress"` // read-only, server computed
	Owner       ID     `json:"owner,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"` // read-only
	Created     string `json:"created,omitempty"`    // read-only
	Updated     string `json:"updated,omitempty"`    // read-only
}

func (a Activity) NodeID() ID   { return a.ID }
func (a Activity) ParentID() ID { return a.KeyResult }

func (a Activity) Fields() map[string]any {
	fields := map[string]any{
		"name":        a.Name,
		"description": a.Description,
		"start_date":  a.StartDate,
	}
	if a.EndDate != "" {
		fields["end_date"] = a.EndDate
	} else {
		fields["end_date"] = nil
	}
	return fields
}

// Task is the leaf level.
type Task struct {
	ID                   ID         `json:"id"`
	Activity             ID         `json:"activity"`
	Title                string     `json:"title"`
	Description          string     `json:"desc"`
	Status               TaskStatus `json:"status"`
	CompletionPercentage int        `json:"completion_percentage"` // read-only, server computed
	Assignee             ID         `json:"assignee_id,omitempty"`
	AssigneeName         string     `json:"assignee_name,omitempty"` // read-only
	Archived             bool       `json:"archived"`
	Created              string     `json:"created,omitempty"` // read-only
	Updated              string     `json:"updated,omitempty"` // read-only
}

func (t Task) NodeID() ID   { return t.ID }
func (t Task) ParentID() ID { return t.Activity }

func (t Task) Fields() map[string]any {
	return map[string]any{
		"title":    t.Title,
		"desc":     t.Description,
		"status":   string(t.Status),
		"archived": t.Archived,
	}
}

// ReadOnlyFields lists the wire keys the server owns. Nothing built by this
// module ever places them in a request body.
var ReadOnlyFields = []string{
	"progress",
	"completion_percentage",
	"owner_name",
	"assignee_name",
	"created",
	"updated",
}

package models

import "time"

// TargetKind discriminates the entity a workflow execution acts on.
type TargetKind string

const (
	TargetKindTicket     TargetKind = "ticket"
	TargetKindUser       TargetKind = "user"
	TargetKindDepartment TargetKind = "department"
)

// Target is a tagged union over the helpdesk entities; exactly one payload matches Kind.
type Target struct {
	Kind       TargetKind  `json:"kind"`
	Ticket     *Ticket     `json:"ticket,omitempty"`
	User       *User       `json:"user,omitempty"`
	Department *Department `json:"department,omitempty"`
}

// TicketTarget wraps a ticket.
func TicketTarget(ticket *Ticket) *Target {
	return &Target{Kind: TargetKindTicket, Ticket: ticket}
}

// UserTarget wraps a user.
func UserTarget(user *User) *Target {
	return &Target{Kind: TargetKindUser, User: user}
}

// DepartmentTarget wraps a department.
func DepartmentTarget(department *Department) *Target {
	return &Target{Kind: TargetKindDepartment, Department: department}
}

// ID returns the identifier of the wrapped entity.
func (t *Target) ID() string {
	switch {
	case t == nil:
		return ""
	case t.Kind == TargetKindTicket && t.Ticket != nil:
		return t.Ticket.ID
	case t.Kind == TargetKindUser && t.User != nil:
		return t.User.ID
	case t.Kind == TargetKindDepartment && t.Department != nil:
		return t.Department.ID
	default:
		return ""
	}
}

// Descriptor is the compact {type, id} reference sent to external systems.
func (t *Target) Descriptor() map[string]any {
	if t == nil {
		return nil
	}

	return map[string]any{
		"type": string(t.Kind),
		"id":   t.ID(),
	}
}

// Fields exposes the wrapped entity as a map for condition path resolution.
func (t *Target) Fields() map[string]any {
	switch {
	case t == nil:
		return nil
	case t.Kind == TargetKindTicket && t.Ticket != nil:
		return t.Ticket.Fields()
	case t.Kind == TargetKindUser && t.User != nil:
		return t.User.Fields()
	case t.Kind == TargetKindDepartment && t.Department != nil:
		return t.Department.Fields()
	default:
		return map[string]any{}
	}
}

// Ticket is the helpdesk ticket shape the engine reads and mutates.
type Ticket struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description,omitempty"`
	Status         string         `json:"status"`
	Priority       string         `json:"priority"`
	AssigneeID     string         `json:"assignee_id,omitempty"`
	DepartmentID   string         `json:"department_id,omitempty"`
	RequesterID    string         `json:"requester_id,omitempty"`
	ParentID       string         `json:"parent_id,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	CustomFields   map[string]any `json:"custom_fields,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Fields returns the ticket as a map.
func (t *Ticket) Fields() map[string]any {
	tags := make([]any, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, tag)
	}

	return map[string]any{
		"id":              t.ID,
		"organization_id": t.OrganizationID,
		"subject":         t.Subject,
		"description":     t.Description,
		"status":          t.Status,
		"priority":        t.Priority,
		"assignee_id":     t.AssigneeID,
		"department_id":   t.DepartmentID,
		"requester_id":    t.RequesterID,
		"parent_id":       t.ParentID,
		"tags":            tags,
		"custom_fields":   t.CustomFields,
	}
}

// HasTag reports whether tag is already present.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}

	return false
}

// User roles that can be picked by team assignment.
const (
	RoleAgent      = "agent"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
	RoleClient     = "client"
)

// User is a helpdesk account.
type User struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	DepartmentID   string `json:"department_id,omitempty"`
	Active         bool   `json:"active"`
}

// CanWorkTickets reports whether the user may be auto-assigned.
func (u *User) CanWorkTickets() bool {
	return u.Active && (u.Role == RoleAgent || u.Role == RoleTechnician)
}

// Fields returns the user as a map.
func (u *User) Fields() map[string]any {
	return map[string]any{
		"id":              u.ID,
		"organization_id": u.OrganizationID,
		"name":            u.Name,
		"email":           u.Email,
		"role":            u.Role,
		"department_id":   u.DepartmentID,
		"active":          u.Active,
	}
}

// Department groups agents.
type Department struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
}

// Fields returns the department as a map.
func (d *Department) Fields() map[string]any {
	return map[string]any{
		"id":              d.ID,
		"organization_id": d.OrganizationID,
		"name":            d.Name,
	}
}

// Comment is a note appended to a ticket.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

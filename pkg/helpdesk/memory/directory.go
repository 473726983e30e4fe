// Package memory keeps helpdesk entities in process memory for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/google/uuid"
)

// Mail is one message captured by the directory mailer.
type Mail struct {
	TemplateID string
	Data       map[string]any
	SentAt     time.Time
}

// Seed is the on-disk shape accepted by LoadSeed.
type Seed struct {
	Tickets     []*models.Ticket     `json:"tickets"`
	Users       []*models.User       `json:"users"`
	Departments []*models.Department `json:"departments"`
}

// Directory implements every helpdesk collaborator over maps.
// Entities are copied on the way in and out so callers never share state with the store.
type Directory struct {
	mu          sync.RWMutex
	tickets     map[string]*models.Ticket
	users       map[string]*models.User
	departments map[string]*models.Department
	comments    map[string][]*models.Comment
	mails       []Mail
}

var (
	_ helpdesk.TargetLoader = (*Directory)(nil)
	_ helpdesk.Tickets      = (*Directory)(nil)
	_ helpdesk.Agents       = (*Directory)(nil)
	_ helpdesk.Mailer       = (*Directory)(nil)
)

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		tickets:     make(map[string]*models.Ticket),
		users:       make(map[string]*models.User),
		departments: make(map[string]*models.Department),
		comments:    make(map[string][]*models.Comment),
	}
}

// LoadSeed builds a directory from a JSON seed file.
func LoadSeed(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed

	err = json.Unmarshal(data, &seed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	dir := NewDirectory()

	for _, ticket := range seed.Tickets {
		dir.PutTicket(ticket)
	}

	for _, user := range seed.Users {
		dir.PutUser(user)
	}

	for _, department := range seed.Departments {
		dir.PutDepartment(department)
	}

	return dir, nil
}

// PutTicket stores a copy of ticket.
func (d *Directory) PutTicket(ticket *models.Ticket) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tickets[ticket.ID] = cloneTicket(ticket)
}

// PutUser stores a copy of user.
func (d *Directory) PutUser(user *models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := *user
	d.users[user.ID] = &u
}

// PutDepartment stores a copy of department.
func (d *Directory) PutDepartment(department *models.Department) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dep := *department
	d.departments[department.ID] = &dep
}

// Ticket returns a copy of the stored ticket.
func (d *Directory) Ticket(id string) (*models.Ticket, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ticket, ok := d.tickets[id]
	if !ok {
		return nil, false
	}

	return cloneTicket(ticket), true
}

// Tickets returns copies of every stored ticket.
func (d *Directory) Tickets() []*models.Ticket {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*models.Ticket, 0, len(d.tickets))
	for _, ticket := range d.tickets {
		out = append(out, cloneTicket(ticket))
	}

	return out
}

// Comments returns the comments appended to a ticket, oldest first.
func (d *Directory) Comments(ticketID string) []*models.Comment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.comments[ticketID])
}

// Mails returns the captured mails.
func (d *Directory) Mails() []Mail {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.mails)
}

func (d *Directory) Load(_ context.Context, kind models.TargetKind, id string) (*models.Target, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch kind {
	case models.TargetKindTicket:
		ticket, ok := d.tickets[id]
		if !ok {
			return nil, nil
		}

		return models.TicketTarget(cloneTicket(ticket)), nil
	case models.TargetKindUser:
		user, ok := d.users[id]
		if !ok {
			return nil, nil
		}

		u := *user

		return models.UserTarget(&u), nil
	case models.TargetKindDepartment:
		department, ok := d.departments[id]
		if !ok {
			return nil, nil
		}

		dep := *department

		return models.DepartmentTarget(&dep), nil
	default:
		return nil, fmt.Errorf("%w: %s", helpdesk.ErrUnknownTargetKind, kind)
	}
}

func (d *Directory) SaveTicket(_ context.Context, ticket *models.Ticket) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tickets[ticket.ID]; !ok {
		return fmt.Errorf("ticket %s not found", ticket.ID)
	}

	stored := cloneTicket(ticket)
	stored.UpdatedAt = time.Now().UTC()
	d.tickets[ticket.ID] = stored

	return nil
}

func (d *Directory) CreateTicket(_ context.Context, ticket *models.Ticket) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	d.tickets[ticket.ID] = cloneTicket(ticket)

	return nil
}

func (d *Directory) AddComment(_ context.Context, comment *models.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tickets[comment.TicketID]; !ok {
		return fmt.Errorf("ticket %s not found", comment.TicketID)
	}

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}

	c := *comment
	d.comments[comment.TicketID] = append(d.comments[comment.TicketID], &c)

	return nil
}

func (d *Directory) DepartmentMembers(_ context.Context, organizationID, departmentID string) ([]*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]*models.User, 0)

	for _, id := range slices.Sorted(maps.Keys(d.users)) {
		user := d.users[id]
		if user.DepartmentID != departmentID {
			continue
		}

		if organizationID != "" && user.OrganizationID != "" && user.OrganizationID != organizationID {
			continue
		}

		u := *user
		members = append(members, &u)
	}

	return members, nil
}

func (d *Directory) Send(_ context.Context, templateID string, data map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mails = append(d.mails, Mail{TemplateID: templateID, Data: maps.Clone(data), SentAt: time.Now().UTC()})

	return nil
}

func cloneTicket(ticket *models.Ticket) *models.Ticket {
	t := *ticket
	t.Tags = slices.Clone(ticket.Tags)
	t.CustomFields = maps.Clone(ticket.CustomFields)

	return &t
}

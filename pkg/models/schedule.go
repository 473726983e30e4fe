package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule emits time_based events for one organization on a cron expression.
// Definitions select a schedule through their trigger conditions, e.g. {"schedule": "nightly-sla"}.
type Schedule struct {
	// ID names the schedule; it is sent as the "schedule" payload field.
	ID string `json:"id" yaml:"id" validate:"required"`

	OrganizationID string `json:"organization_id" yaml:"organization_id" validate:"required"`

	// CronExpression uses the standard 5-field format (minute hour day month weekday).
	CronExpression string `json:"cron_expression" yaml:"cron_expression" validate:"required"`

	// Payload is merged into every emitted event.
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`

	NextDueAt time.Time `json:"next_due_at" yaml:"-"`
	Active    bool      `json:"active" yaml:"active"`
}

// NewSchedule creates an active schedule with its first due time computed from now.
func NewSchedule(id, organizationID, cronExpression string, now time.Time) (*Schedule, error) {
	schedule := &Schedule{
		ID:             id,
		OrganizationID: organizationID,
		CronExpression: cronExpression,
		Active:         true,
	}

	if err := schedule.Advance(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Advance moves NextDueAt to the first activation after reference.
func (s *Schedule) Advance(reference time.Time) error {
	cronSchedule, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = cronSchedule.Next(reference)

	return nil
}

// IsDue checks if this schedule is due at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.IsZero() && !s.NextDueAt.After(now)
}

// Validate checks identity fields and the cron expression.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.OrganizationID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	_, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return errors.Join(ErrInvalidSchedule, err)
	}

	return nil
}

// Event builds the time_based event fired for this schedule.
func (s *Schedule) Event(at time.Time) *Event {
	payload := make(map[string]any, len(s.Payload)+1)
	for k, v := range s.Payload {
		payload[k] = v
	}

	payload["schedule"] = s.ID

	return &Event{
		Type:           TriggerTimeBased,
		OrganizationID: s.OrganizationID,
		Payload:        payload,
		OccurredAt:     at,
	}
}

// Package scheduler emits time_based events for cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
)

// DefaultInterval is how often due schedules are polled.
const DefaultInterval = time.Minute

var ErrScheduleNotFound = errors.New("schedule not found")

// Handler receives each time_based event.
type Handler func(ctx context.Context, event *models.Event) error

// Scheduler polls its schedules on a fixed interval and fires the due ones, whatever their
// individual cron expressions.
type Scheduler struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	interval  time.Duration
	mu        sync.Mutex
	schedules map[string]*models.Schedule
	handler   Handler
	stopCh    chan struct{}
	started   bool
	wg        sync.WaitGroup
}

func New(logger *slog.Logger, clock clockwork.Clock, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		logger:    logger.With("module", "scheduler"),
		clock:     clock,
		interval:  interval,
		schedules: make(map[string]*models.Schedule),
	}
}

// Add registers or replaces a schedule. Its first due time is computed from now when unset.
func (s *Scheduler) Add(schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule.ID, err)
	}

	if schedule.NextDueAt.IsZero() {
		if err := schedule.Advance(s.clock.Now()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules[schedule.ID] = schedule

	s.logger.Info("Schedule registered",
		"schedule_id", schedule.ID,
		"organization_id", schedule.OrganizationID,
		"cron", schedule.CronExpression,
		"next_due_at", schedule.NextDueAt)

	return nil
}

func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}

	delete(s.schedules, id)

	return nil
}

// Schedules returns the registered schedules ordered by id.
func (s *Scheduler) Schedules() []*models.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules := make([]*models.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		copied := *schedule
		schedules = append(schedules, &copied)
	}

	slices.SortFunc(schedules, func(a, b *models.Schedule) int {
		return strings.Compare(a.ID, b.ID)
	})

	return schedules
}

// Start begins polling. Calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.handler = handler
	s.stopCh = make(chan struct{})
	s.started = true

	ticker := s.clock.NewTicker(s.interval)

	s.wg.Add(1)

	go s.poll(ctx, ticker)

	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.interval, "schedules", len(s.schedules))

	return nil
}

func (s *Scheduler) poll(ctx context.Context, ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.processDue(ctx)
		}
	}
}

// processDue fires every due schedule once and moves it to its next activation.
// It returns how many events were handed off.
func (s *Scheduler) processDue(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()

	due := make([]*models.Schedule, 0)

	for _, schedule := range s.schedules {
		if !schedule.IsDue(now) {
			continue
		}

		copied := *schedule
		due = append(due, &copied)

		if err := schedule.Advance(now); err != nil {
			s.logger.ErrorContext(ctx, "Failed to advance schedule", "schedule_id", schedule.ID, "error", err)
		}
	}

	handler := s.handler

	s.mu.Unlock()

	fired := 0

	for _, schedule := range due {
		event := schedule.Event(now)
		event.ID = uuid.NewString()
		event.Payload["due_at"] = schedule.NextDueAt.UTC().Format(time.RFC3339)

		s.logger.InfoContext(ctx, "Schedule due",
			"schedule_id", schedule.ID,
			"organization_id", schedule.OrganizationID,
			"due_at", schedule.NextDueAt)

		if err := handler(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to handle schedule event", "schedule_id", schedule.ID, "error", err)

			continue
		}

		fired++
	}

	return fired
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	close(s.stopCh)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

type scheduleFile struct {
	Schedules []*models.Schedule `yaml:"schedules"`
}

// LoadFile reads schedules from a YAML document of the form
//
//	schedules:
//	  - id: nightly-sla
//	    organization_id: org-1
//	    cron_expression: "0 2 * * *"
//	    active: true
func LoadFile(path string) ([]*models.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules: %w", err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schedules %s: %w", path, err)
	}

	for _, schedule := range file.Schedules {
		if err := schedule.Validate(); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", schedule.ID, err)
		}
	}

	return file.Schedules, nil
}

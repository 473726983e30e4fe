// Package main provides the deskflow worker: it feeds events from the bus, the redis queue and
// the cron scheduler into the engine and relays queued mail.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/deskflow/pkg/cmd"
	"github.com/dukex/deskflow/pkg/events"
	"github.com/dukex/deskflow/pkg/mail"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/scheduler"
	"github.com/dukex/deskflow/pkg/sources/redisqueue"
	redis "github.com/redis/go-redis/v9"
)

type WorkerOptions struct {
	QueueRedisURL string
	QueueName     string
	SchedulesFile string
}

type Worker struct {
	logger    *slog.Logger
	runtime   *cmd.Runtime
	options   WorkerOptions
	queue     *redisqueue.Source
	scheduler *scheduler.Scheduler
}

func NewWorker(logger *slog.Logger, runtime *cmd.Runtime, options WorkerOptions) *Worker {
	return &Worker{
		logger:  logger.With("module", "worker"),
		runtime: runtime,
		options: options,
	}
}

// trigger hands one event to the engine.
func (w *Worker) trigger(ctx context.Context, event *models.Event) error {
	decisions, err := w.runtime.Engine.TriggerWorkflows(ctx, event)
	if err != nil {
		return err
	}

	w.logger.DebugContext(ctx, "Event dispatched", "event_id", event.ID, "decisions", len(decisions))

	return nil
}

func (w *Worker) handleDomainEvent(ctx context.Context, event any) error {
	domainEvent, ok := event.(*events.DomainEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	return w.trigger(ctx, &domainEvent.Event)
}

// Start subscribes to the bus and starts the optional intake sources.
func (w *Worker) Start(ctx context.Context) error {
	bus := w.runtime.Bus

	if err := bus.Handle(events.DomainEventReceived, w.handleDomainEvent); err != nil {
		return err
	}

	relay := mail.NewRelay(mail.NewLogMailer(w.logger), w.logger)
	if err := relay.Register(bus); err != nil {
		return err
	}

	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	if w.options.QueueRedisURL != "" {
		if err := w.startQueue(ctx); err != nil {
			return err
		}
	}

	if w.options.SchedulesFile != "" {
		if err := w.startScheduler(ctx); err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started")

	return nil
}

func (w *Worker) startQueue(ctx context.Context) error {
	options, err := redis.ParseURL(w.options.QueueRedisURL)
	if err != nil {
		return fmt.Errorf("invalid queue redis url: %w", err)
	}

	w.queue, err = redisqueue.NewSource(ctx, redisqueue.Config{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
		Queue:    w.options.QueueName,
	}, w.logger)
	if err != nil {
		return err
	}

	return w.queue.Start(ctx, w.trigger)
}

func (w *Worker) startScheduler(ctx context.Context) error {
	schedules, err := scheduler.LoadFile(w.options.SchedulesFile)
	if err != nil {
		return err
	}

	w.scheduler = scheduler.New(w.logger, nil, scheduler.DefaultInterval)

	for _, schedule := range schedules {
		if err := w.scheduler.Add(schedule); err != nil {
			return err
		}
	}

	return w.scheduler.Start(ctx, w.trigger)
}

// Stop halts the intake sources and waits for running executions.
func (w *Worker) Stop(ctx context.Context) error {
	var errs []error

	if w.queue != nil {
		errs = append(errs, w.queue.Stop(ctx))
	}

	if w.scheduler != nil {
		errs = append(errs, w.scheduler.Stop(ctx))
	}

	w.runtime.Engine.Wait()

	w.logger.InfoContext(ctx, "Worker stopped")

	return errors.Join(errs...)
}

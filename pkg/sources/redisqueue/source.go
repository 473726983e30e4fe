// Package redisqueue feeds helpdesk events pushed onto a redis list into the engine.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

// DefaultQueue is the list producers RPUSH events onto.
const DefaultQueue = "deskflow:events"

var ErrQueueRequired = errors.New("queue name is required")

// Handler receives one decoded event.
type Handler func(ctx context.Context, event *models.Event) error

type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Source pops JSON encoded models.Event values from a redis list.
type Source struct {
	queue    string
	client   redis.UniversalClient
	handler  Handler
	validate *validator.Validate
	clock    clockwork.Clock
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSource connects to redis.
func NewSource(ctx context.Context, config Config, logger *slog.Logger) (*Source, error) {
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewSourceWithClient(client, config.Queue, logger)
}

// NewSourceWithClient wraps an existing client.
func NewSourceWithClient(client redis.UniversalClient, queue string, logger *slog.Logger) (*Source, error) {
	if queue == "" {
		return nil, ErrQueueRequired
	}

	return &Source{
		queue:    queue,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clockwork.NewRealClock(),
		logger:   logger.With("module", "redis_event_source", "queue", queue),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start consumes the queue until ctx is done or Stop is called.
func (s *Source) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	s.handler = handler

	s.logger.InfoContext(ctx, "Starting redis event source")

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Redis event source stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Redis event source context cancelled")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "Error processing queue message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	event, err := s.Decode([]byte(result[1]))
	if err != nil {
		// a malformed message can never succeed, so it is dropped rather than requeued
		s.logger.WarnContext(ctx, "Dropping malformed event", "error", err)

		return nil
	}

	logger := s.logger.With("event_id", event.ID, "event_type", event.Type)
	logger.DebugContext(ctx, "Received event from queue")

	if err := s.handler(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Error handling event", "error", err)
	}

	return nil
}

// Decode parses and validates one queue message. A missing id or timestamp is filled in.
func (s *Source) Decode(message []byte) (*models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}

	if err := s.validate.Struct(&event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	if !event.Type.Valid() {
		return nil, fmt.Errorf("invalid event: unknown trigger type %q", event.Type)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().UTC()
	}

	return &event, nil
}

// Push enqueues an event. Producers in other services do the same with RPUSH.
func (s *Source) Push(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.client.RPush(ctx, s.queue, payload).Err()
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping redis event source")

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
	}

	return nil
}

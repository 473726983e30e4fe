package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dukex/deskflow/pkg/eventbus"
	"github.com/dukex/deskflow/pkg/helpdesk/memory"
	"github.com/dukex/deskflow/pkg/mail"
	"github.com/dukex/deskflow/pkg/otelhelper"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/dukex/deskflow/pkg/registry"
	"github.com/dukex/deskflow/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

// Runtime holds everything a deskflow process runs on.
type Runtime struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Bus         eventbus.EventBus
	Directory   *memory.Directory
	Registry    *registry.Registry
	Validator   *workflow.Validator
	Engine      *workflow.Engine

	guard          workflow.Guard
	shutdownTracer otelhelper.ShutdownFunc
}

// NewRuntime builds the store, bus, helpdesk, action registry, guard and engine for config.
// send_email actions go through the mail outbox, so some process must run a mail.Relay.
func NewRuntime(ctx context.Context, logger *slog.Logger, config Config) (*Runtime, error) {
	rt := &Runtime{Logger: logger}

	store, err := NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	rt.Persistence = store

	rt.Bus, err = NewEventBus(config.EventBus, config.KafkaBrokers, config.ServiceName, logger)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	rt.Directory = memory.NewDirectory()
	if config.SeedFile != "" {
		rt.Directory, err = memory.LoadSeed(config.SeedFile)
		if err != nil {
			rt.Close(ctx)

			return nil, err
		}
	}

	rt.Registry, err = NewRegistry(ctx, logger, config.PluginsPath, Helpdesk{
		Tickets: rt.Directory,
		Agents:  rt.Directory,
		Mailer:  mail.NewOutbox(rt.Bus, logger),
	}, ActionTimeouts{
		Webhook: config.WebhookTimeout,
		Email:   config.EmailTimeout,
	})
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	rt.Validator = workflow.NewValidator(rt.Registry.HasAction)

	rt.guard, err = NewGuard(ctx, logger, config.RedisURL, config.WorkerID)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	var tracer trace.Tracer
	if config.TracingEnabled {
		tracer, rt.shutdownTracer, err = otelhelper.NewTracer(ctx, config.ServiceName)
		if err != nil {
			rt.Close(ctx)

			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	rt.Engine = workflow.NewEngine(workflow.Options{
		Logger:      logger,
		Definitions: store.DefinitionRepository(),
		Executions:  store.ExecutionRepository(),
		Targets:     rt.Directory,
		Actions:     rt.Registry,
		Guard:       rt.guard,
		Publisher:   rt.Bus,
		Tracer:      tracer,
		MaxSteps:    config.MaxSteps,
		WorkerID:    config.WorkerID,
	})

	if config.DefinitionsDir != "" {
		if err := rt.ImportDefinitions(ctx, config.DefinitionsDir); err != nil {
			rt.Close(ctx)

			return nil, err
		}
	}

	return rt, nil
}

// ImportDefinitions stores every definition file under dir, keeping the counters of
// definitions that already exist.
func (rt *Runtime) ImportDefinitions(ctx context.Context, dir string) error {
	definitions, err := workflow.LoadDefinitions(dir)
	if err != nil {
		return err
	}

	repo := rt.Persistence.DefinitionRepository()

	for _, definition := range definitions {
		if err := rt.Validator.Validate(definition); err != nil {
			return fmt.Errorf("definition %s: %w", definition.ID, err)
		}

		_, err := repo.Replace(ctx, definition)

		switch {
		case errors.Is(err, persistence.ErrSystemWorkflow):
			rt.Logger.InfoContext(ctx, "Keeping stored system workflow", "workflow_id", definition.ID)
		case err != nil:
			return err
		}
	}

	rt.Logger.InfoContext(ctx, "Imported workflow definitions", "path", dir, "count", len(definitions))

	return nil
}

// Close stops the engine and releases every resource, logging failures.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Engine != nil {
		rt.Engine.Shutdown()
	}

	var errs []error

	if rt.Bus != nil {
		errs = append(errs, rt.Bus.Close())
	}

	if rt.Persistence != nil {
		errs = append(errs, rt.Persistence.Close(ctx))
	}

	if closer, ok := rt.guard.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}

	if rt.shutdownTracer != nil {
		errs = append(errs, rt.shutdownTracer(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		rt.Logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
	}
}

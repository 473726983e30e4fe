// Package mail moves send_email requests off the execution path. The Outbox publishes each
// request on the event bus and the Relay delivers it on the consuming side.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/deskflow/pkg/eventbus"
	"github.com/dukex/deskflow/pkg/events"
	"github.com/dukex/deskflow/pkg/helpdesk"
)

var ErrTemplateRequired = errors.New("template id is required")

// Outbox is a helpdesk.Mailer that only enqueues.
type Outbox struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

var _ helpdesk.Mailer = (*Outbox)(nil)

func NewOutbox(publisher eventbus.EventPublisher, logger *slog.Logger) *Outbox {
	return &Outbox{
		publisher: publisher,
		logger:    logger.With("module", "mail_outbox"),
	}
}

// Send publishes a MailRequested event. The organization and workflow are taken from the
// "organization_id" and "workflow_id" entries of data when present.
func (o *Outbox) Send(ctx context.Context, templateID string, data map[string]any) error {
	if templateID == "" {
		return ErrTemplateRequired
	}

	organizationID, _ := data["organization_id"].(string)
	workflowID, _ := data["workflow_id"].(string)

	event := events.MailRequested{
		BaseEvent:  events.NewBaseEvent(events.MailRequestedEvent, organizationID, workflowID),
		TemplateID: templateID,
		Data:       data,
	}

	if err := o.publisher.Publish(ctx, templateID, event); err != nil {
		return fmt.Errorf("failed to enqueue mail %s: %w", templateID, err)
	}

	o.logger.DebugContext(ctx, "Mail enqueued", "template_id", templateID, "organization_id", organizationID)

	return nil
}

// Relay consumes MailRequested events and hands them to the delivering mailer.
type Relay struct {
	delivery helpdesk.Mailer
	logger   *slog.Logger
}

func NewRelay(delivery helpdesk.Mailer, logger *slog.Logger) *Relay {
	return &Relay{
		delivery: delivery,
		logger:   logger.With("module", "mail_relay"),
	}
}

// Register installs the relay handler on a subscriber.
func (r *Relay) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.MailRequestedEvent, r.Handle)
}

func (r *Relay) Handle(ctx context.Context, event any) error {
	request, ok := event.(*events.MailRequested)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	logger := r.logger.With("template_id", request.TemplateID, "organization_id", request.OrganizationID)

	if err := r.delivery.Send(ctx, request.TemplateID, request.Data); err != nil {
		logger.ErrorContext(ctx, "Mail delivery failed", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Mail delivered")

	return nil
}

// LogMailer delivers by logging. It stands in when no mail provider is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "log_mailer")}
}

func (m *LogMailer) Send(ctx context.Context, templateID string, data map[string]any) error {
	m.logger.InfoContext(ctx, "Sending mail", "template_id", templateID, "data", data)

	return nil
}

// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/deskflow/pkg/actions/email"
	"github.com/dukex/deskflow/pkg/actions/ticket"
	"github.com/dukex/deskflow/pkg/actions/wait"
	"github.com/dukex/deskflow/pkg/actions/webhook"
	"github.com/dukex/deskflow/pkg/helpdesk"
	"github.com/dukex/deskflow/pkg/registry"
	"github.com/jonboulle/clockwork"
)

// Helpdesk bundles the collaborators the native actions act through.
type Helpdesk struct {
	Tickets helpdesk.Tickets
	Agents  helpdesk.Agents
	Mailer  helpdesk.Mailer
}

// ActionTimeouts bounds the outbound actions.
type ActionTimeouts struct {
	Webhook time.Duration
	Email   time.Duration
}

func registerActionPlugins(ctx context.Context, reg *registry.Registry, pluginsPath string) error {
	actionPlugins, err := reg.LoadActionPlugins(ctx, pluginsPath)
	if err != nil {
		return err
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

func registerNativeActions(reg *registry.Registry, desk Helpdesk, timeouts ActionTimeouts) {
	for _, factory := range ticket.Factories(desk.Tickets, desk.Agents) {
		reg.RegisterAction(factory)
	}

	reg.RegisterAction(email.NewActionFactory(desk.Mailer, timeouts.Email))
	reg.RegisterAction(webhook.NewActionFactory(timeouts.Webhook))
	reg.RegisterAction(wait.NewActionFactory(clockwork.NewRealClock()))
}

// NewRegistry registers plugins first so that a native action of the same kind wins.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string, desk Helpdesk, timeouts ActionTimeouts) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	if err := registerActionPlugins(ctx, reg, pluginsPath); err != nil {
		return nil, err
	}

	registerNativeActions(reg, desk, timeouts)

	return reg, nil
}

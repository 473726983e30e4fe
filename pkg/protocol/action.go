// Package protocol defines the contracts between the engine and pluggable action handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/deskflow/pkg/models"
)

// Action is one configured action ready to run against an execution context.
// The returned map is stored verbatim as the step result.
type Action interface {
	Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionFactory builds actions of a single kind from step parameters.
type ActionFactory interface {
	ID() string
	Create(ctx context.Context, config map[string]any) (Action, error)
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error)

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	return f(ctx, execCtx, logger)
}

// Package persistence provides the storage abstraction for workflow definitions and executions.
package persistence

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/deskflow/pkg/models"
)

// Persistence aggregates the repositories the engine needs.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions.
type DefinitionRepository interface {
	// FindActiveByTriggerType returns the active definitions of an organization for a trigger
	// type, ordered by ascending priority.
	FindActiveByTriggerType(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error)
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	// Replace creates or replaces the configuration of a definition in one locked step, keeping
	// the stored creation time and counters. It reports whether the definition was created and
	// refuses to replace a stored system definition with ErrSystemWorkflow.
	Replace(ctx context.Context, definition *models.WorkflowDefinition) (bool, error)
	// Delete refuses system definitions with ErrSystemWorkflow.
	Delete(ctx context.Context, id string) error
	// RecordRun folds a finished run into the definition counters atomically.
	RecordRun(ctx context.Context, id string, run models.RunRecord) error
}

// ExecutionRepository stores workflow executions.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) (string, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Update(ctx context.Context, execution *models.WorkflowExecution) error
	Count(ctx context.Context, filter ExecutionFilter) (int, error)
	// FindOne returns the newest matching execution (by completion, then creation time) or nil.
	FindOne(ctx context.Context, filter ExecutionFilter) (*models.WorkflowExecution, error)
	List(ctx context.Context, filter ExecutionFilter) ([]*models.WorkflowExecution, error)
}

// ExecutionFilter selects executions. Zero fields do not filter, except that ExactTarget
// makes TargetType and TargetID match as given, so an empty target matches only targetless
// executions.
type ExecutionFilter struct {
	WorkflowID     string
	OrganizationID string
	TargetType     models.TargetKind
	TargetID       string
	ExactTarget    bool
	Status         models.ExecutionStatus
	CompletedAfter *time.Time
	Limit          int
}

// Matches reports whether execution satisfies the filter.
func (f ExecutionFilter) Matches(execution *models.WorkflowExecution) bool {
	switch {
	case f.WorkflowID != "" && execution.WorkflowID != f.WorkflowID:
		return false
	case f.OrganizationID != "" && execution.OrganizationID != f.OrganizationID:
		return false
	case (f.ExactTarget || f.TargetType != "") && execution.TargetType != f.TargetType:
		return false
	case (f.ExactTarget || f.TargetID != "") && execution.TargetID != f.TargetID:
		return false
	case f.Status != "" && execution.Status != f.Status:
		return false
	case f.CompletedAfter != nil && (execution.CompletedAt == nil || !execution.CompletedAt.After(*f.CompletedAfter)):
		return false
	default:
		return true
	}
}

// Select returns the executions matching filter, newest first (by completion, then creation
// time), truncated to filter.Limit when it is set.
func Select(executions []*models.WorkflowExecution, filter ExecutionFilter) []*models.WorkflowExecution {
	selected := make([]*models.WorkflowExecution, 0, len(executions))

	for _, execution := range executions {
		if filter.Matches(execution) {
			selected = append(selected, execution)
		}
	}

	slices.SortStableFunc(selected, func(a, b *models.WorkflowExecution) int {
		if c := compareTimes(b.CompletedAt, a.CompletedAt); c != 0 {
			return c
		}

		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Limit > 0 && len(selected) > filter.Limit {
		selected = selected[:filter.Limit]
	}

	return selected
}

// compareTimes orders nil before any time.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

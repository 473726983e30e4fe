package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/google/uuid"
)

// ExecutionRepository stores workflow executions under <root>/executions.
type ExecutionRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{dir: filepath.Join(root, "executions")}
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.dir, id+".json")
}

// Create stores a new execution, assigning an id when it has none.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.WorkflowExecution) (string, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	err := validateID(execution.ID)
	if err != nil {
		return "", persistence.NewExecutionError("Create", execution.ID, err)
	}

	var existing models.WorkflowExecution

	found, err := readJSON(er.path(execution.ID), &existing)
	if err != nil {
		return "", persistence.NewExecutionError("Create", execution.ID, err)
	}

	if found {
		return "", persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	err = writeJSON(er.path(execution.ID), execution)
	if err != nil {
		return "", persistence.NewExecutionError("Create", execution.ID, err)
	}

	return execution.ID, nil
}

// GetByID retrieves an execution by its ID.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.get(id)
}

func (er *ExecutionRepository) get(id string) (*models.WorkflowExecution, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.WorkflowExecution

	found, err := readJSON(er.path(id), &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

// Update replaces a stored execution.
func (er *ExecutionRepository) Update(_ context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	_, err := er.get(execution.ID)
	if err != nil {
		return err
	}

	err = writeJSON(er.path(execution.ID), execution)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	return nil
}

// Count returns the number of executions matching filter. Limit is ignored.
func (er *ExecutionRepository) Count(ctx context.Context, filter persistence.ExecutionFilter) (int, error) {
	filter.Limit = 0

	executions, err := er.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	return len(executions), nil
}

// FindOne returns the newest execution matching filter, or nil.
func (er *ExecutionRepository) FindOne(ctx context.Context, filter persistence.ExecutionFilter) (*models.WorkflowExecution, error) {
	filter.Limit = 1

	executions, err := er.List(ctx, filter)
	if err != nil || len(executions) == 0 {
		return nil, err
	}

	return executions[0], nil
}

// List returns the executions matching filter, newest first.
func (er *ExecutionRepository) List(_ context.Context, filter persistence.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listIDs(er.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.get(id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	return persistence.Select(executions, filter), nil
}

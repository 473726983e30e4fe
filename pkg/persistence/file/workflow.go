package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
)

// DefinitionRepository stores workflow definitions under <root>/workflows.
type DefinitionRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{dir: filepath.Join(root, "workflows")}
}

func (dr *DefinitionRepository) path(id string) string {
	return filepath.Join(dr.dir, id+".json")
}

// GetByID retrieves a definition by its ID.
func (dr *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	return dr.get(id)
}

func (dr *DefinitionRepository) get(id string) (*models.WorkflowDefinition, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var definition models.WorkflowDefinition

	found, err := readJSON(dr.path(id), &definition)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &definition, nil
}

// GetAll returns every stored definition ordered by id.
func (dr *DefinitionRepository) GetAll(_ context.Context) ([]*models.WorkflowDefinition, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	return dr.all()
}

func (dr *DefinitionRepository) all() ([]*models.WorkflowDefinition, error) {
	ids, err := listIDs(dr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	slices.Sort(ids)

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		definition, err := dr.get(id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

// FindActiveByTriggerType returns the active definitions of an organization for a trigger type,
// ordered by ascending priority.
func (dr *DefinitionRepository) FindActiveByTriggerType(
	_ context.Context,
	organizationID string,
	triggerType models.TriggerType,
) ([]*models.WorkflowDefinition, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	all, err := dr.all()
	if err != nil {
		return nil, err
	}

	matches := make([]*models.WorkflowDefinition, 0)

	for _, definition := range all {
		if definition.IsActive && definition.OrganizationID == organizationID && definition.TriggerType == triggerType {
			matches = append(matches, definition)
		}
	}

	slices.SortStableFunc(matches, func(a, b *models.WorkflowDefinition) int {
		return a.Priority - b.Priority
	})

	return matches, nil
}

// Save creates or replaces a definition.
func (dr *DefinitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := validateID(definition.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	err = writeJSON(dr.path(definition.ID), definition)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	return nil
}

// Replace creates or replaces a definition under the write lock, keeping the stored counters.
func (dr *DefinitionRepository) Replace(_ context.Context, definition *models.WorkflowDefinition) (bool, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := validateID(definition.ID)
	if err != nil {
		return false, persistence.NewWorkflowError("Replace", definition.ID, err)
	}

	now := time.Now().UTC()

	existing, err := dr.get(definition.ID)

	switch {
	case err == nil && existing.IsSystem:
		return false, persistence.NewWorkflowError("Replace", definition.ID, persistence.ErrSystemWorkflow)
	case err == nil:
		definition.KeepStats(existing, now)
	case persistence.IsWorkflowNotFound(err):
		definition.KeepStats(nil, now)
	default:
		return false, err
	}

	definition.UpdatedAt = now

	err = writeJSON(dr.path(definition.ID), definition)
	if err != nil {
		return false, persistence.NewWorkflowError("Replace", definition.ID, err)
	}

	return existing == nil, nil
}

// Delete removes a definition. System definitions are refused.
func (dr *DefinitionRepository) Delete(_ context.Context, id string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	definition, err := dr.get(id)
	if err != nil {
		return err
	}

	if definition.IsSystem {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrSystemWorkflow)
	}

	err = os.Remove(dr.path(id))
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// RecordRun folds a finished run into the definition counters under the write lock.
func (dr *DefinitionRepository) RecordRun(_ context.Context, id string, run models.RunRecord) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	definition, err := dr.get(id)
	if err != nil {
		return err
	}

	definition.Apply(run)

	err = writeJSON(dr.path(id), definition)
	if err != nil {
		return persistence.NewWorkflowError("RecordRun", id, err)
	}

	return nil
}

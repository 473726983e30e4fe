package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
)

// DefinitionRepository handles workflow definition database operations.
// The definition is stored whole in a JSONB document; the columns next to it serve dispatch queries.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

func scanDefinition(row scanner) (*models.WorkflowDefinition, error) {
	var document []byte

	err := row.Scan(&document)
	if err != nil {
		return nil, err
	}

	var definition models.WorkflowDefinition

	err = json.Unmarshal(document, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	return &definition, nil
}

func (r *DefinitionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

// GetAll returns every definition ordered by id.
func (r *DefinitionRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return r.query(ctx, `SELECT document FROM workflow_definitions ORDER BY id`)
}

// FindActiveByTriggerType returns the active definitions of an organization for a trigger type,
// ordered by ascending priority.
func (r *DefinitionRepository) FindActiveByTriggerType(
	ctx context.Context,
	organizationID string,
	triggerType models.TriggerType,
) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT document
		FROM workflow_definitions
		WHERE organization_id = $1
		  AND trigger_type = $2
		  AND is_active
		ORDER BY priority, id
	`

	return r.query(ctx, query, organizationID, string(triggerType))
}

// GetByID retrieves a definition by its ID.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflow_definitions WHERE id = $1`, id)

	definition, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return definition, nil
}

// Save creates or replaces a definition.
func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	err := r.upsert(ctx, r.db, definition)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	return nil
}

// Replace creates or replaces a definition, reading the stored counters under a row lock.
func (r *DefinitionRepository) Replace(ctx context.Context, definition *models.WorkflowDefinition) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, persistence.NewWorkflowError("Replace", definition.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()

	row := tx.QueryRowContext(ctx, `SELECT document FROM workflow_definitions WHERE id = $1 FOR UPDATE`, definition.ID)

	existing, err := scanDefinition(row)

	switch {
	case err == nil && existing.IsSystem:
		return false, persistence.NewWorkflowError("Replace", definition.ID, persistence.ErrSystemWorkflow)
	case err == nil:
		definition.KeepStats(existing, now)
	case errors.Is(err, sql.ErrNoRows):
		existing = nil
		definition.KeepStats(nil, now)
	default:
		return false, persistence.NewWorkflowError("Replace", definition.ID, err)
	}

	definition.UpdatedAt = now

	err = r.upsert(ctx, tx, definition)
	if err != nil {
		return false, persistence.NewWorkflowError("Replace", definition.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return false, persistence.NewWorkflowError("Replace", definition.ID, fmt.Errorf("failed to commit: %w", err))
	}

	return existing == nil, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *DefinitionRepository) upsert(ctx context.Context, db execer, definition *models.WorkflowDefinition) error {
	document, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (
			id, organization_id, trigger_type, is_active, is_system, priority, document, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id
		  , trigger_type = EXCLUDED.trigger_type
		  , is_active = EXCLUDED.is_active
		  , is_system = EXCLUDED.is_system
		  , priority = EXCLUDED.priority
		  , document = EXCLUDED.document
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		definition.ID,
		definition.OrganizationID,
		string(definition.TriggerType),
		definition.IsActive,
		definition.IsSystem,
		definition.Priority,
		document,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	return nil
}

// Delete removes a definition. System definitions are refused.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	var isSystem bool

	err := r.db.QueryRowContext(ctx, `SELECT is_system FROM workflow_definitions WHERE id = $1`, id).Scan(&isSystem)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	if isSystem {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrSystemWorkflow)
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = $1 AND NOT is_system`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// RecordRun folds a finished run into the definition counters inside a row-locking transaction.
func (r *DefinitionRepository) RecordRun(ctx context.Context, id string, run models.RunRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("RecordRun", id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT document FROM workflow_definitions WHERE id = $1 FOR UPDATE`, id)

	definition, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewWorkflowError("RecordRun", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("RecordRun", id, err)
	}

	definition.Apply(run)

	err = r.upsert(ctx, tx, definition)
	if err != nil {
		return persistence.NewWorkflowError("RecordRun", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewWorkflowError("RecordRun", id, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

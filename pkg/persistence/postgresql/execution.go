package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var document []byte

	err := row.Scan(&document)
	if err != nil {
		return nil, err
	}

	var execution models.WorkflowExecution

	err = json.Unmarshal(document, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	return &execution, nil
}

// Create stores a new execution, assigning an id when it has none.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) (string, error) {
	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	document, err := json.Marshal(execution)
	if err != nil {
		return "", persistence.NewExecutionError("Create", execution.ID, err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, organization_id, status, target_type, target_id, completed_at, created_at, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.OrganizationID,
		string(execution.Status),
		string(execution.TargetType),
		execution.TargetID,
		execution.CompletedAt,
		execution.CreatedAt,
		document,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
		}

		return "", persistence.NewExecutionError("Create", execution.ID, err)
	}

	return execution.ID, nil
}

// GetByID retrieves an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM workflow_executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// Update replaces a stored execution.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	document, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	query := `
		UPDATE workflow_executions
		SET status = $2
		  , target_type = $3
		  , target_id = $4
		  , completed_at = $5
		  , document = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		string(execution.Status),
		string(execution.TargetType),
		execution.TargetID,
		execution.CompletedAt,
		document,
	)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// where renders filter as a SQL predicate with positional arguments.
func where(filter persistence.ExecutionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, column+" $"+strconv.Itoa(len(args)))
	}

	if filter.WorkflowID != "" {
		add("workflow_id =", filter.WorkflowID)
	}

	if filter.OrganizationID != "" {
		add("organization_id =", filter.OrganizationID)
	}

	if filter.ExactTarget || filter.TargetType != "" {
		add("target_type =", string(filter.TargetType))
	}

	if filter.ExactTarget || filter.TargetID != "" {
		add("target_id =", filter.TargetID)
	}

	if filter.Status != "" {
		add("status =", string(filter.Status))
	}

	if filter.CompletedAfter != nil {
		add("completed_at >", *filter.CompletedAfter)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Count returns the number of executions matching filter. Limit is ignored.
func (r *ExecutionRepository) Count(ctx context.Context, filter persistence.ExecutionFilter) (int, error) {
	predicate, args := where(filter)

	var count int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_executions"+predicate, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

// FindOne returns the newest execution matching filter, or nil.
func (r *ExecutionRepository) FindOne(ctx context.Context, filter persistence.ExecutionFilter) (*models.WorkflowExecution, error) {
	filter.Limit = 1

	executions, err := r.List(ctx, filter)
	if err != nil || len(executions) == 0 {
		return nil, err
	}

	return executions[0], nil
}

// List returns the executions matching filter, newest first.
func (r *ExecutionRepository) List(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	predicate, args := where(filter)

	query := "SELECT document FROM workflow_executions" + predicate +
		" ORDER BY completed_at DESC NULLS LAST, created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

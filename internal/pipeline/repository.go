package pipeline

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository handles database operations for sync run tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new run ledger repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateExecution creates a new execution record
func (r *Repository) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO sync_executions (
			step_name, bucket, object_key, status, archive_key,
			error_key, total_rows, error_count, error_codes,
			sfdc_execution_id, started_at, error_message
		) VALUES (
			:step_name, :bucket, :object_key, :status, :archive_key,
			:error_key, :total_rows, :error_count, :error_codes,
			:sfdc_execution_id, :started_at, :error_message
		)
		RETURNING id
	`

	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	return stmt.QueryRowxContext(ctx, exec).Scan(&exec.ID)
}

// UpdateExecution updates an existing execution
func (r *Repository) UpdateExecution(ctx context.Context, exec *Execution) error {
	query := `
		UPDATE sync_executions
		SET status = :status, archive_key = :archive_key, error_key = :error_key,
		    total_rows = :total_rows, error_count = :error_count, error_codes = :error_codes,
		    sfdc_execution_id = :sfdc_execution_id, completed_at = :completed_at,
		    error_message = :error_message
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, exec)
	return err
}

// GetExecution retrieves an execution by ID
func (r *Repository) GetExecution(ctx context.Context, id int64) (*Execution, error) {
	query := `
		SELECT id, step_name, bucket, object_key, status, archive_key, error_key,
		       total_rows, error_count, error_codes, sfdc_execution_id,
		       started_at, completed_at, error_message
		FROM sync_executions
		WHERE id = $1
	`

	exec := &Execution{}
	if err := r.db.GetContext(ctx, exec, query, id); err != nil {
		return nil, err
	}
	return exec, nil
}

// ListRecentExecutions returns the newest executions first
func (r *Repository) ListRecentExecutions(ctx context.Context, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, step_name, bucket, object_key, status, archive_key, error_key,
		       total_rows, error_count, error_codes, sfdc_execution_id,
		       started_at, completed_at, error_message
		FROM sync_executions
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	var execs []*Execution
	if err := r.db.SelectContext(ctx, &execs, query, limit); err != nil {
		return nil, err
	}
	return execs, nil
}

// CountFailedSince counts failed executions started at or after since
func (r *Repository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sync_executions
		WHERE status = $1 AND started_at >= $2
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, StatusFailed, since)
	return count, err
}

var _ ExecutionRepository = (*Repository)(nil)

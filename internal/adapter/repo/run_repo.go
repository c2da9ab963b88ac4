package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/infra"
	"expressionpanel/internal/sqlinline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RunRepositoryPG implements domain.RunRepository.
type RunRepositoryPG struct {
	db infra.SQLExecutor
}

// NewRunRepository creates a run repository on top of a marker-checked executor.
func NewRunRepository(db infra.SQLExecutor) *RunRepositoryPG {
	return &RunRepositoryPG{db: db}
}

// EnsureSchema creates the history table when it does not exist yet.
func (r *RunRepositoryPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QRunsCreateTable, sqlinline.QRunsCreateIndex} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("repo: ensure runs schema: %w", err)
		}
	}
	return nil
}

// Create inserts a submitted run, assigning ID and CreatedAt when empty.
func (r *RunRepositoryPG) Create(ctx context.Context, run *domain.Run) error {
	if run == nil {
		return errors.New("repo: nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusSubmitted
	}
	_, err := r.db.Exec(ctx, sqlinline.QRunInsert,
		run.ID,
		run.PredictionID,
		string(run.Status),
		nullableJSON(run.Input),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert run: %w", err)
	}
	return nil
}

// Complete records the terminal state of a run.
func (r *RunRepositoryPG) Complete(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("repo: run id is required")
	}
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	tag, err := r.db.Exec(ctx, sqlinline.QRunComplete,
		run.ID,
		string(run.Status),
		run.PredictionID,
		nullableJSON(run.Output),
		run.ErrorCode,
		run.ErrorMessage,
		run.Polls,
		*run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get fetches a run by id.
func (r *RunRepositoryPG) Get(ctx context.Context, id string) (*domain.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	run, err := scanRun(r.db.QueryRow(ctx, sqlinline.QRunByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first.
func (r *RunRepositoryPG) List(ctx context.Context, limit, offset int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, sqlinline.QRunsList, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repo: list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run         domain.Run
		status      string
		input       []byte
		output      []byte
		completedAt *time.Time
	)
	if err := row.Scan(
		&run.ID,
		&run.PredictionID,
		&status,
		&input,
		&output,
		&run.ErrorCode,
		&run.ErrorMessage,
		&run.Polls,
		&run.CreatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.Input = json.RawMessage(input)
	run.Output = json.RawMessage(output)
	run.CompletedAt = completedAt
	return &run, nil
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

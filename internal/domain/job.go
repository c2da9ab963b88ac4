package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RunStatus enumerates the lifecycle states recorded for a prediction run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one submit/poll cycle as seen by the panel. Runs are only kept when
// history is enabled; the prediction client itself holds no state.
type Run struct {
	ID           string
	PredictionID string
	Status       RunStatus
	Input        json.RawMessage
	Output       json.RawMessage
	ErrorCode    string
	ErrorMessage string
	Polls        int
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// RunRepository persists prediction history.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Complete(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]Run, error)
}

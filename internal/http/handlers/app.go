package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/infra"
	"expressionpanel/internal/output"
	"expressionpanel/internal/predictor"
)

// Predictor runs one prediction end to end.
type Predictor interface {
	Predict(ctx context.Context, params predictor.ParamSet, origin string) (json.RawMessage, *predictor.Job, error)
}

// FileStore keeps uploads and downloaded outputs.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
	SaveUpload(ctx context.Context, filename string, r io.Reader, limit int64) (string, error)
	Resolve(ref string) (string, error)
}

type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Predictor Predictor
	Store     FileStore
	// Runs is nil when no database is configured.
	Runs      domain.RunRepository
	Output    output.Config
	Downloads *http.Client
}

func NewApp(cfg *infra.Config, logger *infra.Logger, p Predictor, store FileStore, runs domain.RunRepository) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	overflow, err := output.ParseOverflow(cfg.OutputOverflow)
	if err != nil {
		overflow = output.OverflowDrop
	}
	return &App{
		Config:    cfg,
		Logger:    logger,
		Predictor: p,
		Store:     store,
		Runs:      runs,
		Output:    domain.OutputConfig(overflow),
		Downloads: &http.Client{Timeout: cfg.PollTimeout},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]errorBody{"error": {Code: errCode, Message: msg}})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type inputsResponse struct {
	Inputs   []domain.Input  `json:"inputs"`
	Outputs  []output.Slot   `json:"outputs"`
	Overflow output.Overflow `json:"overflow"`
	History  bool            `json:"history"`
}

// Inputs describes the accepted parameters and the display slots.
func (a *App) Inputs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, inputsResponse{
		Inputs:   domain.Inputs(),
		Outputs:  a.Output.Slots,
		Overflow: a.Output.Overflow,
		History:  a.Runs != nil,
	})
}

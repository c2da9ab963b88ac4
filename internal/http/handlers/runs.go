package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/middleware"
)

type runView struct {
	ID           string          `json:"id"`
	PredictionID string          `json:"prediction_id,omitempty"`
	Status       string          `json:"status"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Polls        int             `json:"polls"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func newRunView(run domain.Run) runView {
	return runView{
		ID:           run.ID,
		PredictionID: run.PredictionID,
		Status:       string(run.Status),
		Input:        rawOrNil(run.Input),
		Output:       rawOrNil(run.Output),
		ErrorCode:    run.ErrorCode,
		ErrorMessage: run.ErrorMessage,
		Polls:        run.Polls,
		CreatedAt:    run.CreatedAt,
		CompletedAt:  run.CompletedAt,
	}
}

func rawOrNil(b json.RawMessage) json.RawMessage {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}

func (a *App) ListRuns(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		a.historyDisabled(w, r)
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	runs, err := a.Runs.List(r.Context(), limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("history: list runs failed")
		a.error(w, http.StatusInternalServerError, "internal", message(middleware.LocaleFromContext(r.Context()), "internal"))
		return
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	a.json(w, http.StatusOK, map[string]any{"runs": views, "limit": limit, "offset": offset})
}

func (a *App) GetRun(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		a.historyDisabled(w, r)
		return
	}
	run, err := a.Runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", message(middleware.LocaleFromContext(r.Context()), "not_found"))
			return
		}
		a.Logger.Error().Err(err).Msg("history: get run failed")
		a.error(w, http.StatusInternalServerError, "internal", message(middleware.LocaleFromContext(r.Context()), "internal"))
		return
	}
	a.json(w, http.StatusOK, newRunView(*run))
}

func (a *App) historyDisabled(w http.ResponseWriter, r *http.Request) {
	a.error(w, http.StatusNotFound, "history_disabled", message(middleware.LocaleFromContext(r.Context()), "history_disabled"))
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/middleware"
	"expressionpanel/internal/output"
	"expressionpanel/internal/predictor"
)

const multipartMemory = 8 << 20

var errUploadTooLarge = errors.New("upload too large")

type predictRequest struct {
	Input map[string]any `json:"input"`
}

type predictResponse struct {
	ID     string        `json:"id,omitempty"`
	RunID  string        `json:"run_id,omitempty"`
	Status string        `json:"status"`
	Polls  int           `json:"polls"`
	Output output.Result `json:"output"`
}

// Predict accepts a multipart form or a JSON {"input": {...}} body, runs the
// model and returns the normalized output.
func (a *App) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = a.Logger
	}

	params, err := a.readParams(r)
	if err != nil {
		a.writePredictError(w, r, err)
		return
	}
	origin := a.origin(r)

	run := a.startRun(ctx, logger, params, origin)

	raw, job, err := a.Predictor.Predict(ctx, params, origin)
	var result output.Result
	if err == nil {
		result, err = output.Normalize(ctx, raw, a.Output, a.renderer(origin))
	}
	a.recordRun(run, job, raw, err)

	if err != nil {
		ev := logger.Warn().Err(err)
		if job != nil {
			ev = ev.Str("prediction_id", job.ID).Int("polls", job.Polls)
		}
		ev.Msg("prediction failed")
		a.writePredictError(w, r, err)
		return
	}

	resp := predictResponse{Status: string(predictor.StatusSucceeded), Output: result}
	if job != nil {
		resp.ID = job.ID
		resp.Polls = job.Polls
	}
	if run != nil {
		resp.RunID = run.ID
	}
	logger.Info().Str("prediction_id", resp.ID).Int("polls", resp.Polls).Int("visible", len(result.Visible())).Msg("prediction succeeded")
	a.json(w, http.StatusOK, resp)
}

func (a *App) readParams(r *http.Request) (predictor.ParamSet, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		params predictor.ParamSet
		err    error
	)
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		params, err = a.readForm(r, mediaType)
	default:
		params, err = readJSON(r, a.Config.MaxUploadBytes)
	}
	if err != nil {
		return nil, err
	}
	if v, _ := params.Get("image"); v == nil {
		return nil, domain.ErrImageRequired
	}
	return params, nil
}

// readForm takes the image from a file part or a plain field. Uploaded
// files are written to the store and passed on as their absolute path.
func (a *App) readForm(r *http.Request, mediaType string) (predictor.ParamSet, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, a.Config.MaxUploadBytes)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, formError(err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, formError(err)
	}

	values := make(map[string]any)
	for name, vals := range r.PostForm {
		if len(vals) == 0 {
			continue
		}
		v, err := domain.ParseValue(name, vals[0])
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return nil, fmt.Errorf("open upload: %w", err)
			}
			saved, err := a.Store.SaveUpload(r.Context(), files[0].Filename, f, a.Config.MaxUploadBytes)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("save upload: %w", err)
			}
			values["image"] = saved
		}
	}
	return orderedParams(values), nil
}

func readJSON(r *http.Request, limit int64) (predictor.ParamSet, error) {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit))
	dec.UseNumber()
	var req predictRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("%w: body must be {\"input\": {...}}", domain.ErrInvalidParameter)
	}
	values := make(map[string]any, len(req.Input))
	for name, raw := range req.Input {
		v, err := domain.CoerceValue(name, raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return orderedParams(values), nil
}

// orderedParams lays values out in schema order so the backend always sees
// the same parameter order.
func orderedParams(values map[string]any) predictor.ParamSet {
	params := make(predictor.ParamSet, 0, len(values))
	for _, name := range domain.InputNames() {
		if v, ok := values[name]; ok {
			params = append(params, predictor.Param{Name: name, Value: v})
		}
	}
	return params
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errUploadTooLarge
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidParameter, err)
}

// origin is the base URL the backend uses to fetch files from the panel.
func (a *App) origin(r *http.Request) string {
	if a.Config.PublicOrigin != "" {
		return a.Config.PublicOrigin
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host
}

func (a *App) renderer(origin string) output.Renderer {
	if !a.Config.PersistOutputs || a.Store == nil {
		return output.ReferenceRenderer{}
	}
	return output.StoringRenderer{Client: a.Downloads, Store: a.Store, Origin: origin}
}

// recordRun stores the outcome on a detached context so a client hanging up
// does not lose the history entry.
// startRun records a submitted run. It returns nil when history is disabled
// or the record could not be written.
func (a *App) startRun(ctx context.Context, logger *zerolog.Logger, params predictor.ParamSet, origin string) *domain.Run {
	if a.Runs == nil {
		return nil
	}
	input, err := json.Marshal(predictor.BuildPayload(params, origin, nil).Input)
	if err != nil {
		logger.Warn().Err(err).Msg("history: encode run input failed")
		return nil
	}
	run := &domain.Run{Input: input}
	if err := a.Runs.Create(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("history: create run failed")
		return nil
	}
	return run
}

func (a *App) recordRun(run *domain.Run, job *predictor.Job, raw json.RawMessage, err error) {
	if run == nil {
		return
	}
	if job != nil {
		run.PredictionID = job.ID
		run.Polls = job.Polls
	}
	if err != nil {
		_, code := classifyError(err)
		run.Status = domain.RunStatusFailed
		run.ErrorCode = code
		run.ErrorMessage = err.Error()
	} else {
		run.Status = domain.RunStatusSucceeded
		run.Output = raw
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := a.Runs.Complete(ctx, run); cerr != nil {
		a.Logger.Warn().Err(cerr).Str("run_id", run.ID).Msg("history: complete run failed")
	}
}

// classifyError maps an error from any stage of a prediction to an HTTP
// status and a stable error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "upload_too_large"
	case errors.Is(err, domain.ErrImageRequired):
		return http.StatusBadRequest, "image_required"
	case errors.Is(err, domain.ErrInvalidParameter), errors.Is(err, domain.ErrUnknownParameter):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, predictor.ErrServiceBusy):
		return http.StatusServiceUnavailable, "service_busy"
	case errors.Is(err, predictor.ErrJobFailed):
		return http.StatusBadGateway, "job_failed"
	case errors.Is(err, predictor.ErrMalformedResponse),
		errors.Is(err, output.ErrInvalidOutput),
		errors.Is(err, output.ErrUnrenderable):
		return http.StatusBadGateway, "malformed_response"
	case errors.Is(err, predictor.ErrSubmissionFailed):
		return http.StatusBadGateway, "submission_failed"
	case errors.Is(err, predictor.ErrPollFailed):
		return http.StatusBadGateway, "poll_failed"
	case errors.Is(err, predictor.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *App) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	status, code := classifyError(err)
	msg := message(middleware.LocaleFromContext(r.Context()), code)

	var (
		statusErr *predictor.StatusError
		jobErr    *predictor.JobError
	)
	switch {
	case status == http.StatusBadRequest && code == "invalid_input":
		msg = msg + " " + strings.TrimPrefix(err.Error(), domain.ErrInvalidParameter.Error()+": ")
	case errors.As(err, &jobErr) && jobErr.Detail != "":
		msg = msg + " " + jobErr.Detail
	case errors.As(err, &statusErr) && code == "submission_failed":
		msg = fmt.Sprintf("%s Error: %d", msg, statusErr.StatusCode)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	a.error(w, status, code, msg)
}

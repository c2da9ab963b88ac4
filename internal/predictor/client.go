package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expressionpanel/internal/infra"
)

const (
	opSubmit = "submit"
	opPoll   = "poll"

	defaultBaseURL      = "http://0.0.0.0:5000"
	defaultPollInterval = time.Second
	defaultPollTimeout  = 10 * time.Minute
	maxResponseBytes    = 32 << 20
)

// Options configures the prediction client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// PollInterval is the wait between status checks.
	PollInterval time.Duration
	// PollBackoff multiplies the wait after each pending poll. Values below
	// 1 mean a fixed interval.
	PollBackoff float64
	// MaxPollInterval caps the grown interval.
	MaxPollInterval time.Duration
	// PollTimeout bounds the whole poll loop. Negative disables the bound.
	PollTimeout time.Duration
	// FileExists decides whether a string parameter names a local file.
	FileExists func(string) bool
}

// Client talks to a Cog-style prediction server: POST /predictions, then
// GET the polling URL until the job succeeds or fails.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	logger          *infra.Logger
	pollInterval    time.Duration
	pollBackoff     float64
	maxPollInterval time.Duration
	pollTimeout     time.Duration
	fileExists      func(string) bool
	sleep           func(context.Context, time.Duration) error
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("predictor: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	backoff := opts.PollBackoff
	if backoff < 1 {
		backoff = 1
	}
	maxInterval := opts.MaxPollInterval
	if maxInterval < interval {
		maxInterval = interval
	}
	timeout := opts.PollTimeout
	if timeout == 0 {
		timeout = defaultPollTimeout
	}
	exists := opts.FileExists
	if exists == nil {
		exists = fileExists
	}
	return &Client{
		baseURL:         base,
		httpClient:      httpClient,
		logger:          logger,
		pollInterval:    interval,
		pollBackoff:     backoff,
		maxPollInterval: maxInterval,
		pollTimeout:     timeout,
		fileExists:      exists,
		sleep:           sleepContext,
	}, nil
}

// BaseURL returns the prediction server endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit sends params to the backend. The returned job is either already
// succeeded (the backend answered inline) or carries a polling URL.
func (c *Client) Submit(ctx context.Context, params ParamSet, origin string) (*Job, error) {
	payload := BuildPayload(params, origin, c.fileExists)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("predictor: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("predictor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("predictor: submit: %w", err)
	}
	c.logger.Debug().Int("http_status", status).Int("params", payload.Input.Len()).Msg("predictor: submitted")

	switch status {
	case http.StatusCreated:
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		var urls predictionURLs
		if rawURLs, ok := fields["urls"]; ok {
			_ = json.Unmarshal(rawURLs, &urls)
		}
		if strings.TrimSpace(urls.Get) == "" {
			return nil, malformed("submit response missing urls.get")
		}
		pollURL, err := c.resolve(urls.Get)
		if err != nil {
			return nil, malformed("invalid urls.get %q", urls.Get)
		}
		id, _ := stringField(fields, "id")
		st, _ := stringField(fields, "status")
		if st == "" {
			st = string(StatusStarting)
		}
		return &Job{ID: id, PollURL: pollURL, Status: Status(st)}, nil
	case http.StatusOK:
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		id, _ := stringField(fields, "id")
		if st, _ := stringField(fields, "status"); Status(st) == StatusFailed {
			detail, _ := stringField(fields, "error")
			return nil, &JobError{ID: id, Detail: detail}
		}
		output, ok := fields["output"]
		if !ok {
			return nil, malformed("response missing output")
		}
		return &Job{ID: id, Status: StatusSucceeded, Output: output}, nil
	case http.StatusConflict:
		return nil, ErrServiceBusy
	default:
		return nil, &StatusError{Op: opSubmit, StatusCode: status, Body: snippet(raw)}
	}
}

// AwaitCompletion polls job until it reaches a terminal status and returns
// the raw output. Jobs that are already succeeded return without I/O.
func (c *Client) AwaitCompletion(ctx context.Context, job *Job) (json.RawMessage, error) {
	if job == nil {
		return nil, errors.New("predictor: nil job")
	}
	if job.Status == StatusSucceeded && job.PollURL == "" {
		return job.Output, nil
	}
	if job.PollURL == "" {
		return nil, malformed("job has no polling url")
	}

	var deadline time.Time
	if c.pollTimeout > 0 {
		deadline = time.Now().Add(c.pollTimeout)
	}
	interval := c.pollInterval
	for {
		if err := c.poll(ctx, job); err != nil {
			return nil, err
		}
		if job.Done() {
			if job.Status == StatusFailed {
				c.logger.Debug().Str("prediction_id", job.ID).Int("polls", job.Polls).Str("error", job.Error).Msg("predictor: failed")
				return nil, &JobError{ID: job.ID, Detail: job.Error}
			}
			c.logger.Debug().Str("prediction_id", job.ID).Int("polls", job.Polls).Msg("predictor: succeeded")
			return job.Output, nil
		}
		if !deadline.IsZero() && time.Now().Add(interval).After(deadline) {
			return nil, fmt.Errorf("%w after %d polls (last status %q)", ErrTimeout, job.Polls, job.Status)
		}
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
		interval = c.nextInterval(interval)
	}
}

// Predict submits params and waits for the result.
func (c *Client) Predict(ctx context.Context, params ParamSet, origin string) (json.RawMessage, *Job, error) {
	job, err := c.Submit(ctx, params, origin)
	if err != nil {
		return nil, nil, err
	}
	out, err := c.AwaitCompletion(ctx, job)
	return out, job, err
}

func (c *Client) poll(ctx context.Context, job *Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.PollURL, nil)
	if err != nil {
		return fmt.Errorf("predictor: build poll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return fmt.Errorf("predictor: poll: %w", err)
	}
	job.Polls++
	if status < 200 || status >= 300 {
		return &StatusError{Op: opPoll, StatusCode: status, Body: snippet(raw)}
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return err
	}
	st, ok := stringField(fields, "status")
	if !ok {
		return malformed("poll response missing status")
	}
	job.Status = Status(st)
	if id, ok := stringField(fields, "id"); ok && id != "" {
		job.ID = id
	}
	c.logger.Debug().Str("prediction_id", job.ID).Str("status", st).Int("polls", job.Polls).Msg("predictor: poll")

	switch job.Status {
	case StatusSucceeded:
		output, ok := fields["output"]
		if !ok {
			return malformed("succeeded response missing output")
		}
		job.Output = output
	case StatusFailed:
		job.Error, _ = stringField(fields, "error")
	}
	return nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (c *Client) nextInterval(d time.Duration) time.Duration {
	if c.pollBackoff <= 1 {
		return d
	}
	next := time.Duration(float64(d) * c.pollBackoff)
	if next > c.maxPollInterval {
		next = c.maxPollInterval
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}

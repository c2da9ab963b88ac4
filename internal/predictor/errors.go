package predictor

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmissionFailed wraps any unexpected status on the initial POST.
	ErrSubmissionFailed = errors.New("predictor: submission failed")
	// ErrServiceBusy means the backend answered 409: it is still warming up
	// or its single worker is taken. Retrying shortly is the fix.
	ErrServiceBusy = errors.New("predictor: service still initializing, retry shortly")
	// ErrJobFailed means the backend reported the prediction as failed.
	ErrJobFailed = errors.New("predictor: prediction failed")
	// ErrMalformedResponse means a response lacked urls.get, status or output,
	// or was not JSON at all.
	ErrMalformedResponse = errors.New("predictor: malformed response")
	// ErrTimeout means the poll deadline passed before a terminal status.
	ErrTimeout = errors.New("predictor: timed out waiting for prediction")
	// ErrPollFailed wraps an unexpected status while polling.
	ErrPollFailed = errors.New("predictor: poll failed")
)

// StatusError carries the HTTP status of an unexpected backend response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("predictor: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("predictor: %s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.Op == opPoll {
		return ErrPollFailed
	}
	return ErrSubmissionFailed
}

// JobError is returned when the backend reports status "failed".
type JobError struct {
	ID     string
	Detail string
}

func (e *JobError) Error() string {
	msg := "predictor: prediction failed"
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *JobError) Unwrap() error { return ErrJobFailed }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedResponse}, args...)...)
}

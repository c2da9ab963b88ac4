package predictor

import (
	"encoding/json"
)

// Status is the lifecycle state reported by the prediction backend.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether polling stops at s. Only succeeded and failed
// end a job; any other value, known or not, keeps the poll loop going.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is a submitted prediction. A job from an inline 200 response is
// already succeeded and has no PollURL.
type Job struct {
	ID      string
	PollURL string
	Status  Status
	Output  json.RawMessage
	Error   string
	Polls   int
}

// Done reports whether the job has reached a terminal status.
func (j *Job) Done() bool {
	return j != nil && j.Status.Terminal()
}

type predictionURLs struct {
	Get    string `json:"get"`
	Cancel string `json:"cancel"`
}

// decodeFields splits a backend response into its top-level fields so
// presence of a key can be told apart from a null value.
func decodeFields(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed("decode body: %v", err)
	}
	if fields == nil {
		return nil, malformed("body is null")
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

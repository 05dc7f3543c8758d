package replicate

import (
	"encoding/json"
	"strings"
	"time"

	"perfumevisual/internal/domain"
)

// Status is the provider-defined lifecycle state of a prediction.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Prediction is one remote job as reported by the API.
type Prediction struct {
	ID     string            `json:"id"`
	Model  string            `json:"model"`
	Status Status            `json:"status"`
	Output json.RawMessage   `json:"output"`
	Error  json.RawMessage   `json:"error"`
	Logs   string            `json:"logs"`
	URLs   map[string]string `json:"urls"`

	stage     domain.Stage
	createdAt time.Time
}

// Stage returns the pipeline stage that created the prediction.
func (p *Prediction) Stage() domain.Stage {
	return p.stage
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	Pending OutcomeKind = iota
	Succeeded
	Failed
)

// Outcome is the decoded state of a prediction: Succeeded carries Output,
// Failed carries Reason, Pending carries nothing.
type Outcome struct {
	Kind   OutcomeKind
	Output Output
	Reason string
}

// Outcome decodes the raw status once so callers never compare status strings.
func (p *Prediction) Outcome() Outcome {
	switch p.Status {
	case StatusSucceeded:
		return Outcome{Kind: Succeeded, Output: Output{raw: p.Output}}
	case StatusFailed, StatusCanceled:
		reason := decodeError(p.Error)
		if reason == "" {
			reason = string(p.Status)
		}
		return Outcome{Kind: Failed, Reason: reason}
	default:
		return Outcome{Kind: Pending}
	}
}

func decodeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// Output is the result payload of a succeeded prediction: either a single
// string (usually a file URL) or a list of strings (streamed text chunks or
// several files).
type Output struct {
	raw json.RawMessage
}

// NewOutput wraps a raw JSON output value.
func NewOutput(raw json.RawMessage) Output {
	return Output{raw: raw}
}

// Strings returns the output as a list of strings.
func (o Output) Strings() []string {
	if len(o.raw) == 0 || string(o.raw) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(o.raw, &single); err == nil {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(o.raw, &many); err == nil {
		return many
	}
	return nil
}

// URL returns the first non-empty string of the output.
func (o Output) URL() string {
	for _, s := range o.Strings() {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Text concatenates all output chunks.
func (o Output) Text() string {
	return strings.Join(o.Strings(), "")
}

package analysis

import (
	"encoding/json"
	"strings"
	"time"
)

// Known backend model identifiers. Any other string is forwarded as-is.
const (
	ModelGemini   = "gemini"
	ModelDeepseek = "deepseek"
	ModelGemma    = "gemma"
)

// KnownModels lists the models the analysis backend is known to serve.
var KnownModels = []string{ModelGemini, ModelDeepseek, ModelGemma}

// IsKnownModel reports whether model is one of KnownModels.
func IsKnownModel(model string) bool {
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}

// Visualization types the backend attaches to a dataset.
const (
	VisualizationBar  = "bar_chart"
	VisualizationLine = "line_chart"
)

// Query is one user submission. It is never modified after Start.
type Query struct {
	Prompt string
	Model  string
}

// Validate rejects queries whose prompt is blank.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	return nil
}

// ProgressEvent is the last accepted progress update of a session.
type ProgressEvent struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// ResultItem is one (explanation, dataset, chart type) tuple.
type ResultItem struct {
	Explanation       string   `json:"explanation"`
	Columns           []string `json:"columns,omitempty"`
	Dataset           []Row    `json:"data,omitempty"`
	VisualizationType string   `json:"visualization_type,omitempty"`
}

// HasDataset reports whether the item carries rows to tabulate.
func (r ResultItem) HasDataset() bool {
	return len(r.Dataset) > 0
}

// Status is the lifecycle position of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// State is a snapshot of a session. Slices are copies owned by the caller.
type State struct {
	ID       string
	Query    Query
	Status   Status
	Progress ProgressEvent
	Results  []ResultItem
	Notebook json.RawMessage
	Err      error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed is the session's running time, up to its terminal transition.
func (s State) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// frame is one decoded NDJSON line.
type frame struct {
	Progress *float64   `json:"progress"`
	Message  string     `json:"message"`
	Data     *frameData `json:"data"`
}

type frameData struct {
	Result   []json.RawMessage `json:"result"`
	Notebook json.RawMessage   `json:"notebook"`
}

type frameResult struct {
	Explanation       *string         `json:"explanation"`
	Data              json.RawMessage `json:"data"`
	VisualizationType string          `json:"visualization_type"`
}

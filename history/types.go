package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elisa-itb/elisa/analysis"
)

// Record is one finished analysis session as written to the JSONL log.
type Record struct {
	ID       string                `json:"id"`
	TS       int64                 `json:"ts"`
	Model    string                `json:"model"`
	Prompt   string                `json:"prompt"`
	Status   string                `json:"status"`
	Error    string                `json:"error,omitempty"`
	Elapsed  float64               `json:"elapsed_s"`
	Results  []analysis.ResultItem `json:"results,omitempty"`
	Notebook json.RawMessage       `json:"notebook,omitempty"`
}

// RecordFromState captures a terminal session snapshot.
func RecordFromState(st analysis.State) Record {
	rec := Record{
		ID:       st.ID,
		TS:       st.StartedAt.Unix(),
		Model:    st.Query.Model,
		Prompt:   st.Query.Prompt,
		Status:   st.Status.String(),
		Elapsed:  st.Elapsed().Seconds(),
		Results:  st.Results,
		Notebook: st.Notebook,
	}
	if st.Err != nil {
		rec.Error = st.Err.Error()
	}
	return rec
}

// State rebuilds a display snapshot of the stored session. A stored error
// comes back as a plain error carrying the same message.
func (r Record) State() analysis.State {
	st := analysis.State{
		ID:         r.ID,
		Query:      analysis.Query{Prompt: r.Prompt, Model: r.Model},
		Status:     parseStatus(r.Status),
		Results:    r.Results,
		Notebook:   r.Notebook,
		StartedAt:  r.Time(),
		FinishedAt: r.Time().Add(time.Duration(r.Elapsed * float64(time.Second))),
	}
	if st.Status == analysis.StatusCompleted {
		st.Progress = analysis.ProgressEvent{Progress: 1}
	}
	if r.Error != "" {
		st.Err = errors.New(r.Error)
	}
	return st
}

func parseStatus(s string) analysis.Status {
	for _, st := range []analysis.Status{analysis.StatusCompleted, analysis.StatusFailed, analysis.StatusCancelled, analysis.StatusStreaming} {
		if st.String() == s {
			return st
		}
	}
	return analysis.StatusIdle
}

// Time is the moment the session started.
func (r Record) Time() time.Time {
	return time.Unix(r.TS, 0)
}

// SearchResult is a hit from the FTS index.
type SearchResult struct {
	SessionID string
	Timestamp time.Time
	Kind      string // "prompt" or "result"
	Content   string
	Preview   string
}

// SessionSummary is a row of the recent sessions list.
type SessionSummary struct {
	ID        string
	Timestamp time.Time
	Model     string
	Status    string
	Summary   string
	Results   int
}

func decodeStoredResult(explanation, visualization, dataset string) (analysis.ResultItem, error) {
	item := analysis.ResultItem{Explanation: explanation}
	if dataset == "" {
		return item, nil
	}

	var rows []analysis.Row
	if err := json.Unmarshal([]byte(dataset), &rows); err != nil {
		return item, fmt.Errorf("stored dataset: %w", err)
	}
	if len(rows) > 0 {
		item.Dataset = rows
		item.Columns = append([]string(nil), rows[0].Keys...)
		item.VisualizationType = visualization
	}
	return item, nil
}

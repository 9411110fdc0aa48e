// This file defines the work units of a batch submission and the run that owns them.

package models

import (
	"errors"
	"time"
)

// Language is the routing language attached to each work item.
type Language string

const (
	LanguageEnglish   Language = "en"
	LanguageRussian   Language = "ru"
	LanguageUkrainian Language = "uk"
)

// ErrRunComplete is returned by BatchRun.Record when every item already has an outcome.
var ErrRunComplete = errors.New("batch run already has an outcome for every item")

// WorkItem is one URL/topic pair to be submitted for generation.
type WorkItem struct {
	URL            string   `json:"url"`
	Topic          string   `json:"topic"`
	Keyword        string   `json:"keyword"`
	Language       Language `json:"language"`
	Brand          string   `json:"brand,omitempty"`
	BusinessType   string   `json:"business_type,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	QueryText      string   `json:"query_text"`
}

// ItemOutcome records how the submission of one WorkItem ended.
type ItemOutcome struct {
	URL       string         `json:"url"`
	Succeeded bool           `json:"succeeded"`
	Payload   *ResultPayload `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// BatchRun owns the items, outcomes and timing of one batch submission.
type BatchRun struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode,omitempty"`
	Items        []WorkItem    `json:"items"`
	Outcomes     []ItemOutcome `json:"outcomes"`
	DelaySeconds float64       `json:"delay_seconds"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode,omitempty"`
	Totals     Totals     `json:"totals"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Totals is the aggregate view of a run's outcomes.
type Totals struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"` // percentage, 0-100
}

// NewBatchRun creates a run for the given items. The items slice is copied.
func NewBatchRun(id string, items []WorkItem, delay time.Duration) *BatchRun {
	owned := make([]WorkItem, len(items))
	copy(owned, items)
	return &BatchRun{
		ID:           id,
		Items:        owned,
		Outcomes:     make([]ItemOutcome, 0, len(items)),
		DelaySeconds: delay.Seconds(),
	}
}

// Record appends the outcome of the next pending item.
func (r *BatchRun) Record(outcome ItemOutcome) error {
	if len(r.Outcomes) >= len(r.Items) {
		return ErrRunComplete
	}
	r.Outcomes = append(r.Outcomes, outcome)
	return nil
}

// Pending reports how many items have no outcome yet.
func (r *BatchRun) Pending() int {
	return len(r.Items) - len(r.Outcomes)
}

// Totals counts successes and failures over the recorded outcomes.
// Total is the number of items in the run, not the number of outcomes.
func (r *BatchRun) Totals() Totals {
	t := Totals{Total: len(r.Items)}
	for _, o := range r.Outcomes {
		if o.Succeeded {
			t.Succeeded++
		} else {
			t.Failed++
		}
	}
	if t.Total > 0 {
		t.SuccessRate = float64(t.Succeeded) / float64(t.Total) * 100
	}
	return t
}

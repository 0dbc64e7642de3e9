package services

import (
	"sync"
	"time"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// QueryHistory is an append-only, capped record of submitted questions.
// Listing is most-recent-first.
type QueryHistory struct {
	mu      sync.Mutex
	records []models.HistoryRecord
	max     int
}

// NewQueryHistory creates a history capped at max records. Non-positive
// max falls back to 50.
func NewQueryHistory(max int) *QueryHistory {
	if max <= 0 {
		max = 50
	}
	return &QueryHistory{max: max}
}

// Append records a submitted question, dropping the oldest record when
// the cap is reached.
func (h *QueryHistory) Append(query string, queryType models.QueryType, duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, models.HistoryRecord{
		Query:       query,
		Type:        queryType,
		SubmittedAt: time.Now(),
		DurationMs:  duration.Milliseconds(),
	})
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
}

// List returns the records most recent first.
func (h *QueryHistory) List() []models.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.HistoryRecord, len(h.records))
	for i, r := range h.records {
		out[len(h.records)-1-i] = r
	}
	return out
}

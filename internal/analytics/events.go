package analytics

import "time"

type EventType string

const (
	EventSolve  EventType = "solve"
	EventSearch EventType = "search"
)

// SolveEvent records one prefix search or spelling-bee solve. Variant is
// empty for searches; Query holds the search prefix or the letter set.
type SolveEvent struct {
	Type      EventType `json:"type"`
	Variant   string    `json:"variant,omitempty"`
	Query     string    `json:"query"`
	Hinted    bool      `json:"hinted,omitempty"`
	Results   int       `json:"results"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

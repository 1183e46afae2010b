package analytics

import "time"

type Outcome string

const (
	OutcomeResults    Outcome = "results"
	OutcomeZeroResult Outcome = "zero_result"
	OutcomeEmptyQuery Outcome = "empty_query"
	OutcomeError      Outcome = "error"
)

// SearchEvent describes one answered query. It is the message value on the
// search events topic.
type SearchEvent struct {
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Candidates int       `json:"candidates"`
	Returned   int       `json:"returned"`
	TopDocID   string    `json:"top_doc_id,omitempty"`
	TopScore   float64   `json:"top_score,omitempty"`
	LatencyMs  float64   `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Outcome    Outcome   `json:"outcome"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ClassifyOutcome labels a query by what it returned.
func ClassifyOutcome(terms, returned int, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeError
	case terms == 0:
		return OutcomeEmptyQuery
	case returned == 0:
		return OutcomeZeroResult
	default:
		return OutcomeResults
	}
}

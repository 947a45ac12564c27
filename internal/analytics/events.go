package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexBuilt EventType = "index_built"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// IndexEvent announces a freshly written index file. Searchers reload on it.
type IndexEvent struct {
	Type        EventType `json:"type"`
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	Stemmer     string    `json:"stemmer"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	TitleTerms  int       `json:"title_terms"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// DecodeEvent decodes a Kafka message value into a SearchEvent or an
// IndexEvent according to its type field.
func DecodeEvent(value []byte) (any, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch envelope.Type {
	case EventSearch:
		var e SearchEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("decoding search event: %w", err)
		}
		return e, nil
	case EventIndexBuilt:
		var e IndexEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("decoding index event: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
}

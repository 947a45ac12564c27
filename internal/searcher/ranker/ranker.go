// Package ranker holds the table weights used to score matches and the
// deterministic result order.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Scorer weights a match by the table it came from. A document's score is
// the highest weight among its matches.
type Scorer struct {
	Title           float64
	PartialTitle    float64
	Term            float64
	PartialTerm     float64
	ObjNameMatch    float64
	ObjPartialMatch float64
	ObjPrio         map[int]float64
	ObjPrioDefault  float64
}

func DefaultScorer() Scorer {
	return Scorer{
		Title:           15,
		PartialTitle:    7,
		Term:            5,
		PartialTerm:     2,
		ObjNameMatch:    11,
		ObjPartialMatch: 6,
		ObjPrio:         map[int]float64{0: 15, 1: 5, 2: -5},
		ObjPrioDefault:  0,
	}
}

// FromConfig overrides the default table weights with cfg. Zero fields keep
// their defaults.
func FromConfig(cfg config.ScorerConfig) Scorer {
	s := DefaultScorer()
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&s.Title, cfg.Title)
	set(&s.PartialTitle, cfg.PartialTitle)
	set(&s.Term, cfg.Term)
	set(&s.PartialTerm, cfg.PartialTerm)
	set(&s.ObjNameMatch, cfg.ObjNameMatch)
	set(&s.ObjPartialMatch, cfg.ObjPartialMatch)
	return s
}

// Prio returns the bonus for an object priority.
func (s Scorer) Prio(priority int) float64 {
	if w, ok := s.ObjPrio[priority]; ok {
		return w
	}
	return s.ObjPrioDefault
}

// ScoredDoc is one ranked hit. Anchor is empty for page hits and names the
// in-page target for object hits.
type ScoredDoc struct {
	DocID  int     `json:"doc_id"`
	Anchor string  `json:"anchor,omitempty"`
	Name   string  `json:"name,omitempty"`
	Score  float64 `json:"score"`
}

// Less is the result order: score descending, then doc id ascending, then
// anchor ascending.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DocID != b.DocID {
		return a.DocID < b.DocID
	}
	return a.Anchor < b.Anchor
}

// Sort orders docs in place.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool { return Less(docs[i], docs[j]) })
}

// Rank turns per-document scores into an ordered list, truncated to limit
// when limit is positive.
func Rank(scores map[int]float64, limit int) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		result = append(result, ScoredDoc{DocID: id, Score: score})
	}
	Sort(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Package executor answers a QueryPlan against an immutable index.
package executor

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

const (
	KindPage   = "page"
	KindObject = "object"
)

// Result is one hit with its document metadata resolved.
type Result struct {
	DocID       int     `json:"doc_id"`
	DocName     string  `json:"docname"`
	FileName    string  `json:"filename"`
	Title       string  `json:"title"`
	Kind        string  `json:"kind"`
	Anchor      string  `json:"anchor,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
}

type SearchResult struct {
	Query       string         `json:"query"`
	TotalHits   int            `json:"total_hits"`
	Results     []Result       `json:"results"`
	TermStats   map[string]int `json:"term_stats"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// Executor is safe for concurrent use; it never mutates the index.
type Executor struct {
	idx    *index.Index
	scorer ranker.Scorer
	logger *slog.Logger
}

// New returns an executor over idx. A nil idx behaves as the empty index.
func New(idx *index.Index, scorer ranker.Scorer) *Executor {
	if idx == nil {
		idx = index.Empty()
	}
	return &Executor{
		idx:    idx,
		scorer: scorer,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Index() *index.Index { return e.idx }

// Execute runs plan. Every term must match a document for it to be returned;
// documents containing an exclude term are dropped. limit <= 0 returns all
// hits. An empty plan or an unknown term yields an empty result, not an
// error.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &SearchResult{
		Query:       plan.RawQuery,
		Results:     []Result{},
		TermStats:   make(map[string]int, len(plan.Terms)),
		Fingerprint: e.idx.Fingerprint(),
	}
	if len(plan.Terms) == 0 || e.idx.NumDocs() == 0 {
		return res, nil
	}

	excluded := e.excluded(plan.ExcludeTerms)

	var candidates map[int]float64
	for i, term := range plan.Terms {
		matches := e.matchTerm(term)
		res.TermStats[term] = len(matches)
		if i == 0 {
			candidates = matches
			continue
		}
		for id, score := range candidates {
			s, ok := matches[id]
			if !ok {
				delete(candidates, id)
				continue
			}
			if s > score {
				candidates[id] = s
			}
		}
	}
	for id := range candidates {
		if _, ok := excluded[id]; ok {
			delete(candidates, id)
		}
	}
	pages := ranker.Rank(candidates, 0)

	objects, meta, err := e.searchObjects(ctx, plan.ObjectTerms, excluded)
	if err != nil {
		return nil, err
	}

	merged := merger.Merge([][]ranker.ScoredDoc{objects, pages}, 0)
	res.TotalHits = len(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	for _, hit := range merged {
		doc, _ := e.idx.Document(hit.DocID)
		r := Result{
			DocID:    doc.ID,
			DocName:  doc.DocName,
			FileName: doc.FileName,
			Title:    doc.Title,
			Kind:     KindPage,
			Score:    hit.Score,
		}
		if hit.Anchor != "" {
			m := meta[objectKey{hit.DocID, hit.Anchor}]
			r.Kind = KindObject
			r.Anchor = hit.Anchor
			r.Name = m.name
			r.Description = m.description
		}
		res.Results = append(res.Results, r)
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"exclude", plan.ExcludeTerms,
		"total_hits", res.TotalHits,
		"returned", len(res.Results),
	)
	return res, nil
}

// matchTerm scores every document the term reaches. Exact keys weigh Term
// and Title. Terms longer than two runes with no exact key in a table also
// match every key of that table containing them, at the partial weights.
func (e *Executor) matchTerm(term string) map[int]float64 {
	scores := make(map[int]float64)
	hit := func(postings index.PostingList, weight float64) {
		for _, id := range postings {
			if cur, ok := scores[id]; !ok || weight > cur {
				scores[id] = weight
			}
		}
	}

	body, inBody := e.idx.Lookup(term)
	hit(body, e.scorer.Term)
	title, inTitle := e.idx.LookupTitle(term)
	hit(title, e.scorer.Title)

	if utf8.RuneCountInString(term) > 2 {
		if !inBody {
			for _, key := range e.idx.TermsContaining(term) {
				p, _ := e.idx.Lookup(key)
				hit(p, e.scorer.PartialTerm)
			}
		}
		if !inTitle {
			for _, key := range e.idx.TitleTermsContaining(term) {
				p, _ := e.idx.LookupTitle(key)
				hit(p, e.scorer.PartialTitle)
			}
		}
	}
	return scores
}

// excluded collects documents holding any exclude term exactly, in either
// table.
func (e *Executor) excluded(terms []string) map[int]struct{} {
	out := make(map[int]struct{})
	for _, term := range terms {
		body, _ := e.idx.Lookup(term)
		title, _ := e.idx.LookupTitle(term)
		for _, id := range body.Union(title) {
			out[id] = struct{}{}
		}
	}
	return out
}

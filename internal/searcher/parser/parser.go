// Package parser turns a free-text query into a QueryPlan of stemmed lookup
// terms.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// QueryPlan lists what the executor looks up. All terms must match a
// document; any exclude term removes it.
type QueryPlan struct {
	Terms          []string `json:"terms"`
	ExcludeTerms   []string `json:"exclude_terms,omitempty"`
	HighlightTerms []string `json:"highlight_terms,omitempty"`
	ObjectTerms    []string `json:"object_terms,omitempty"`
	RawQuery       string   `json:"raw_query"`
}

// Empty reports whether the plan has nothing to look up.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0 && len(p.ObjectTerms) == 0
}

// Parse splits query on whitespace. "AND" is accepted and ignored. "NOT x"
// and "-x" exclude x. Every other word is normalised through analyzer;
// stop-words drop out of every list. ObjectTerms keep the unstemmed,
// lower-cased words.
func Parse(query string, analyzer *tokenizer.Analyzer) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}

	seen := map[string]struct{}{}
	seenExclude := map[string]struct{}{}
	seenHighlight := map[string]struct{}{}
	seenObject := map[string]struct{}{}
	add := func(set map[string]struct{}, list *[]string, v string) {
		if _, ok := set[v]; ok {
			return
		}
		set[v] = struct{}{}
		*list = append(*list, v)
	}

	excludeNext := false
	for _, field := range strings.Fields(query) {
		switch field {
		case "AND":
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		exclude := excludeNext
		excludeNext = false
		if len(field) > 1 && field[0] == '-' {
			exclude = true
			field = field[1:]
		}

		for _, word := range tokenizer.Split(field) {
			term, ok := analyzer.QueryTerm(word)
			if exclude {
				if ok {
					add(seenExclude, &plan.ExcludeTerms, term)
				}
				continue
			}
			if !ok {
				continue
			}
			add(seen, &plan.Terms, term)
			add(seenObject, &plan.ObjectTerms, word)
			add(seenHighlight, &plan.HighlightTerms, word)
		}
	}
	return plan
}

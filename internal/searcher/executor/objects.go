package executor

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

type objectKey struct {
	docID  int
	anchor string
}

type objectMeta struct {
	name        string
	description string
}

// searchObjects matches each object term against object full names. A name
// whose last dotted part equals the term scores ObjNameMatch; one whose last
// part merely contains it scores ObjPartialMatch. With several terms, the
// others must each appear in the object's prefix, name, type label or page
// title. The priority bonus is added last.
func (e *Executor) searchObjects(ctx context.Context, terms []string, excluded map[int]struct{}) ([]ranker.ScoredDoc, map[objectKey]objectMeta, error) {
	objects := e.idx.Objects()
	if len(objects) == 0 || len(terms) == 0 {
		return nil, nil, nil
	}

	var hits []ranker.ScoredDoc
	meta := make(map[objectKey]objectMeta)
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for _, obj := range objects {
			if _, skip := excluded[obj.DocID]; skip {
				continue
			}
			hit, m, ok := e.matchObject(obj, term, terms)
			if !ok {
				continue
			}
			hits = append(hits, hit)
			meta[objectKey{hit.DocID, hit.Anchor}] = m
		}
	}
	return hits, meta, nil
}

func (e *Executor) matchObject(obj index.Object, term string, all []string) (ranker.ScoredDoc, objectMeta, bool) {
	fullName := obj.FullName()
	lowerName := strings.ToLower(fullName)
	if !strings.Contains(lowerName, term) {
		return ranker.ScoredDoc{}, objectMeta{}, false
	}

	var score float64
	last := lowerName[strings.LastIndex(lowerName, ".")+1:]
	switch {
	case lowerName == term || last == term:
		score += e.scorer.ObjNameMatch
	case strings.Contains(last, term):
		score += e.scorer.ObjPartialMatch
	}

	objName, _ := e.idx.ObjName(obj.TypeIndex)
	doc, _ := e.idx.Document(obj.DocID)

	if len(all) > 1 {
		haystack := strings.ToLower(obj.Prefix + " " + obj.Name + " " + objName.Label + " " + doc.Title)
		for _, other := range all {
			if other != term && !strings.Contains(haystack, other) {
				return ranker.ScoredDoc{}, objectMeta{}, false
			}
		}
	}

	anchor := obj.Anchor
	switch anchor {
	case "":
		anchor = fullName
	case "-":
		anchor = objName.Type + "-" + fullName
	}
	score += e.scorer.Prio(obj.Priority)

	return ranker.ScoredDoc{DocID: obj.DocID, Anchor: anchor, Name: fullName, Score: score},
		objectMeta{name: fullName, description: objName.Label + ", in " + doc.Title},
		true
}

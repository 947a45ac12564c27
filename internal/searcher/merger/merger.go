// Package merger combines ranked hit lists, such as object hits and page
// hits, into one ordered list.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

type hitKey struct {
	docID  int
	anchor string
}

// Merge combines lists. A hit appearing more than once by (doc id, anchor)
// keeps its highest score. The result follows ranker.Less and holds at most
// limit hits; limit <= 0 keeps all.
func Merge(lists [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	best := make(map[hitKey]ranker.ScoredDoc)
	for _, list := range lists {
		for _, doc := range list {
			k := hitKey{doc.DocID, doc.Anchor}
			if cur, ok := best[k]; !ok || doc.Score > cur.Score {
				best[k] = doc
			}
		}
	}

	if limit <= 0 || limit > len(best) {
		limit = len(best)
	}
	// Min-heap on the result order keeps the best limit hits.
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range best {
		heap.Push(h, doc)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

// Less puts the worst hit at the root.
func (h scoredDocHeap) Less(i, j int) bool { return ranker.Less(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

package ranker

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func TestRankOrder(t *testing.T) {
	scores := map[int]float64{12: 5, 0: 15, 5: 5, 6: 15, 1: 5}
	got := Rank(scores, 0)
	want := []ScoredDoc{{DocID: 0, Score: 15}, {DocID: 6, Score: 15}, {DocID: 1, Score: 5}, {DocID: 5, Score: 5}, {DocID: 12, Score: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rank = %v, want %v", got, want)
	}
	if got := Rank(scores, 2); len(got) != 2 || got[1].DocID != 6 {
		t.Errorf("Rank limit 2 = %v", got)
	}
	if got := Rank(nil, 5); len(got) != 0 {
		t.Errorf("Rank(nil) = %v", got)
	}
}

func TestSortBreaksTiesByAnchor(t *testing.T) {
	docs := []ScoredDoc{{DocID: 1, Anchor: "b", Score: 3}, {DocID: 1, Anchor: "a", Score: 3}, {DocID: 1, Score: 3}}
	Sort(docs)
	if docs[0].Anchor != "" || docs[1].Anchor != "a" || docs[2].Anchor != "b" {
		t.Errorf("Sort = %v", docs)
	}
}

func TestScorer(t *testing.T) {
	s := DefaultScorer()
	for prio, want := range map[int]float64{0: 15, 1: 5, 2: -5, 7: 0} {
		if got := s.Prio(prio); got != want {
			t.Errorf("Prio(%d) = %v, want %v", prio, got, want)
		}
	}
	c := FromConfig(config.ScorerConfig{Title: 20})
	if c.Title != 20 || c.Term != 5 || c.PartialTitle != 7 {
		t.Errorf("FromConfig = %+v", c)
	}
}

package index

import (
	"slices"
)

// PostingList is a sorted, duplicate-free list of document ids.
type PostingList []int

// NewPostingList sorts and de-duplicates ids into a fresh PostingList.
func NewPostingList(ids ...int) PostingList {
	p := slices.Clone(PostingList(ids))
	slices.Sort(p)
	return slices.Compact(p)
}

func (p PostingList) Contains(id int) bool {
	_, found := slices.BinarySearch(p, id)
	return found
}

func (p PostingList) Intersect(other PostingList) PostingList {
	out := make(PostingList, 0, min(len(p), len(other)))
	i, j := 0, 0
	for i < len(p) && j < len(other) {
		switch {
		case p[i] == other[j]:
			out = append(out, p[i])
			i++
			j++
		case p[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func (p PostingList) Union(other PostingList) PostingList {
	out := make(PostingList, 0, len(p)+len(other))
	i, j := 0, 0
	for i < len(p) || j < len(other) {
		switch {
		case j >= len(other) || (i < len(p) && p[i] < other[j]):
			out = append(out, p[i])
			i++
		case i >= len(p) || other[j] < p[i]:
			out = append(out, other[j])
			j++
		default:
			out = append(out, p[i])
			i++
			j++
		}
	}
	return out
}

// Subtract returns the ids of p not present in other.
func (p PostingList) Subtract(other PostingList) PostingList {
	out := make(PostingList, 0, len(p))
	for _, id := range p {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// TermEntry pairs a term with its postings, in the order Snapshot emits them.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Package index holds the immutable in-memory search index: the document
// table, body and title postings, object entries and the environment version
// table of the build that produced it.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const (
	// SphinxEnvVersion is the "sphinx" envversion this package reads and writes.
	SphinxEnvVersion = 56
	// StemmerKeyPrefix marks envversion entries that record the build stemmer.
	StemmerKeyPrefix = "docsearch.stemmer."
)

// StemmerKey returns the envversion key recording stemmer name.
func StemmerKey(name string) string {
	return StemmerKeyPrefix + name
}

type Document struct {
	ID       int    `json:"id"`
	DocName  string `json:"docname"`
	FileName string `json:"filename"`
	Title    string `json:"title"`
}

// Object is one entry of the object table, e.g. a documented function.
type Object struct {
	Prefix    string `json:"prefix"`
	Name      string `json:"name"`
	DocID     int    `json:"doc"`
	TypeIndex int    `json:"type"`
	Priority  int    `json:"prio"`
	Anchor    string `json:"anchor"`
}

// FullName joins prefix and name the way object anchors are formed.
func (o Object) FullName() string {
	if o.Prefix == "" {
		return o.Name
	}
	return o.Prefix + "." + o.Name
}

// ObjName describes an object type: its domain, type name and display label.
type ObjName struct {
	Domain string `json:"domain"`
	Type   string `json:"type"`
	Label  string `json:"label"`
}

// Data is the raw material of an Index. New copies it; callers may reuse it.
type Data struct {
	Documents  []Document
	Terms      map[string][]int
	TitleTerms map[string][]int
	Objects    []Object
	ObjTypes   map[int]string
	ObjNames   map[int]ObjName
	EnvVersion map[string]int
}

type Index struct {
	docs       []Document
	terms      map[string]PostingList
	titleTerms map[string]PostingList
	termKeys   []string
	titleKeys  []string
	objects    []Object
	objTypes   map[int]string
	objNames   map[int]ObjName
	envVersion map[string]int

	fpOnce      sync.Once
	fingerprint string
}

type Stats struct {
	Documents  int `json:"documents"`
	Terms      int `json:"terms"`
	TitleTerms int `json:"titleTerms"`
	Postings   int `json:"postings"`
	Objects    int `json:"objects"`
}

// New builds a validated Index from d.
func New(d Data) (*Index, error) {
	idx := &Index{
		docs:       slices.Clone(d.Documents),
		terms:      make(map[string]PostingList, len(d.Terms)),
		titleTerms: make(map[string]PostingList, len(d.TitleTerms)),
		objects:    slices.Clone(d.Objects),
		objTypes:   maps.Clone(d.ObjTypes),
		objNames:   maps.Clone(d.ObjNames),
		envVersion: maps.Clone(d.EnvVersion),
	}
	if idx.objTypes == nil {
		idx.objTypes = map[int]string{}
	}
	if idx.objNames == nil {
		idx.objNames = map[int]ObjName{}
	}
	if idx.envVersion == nil {
		idx.envVersion = map[string]int{}
	}
	for term, ids := range d.Terms {
		idx.terms[term] = NewPostingList(ids...)
	}
	for term, ids := range d.TitleTerms {
		idx.titleTerms[term] = NewPostingList(ids...)
	}
	idx.termKeys = slices.Sorted(maps.Keys(idx.terms))
	idx.titleKeys = slices.Sorted(maps.Keys(idx.titleTerms))
	sort.SliceStable(idx.objects, func(i, j int) bool {
		if idx.objects[i].Prefix != idx.objects[j].Prefix {
			return idx.objects[i].Prefix < idx.objects[j].Prefix
		}
		return idx.objects[i].Name < idx.objects[j].Name
	})

	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Empty returns an index with no documents. Callers serve it when no valid
// index could be loaded.
func Empty() *Index {
	return &Index{
		terms:      map[string]PostingList{},
		titleTerms: map[string]PostingList{},
		objTypes:   map[int]string{},
		objNames:   map[int]ObjName{},
		envVersion: map[string]int{},
	}
}

// Validate checks referential integrity: document ids are dense and every
// posting and object points at an existing document.
func (x *Index) Validate() error {
	for i, d := range x.docs {
		if d.ID != i {
			return apperrors.Newf(apperrors.ErrInvalidIndex, 0, "document %q has id %d at position %d", d.DocName, d.ID, i)
		}
	}
	check := func(table string, postings map[string]PostingList) error {
		for term, ids := range postings {
			if len(ids) == 0 {
				return apperrors.Newf(apperrors.ErrInvalidIndex, 0, "%s term %q has no postings", table, term)
			}
			for _, id := range ids {
				if id < 0 || id >= len(x.docs) {
					return apperrors.Newf(apperrors.ErrInvalidIndex, 0, "%s term %q references unknown document %d", table, term, id)
				}
			}
		}
		return nil
	}
	if err := check("terms", x.terms); err != nil {
		return err
	}
	if err := check("titleterms", x.titleTerms); err != nil {
		return err
	}
	for _, o := range x.objects {
		if o.DocID < 0 || o.DocID >= len(x.docs) {
			return apperrors.Newf(apperrors.ErrInvalidIndex, 0, "object %q references unknown document %d", o.FullName(), o.DocID)
		}
		if _, ok := x.objTypes[o.TypeIndex]; !ok {
			return apperrors.Newf(apperrors.ErrInvalidIndex, 0, "object %q references unknown type %d", o.FullName(), o.TypeIndex)
		}
	}
	return nil
}

func (x *Index) NumDocs() int { return len(x.docs) }

func (x *Index) Document(id int) (Document, bool) {
	if id < 0 || id >= len(x.docs) {
		return Document{}, false
	}
	return x.docs[id], true
}

func (x *Index) Documents() []Document { return slices.Clone(x.docs) }

// DocumentByName finds a document by its docname.
func (x *Index) DocumentByName(name string) (Document, bool) {
	for _, d := range x.docs {
		if d.DocName == name {
			return d, true
		}
	}
	return Document{}, false
}

// Lookup returns the body postings for an exact term.
func (x *Index) Lookup(term string) (PostingList, bool) {
	p, ok := x.terms[term]
	return slices.Clone(p), ok
}

// LookupTitle returns the title postings for an exact term.
func (x *Index) LookupTitle(term string) (PostingList, bool) {
	p, ok := x.titleTerms[term]
	return slices.Clone(p), ok
}

func (x *Index) TermKeys() []string { return slices.Clone(x.termKeys) }

func (x *Index) TitleTermKeys() []string { return slices.Clone(x.titleKeys) }

// TermsContaining lists body terms containing sub, excluding sub itself.
func (x *Index) TermsContaining(sub string) []string {
	return containing(x.termKeys, sub)
}

// TitleTermsContaining lists title terms containing sub, excluding sub
// itself.
func (x *Index) TitleTermsContaining(sub string) []string {
	return containing(x.titleKeys, sub)
}

func containing(keys []string, sub string) []string {
	var out []string
	for _, k := range keys {
		if k != sub && strings.Contains(k, sub) {
			out = append(out, k)
		}
	}
	return out
}

func (x *Index) Objects() []Object { return slices.Clone(x.objects) }

func (x *Index) ObjType(i int) (string, bool) {
	t, ok := x.objTypes[i]
	return t, ok
}

func (x *Index) ObjTypes() map[int]string { return maps.Clone(x.objTypes) }

func (x *Index) ObjName(i int) (ObjName, bool) {
	n, ok := x.objNames[i]
	return n, ok
}

func (x *Index) ObjNames() map[int]ObjName { return maps.Clone(x.objNames) }

func (x *Index) EnvVersion() map[string]int { return maps.Clone(x.envVersion) }

// Snapshot returns the body and title tables as sorted term entries.
func (x *Index) Snapshot() (terms, titleTerms []TermEntry) {
	for _, k := range x.termKeys {
		terms = append(terms, TermEntry{Term: k, Postings: slices.Clone(x.terms[k])})
	}
	for _, k := range x.titleKeys {
		titleTerms = append(titleTerms, TermEntry{Term: k, Postings: slices.Clone(x.titleTerms[k])})
	}
	return terms, titleTerms
}

func (x *Index) Stats() Stats {
	s := Stats{
		Documents:  len(x.docs),
		Terms:      len(x.terms),
		TitleTerms: len(x.titleTerms),
		Objects:    len(x.objects),
	}
	for _, p := range x.terms {
		s.Postings += len(p)
	}
	for _, p := range x.titleTerms {
		s.Postings += len(p)
	}
	return s
}

// Fingerprint is the hex sha256 of the index's canonical JSON encoding. Two
// indexes with equal fingerprints answer every query identically.
func (x *Index) Fingerprint() string {
	x.fpOnce.Do(func() {
		canonical := struct {
			Documents  []Document             `json:"documents"`
			Terms      map[string]PostingList `json:"terms"`
			TitleTerms map[string]PostingList `json:"titleterms"`
			Objects    []Object               `json:"objects"`
			ObjTypes   map[int]string         `json:"objtypes"`
			ObjNames   map[int]ObjName        `json:"objnames"`
			EnvVersion map[string]int         `json:"envversion"`
		}{x.docs, x.terms, x.titleTerms, x.objects, x.objTypes, x.objNames, x.envVersion}
		data, err := json.Marshal(canonical)
		if err != nil {
			panic(fmt.Sprintf("index: marshalling canonical form: %v", err))
		}
		sum := sha256.Sum256(data)
		x.fingerprint = hex.EncodeToString(sum[:])
	})
	return x.fingerprint
}

package index

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func sampleData() Data {
	return Data{
		Documents: []Document{
			{ID: 0, DocName: "model/intro", FileName: "model/intro.md", Title: "Scope of the Workshop"},
			{ID: 1, DocName: "model/tespy-simple", FileName: "model/tespy-simple.ipynb", Title: "Simple TESPy heat pump model"},
		},
		Terms:      map[string][]int{"cop": {1, 1, 0}, "workshop": {1}},
		TitleTerms: map[string][]int{"heat": {1}, "workshop": {0}},
		EnvVersion: map[string]int{"sphinx": 56},
	}
}

func TestNewNormalizesPostings(t *testing.T) {
	idx, err := New(sampleData())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := idx.Lookup("cop")
	if !ok || !reflect.DeepEqual(got, PostingList{0, 1}) {
		t.Errorf("Lookup(cop) = %v, %v", got, ok)
	}
	if _, ok := idx.Lookup("heat"); ok {
		t.Error("heat is a title term only")
	}
	if got, _ := idx.LookupTitle("heat"); !reflect.DeepEqual(got, PostingList{1}) {
		t.Errorf("LookupTitle(heat) = %v", got)
	}
	if !reflect.DeepEqual(idx.TermKeys(), []string{"cop", "workshop"}) {
		t.Errorf("TermKeys = %v", idx.TermKeys())
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	idx, err := New(sampleData())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, _ := idx.Lookup("cop")
	p[0] = 99
	again, _ := idx.Lookup("cop")
	if again[0] != 0 {
		t.Error("mutating Lookup result changed the index")
	}
	env := idx.EnvVersion()
	env["sphinx"] = 1
	if idx.EnvVersion()["sphinx"] != 56 {
		t.Error("mutating EnvVersion result changed the index")
	}
}

func TestValidateRejectsDanglingPostings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Data)
	}{
		{"unknown doc in terms", func(d *Data) { d.Terms["cop"] = []int{5} }},
		{"negative doc in titleterms", func(d *Data) { d.TitleTerms["heat"] = []int{-1} }},
		{"empty postings", func(d *Data) { d.Terms["empty"] = nil }},
		{"sparse ids", func(d *Data) { d.Documents[1].ID = 7 }},
		{"object without type", func(d *Data) {
			d.Objects = []Object{{Name: "f", DocID: 0, TypeIndex: 3}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleData()
			tt.mutate(&d)
			_, err := New(d)
			if !errors.Is(err, apperrors.ErrInvalidIndex) {
				t.Errorf("New() error = %v, want ErrInvalidIndex", err)
			}
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	a, _ := New(sampleData())
	b, _ := New(sampleData())
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal indexes have different fingerprints")
	}
	d := sampleData()
	d.Terms["pump"] = []int{0}
	c, _ := New(d)
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different indexes share a fingerprint")
	}
	if Empty().Fingerprint() == a.Fingerprint() {
		t.Error("empty index fingerprint collides")
	}
}

func TestEmpty(t *testing.T) {
	e := Empty()
	if e.NumDocs() != 0 || len(e.TermKeys()) != 0 {
		t.Errorf("Empty() not empty: %+v", e.Stats())
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Empty().Validate() = %v", err)
	}
	if _, ok := e.Document(0); ok {
		t.Error("Empty() has a document 0")
	}
}

func TestTermsContaining(t *testing.T) {
	idx, _ := New(Data{
		Documents:  []Document{{ID: 0, DocName: "a"}},
		Terms:      map[string][]int{"cop": {0}, "cop_carnot": {0}, "carnot_cop": {0}, "pump": {0}},
		TitleTerms: map[string][]int{},
	})
	got := idx.TermsContaining("cop")
	want := []string{"carnot_cop", "cop_carnot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TermsContaining(cop) = %v, want %v", got, want)
	}
}

func TestPostingListOps(t *testing.T) {
	a := NewPostingList(5, 1, 3, 3)
	b := NewPostingList(3, 4, 5)
	if !reflect.DeepEqual(a, PostingList{1, 3, 5}) {
		t.Fatalf("NewPostingList = %v", a)
	}
	if got := a.Intersect(b); !reflect.DeepEqual(got, PostingList{3, 5}) {
		t.Errorf("Intersect = %v", got)
	}
	if got := a.Union(b); !reflect.DeepEqual(got, PostingList{1, 3, 4, 5}) {
		t.Errorf("Union = %v", got)
	}
	if got := a.Subtract(b); !reflect.DeepEqual(got, PostingList{1}) {
		t.Errorf("Subtract = %v", got)
	}
	if !a.Contains(3) || a.Contains(4) {
		t.Error("Contains wrong")
	}
}

func TestBuilderTitleRule(t *testing.T) {
	b := NewBuilder(tokenizer.NewAnalyzer(tokenizer.MustStemmer("porter")))
	docs := []SourceDocument{
		{DocName: "model/tespy-simple", FileName: "model/tespy-simple.ipynb", Title: "Simple TESPy heat pump model", Body: "The COP of the heat pump."},
		{DocName: "excursion/entropy-analysis", FileName: "excursion/entropy-analysis.ipynb", Title: "Entropy Analysis of the COP", Sections: []string{"Carnot COP"}, Body: "For a heat pump the COP is bounded."},
	}
	for _, d := range docs {
		if err := b.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := b.Add(docs[0]); err == nil {
		t.Error("duplicate docname accepted")
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	first, _ := idx.Document(0)
	if first.DocName != "excursion/entropy-analysis" {
		t.Errorf("documents not sorted by docname: %v", idx.Documents())
	}
	if got, _ := idx.LookupTitle("cop"); !reflect.DeepEqual(got, PostingList{0}) {
		t.Errorf("title cop = %v", got)
	}
	if got, _ := idx.Lookup("cop"); !reflect.DeepEqual(got, PostingList{1}) {
		t.Errorf("body cop = %v, want only the doc without cop in its title", got)
	}
	if got, _ := idx.LookupTitle("carnot"); !reflect.DeepEqual(got, PostingList{0}) {
		t.Errorf("section heading term carnot = %v", got)
	}
	if got, _ := idx.Lookup("For"); !reflect.DeepEqual(got, PostingList{0}) {
		t.Errorf("raw stop-stem word For = %v", got)
	}
	if _, ok := idx.Lookup("the"); ok {
		t.Error("stop-word indexed")
	}
	env := idx.EnvVersion()
	if env["sphinx"] != SphinxEnvVersion || env[StemmerKey("porter")] != 1 {
		t.Errorf("envversion = %v", env)
	}
}

func TestBuilderEmpty(t *testing.T) {
	b := NewBuilder(tokenizer.NewAnalyzer(tokenizer.MustStemmer("none")))
	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.NumDocs() != 0 {
		t.Errorf("NumDocs = %d", idx.NumDocs())
	}
	if idx.EnvVersion()[StemmerKey("none")] != 1 {
		t.Errorf("envversion = %v", idx.EnvVersion())
	}
}

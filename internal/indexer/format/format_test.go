package format

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const fixturePath = "testdata/searchindex.js"

func loadFixture(t *testing.T) *index.Index {
	t.Helper()
	idx, err := ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return idx
}

func TestDecodeFixture(t *testing.T) {
	idx := loadFixture(t)
	stats := idx.Stats()
	if stats.Documents != 14 {
		t.Errorf("documents = %d, want 14", stats.Documents)
	}
	if stats.Terms != 1689 {
		t.Errorf("terms = %d, want 1689", stats.Terms)
	}
	if stats.TitleTerms != 83 {
		t.Errorf("titleterms = %d, want 83", stats.TitleTerms)
	}
	first, _ := idx.Document(0)
	want := index.Document{
		ID:       0,
		DocName:  "excursion/entropy-analysis",
		FileName: "excursion/entropy-analysis.ipynb",
		Title:    "Entropy Analysis of the COP",
	}
	if first != want {
		t.Errorf("document 0 = %+v, want %+v", first, want)
	}
	last, _ := idx.Document(13)
	if last.DocName != "zliterature" || last.FileName != "zliterature.md" {
		t.Errorf("document 13 = %+v", last)
	}
	if got, _ := idx.LookupTitle("cop"); !reflect.DeepEqual(got, index.PostingList{0, 6}) {
		t.Errorf("titleterms[cop] = %v", got)
	}
	if got, _ := idx.Lookup("cop"); !reflect.DeepEqual(got, index.PostingList{1, 5, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("terms[cop] = %v", got)
	}
	if got, _ := idx.Lookup("survei"); !reflect.DeepEqual(got, index.PostingList{13}) {
		t.Errorf("scalar posting terms[survei] = %v", got)
	}
	if idx.EnvVersion()["sphinx"] != 56 {
		t.Errorf("envversion = %v", idx.EnvVersion())
	}
}

func TestFixtureReferentialIntegrity(t *testing.T) {
	idx := loadFixture(t)
	terms, titleTerms := idx.Snapshot()
	for _, table := range [][]index.TermEntry{terms, titleTerms} {
		for _, e := range table {
			if len(e.Postings) == 0 {
				t.Errorf("term %q has no postings", e.Term)
			}
			for _, id := range e.Postings {
				if _, ok := idx.Document(id); !ok {
					t.Errorf("term %q references missing document %d", e.Term, id)
				}
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	idx := loadFixture(t)
	for _, wrap := range []bool{true, false} {
		var buf bytes.Buffer
		if err := Encode(&buf, idx, Options{Wrap: wrap}); err != nil {
			t.Fatalf("Encode(wrap=%v): %v", wrap, err)
		}
		if wrap != strings.HasPrefix(buf.String(), "Search.setIndex(") {
			t.Errorf("wrap=%v produced %q...", wrap, buf.String()[:20])
		}
		again, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode(wrap=%v): %v", wrap, err)
		}
		if again.Fingerprint() != idx.Fingerprint() {
			t.Errorf("round trip (wrap=%v) changed the index", wrap)
		}
	}
}

func TestEncodeDeterministicAndScalar(t *testing.T) {
	idx := loadFixture(t)
	var a, b bytes.Buffer
	if err := Encode(&a, idx, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&b, idx, Options{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encoding is not deterministic")
	}
	if !strings.Contains(a.String(), `"survei":13`) {
		t.Error("unary posting not collapsed to a scalar")
	}
	if !strings.Contains(a.String(), `"cop":[1,5,7,8,9,10,11,12]`) {
		t.Error("list posting missing")
	}
}

func TestDecodeVariants(t *testing.T) {
	base := `{"docnames":["a"],"filenames":["a.md"],"titles":["A"],"terms":{"x":0},"titleterms":{},"objects":{},"objtypes":{},"objnames":{},"envversion":{"sphinx":56}}`
	inputs := map[string]string{
		"bare":      base,
		"wrapped":   "Search.setIndex(" + base + ")",
		"semicolon": "Search.setIndex(" + base + ");\n",
		"bom":       "\xef\xbb\xbf" + base,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			idx, err := Decode(strings.NewReader(in))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got, _ := idx.Lookup("x"); !reflect.DeepEqual(got, index.PostingList{0}) {
				t.Errorf("terms[x] = %v", got)
			}
		})
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	inputs := map[string]string{
		"not json":        "Search.setIndex(nope)",
		"no docnames":     `{"terms":{}}`,
		"length mismatch": `{"docnames":["a","b"],"filenames":["a"],"titles":["A","B"]}`,
		"dangling":        `{"docnames":["a"],"filenames":["a"],"titles":["A"],"terms":{"x":[0,3]}}`,
		"empty postings":  `{"docnames":["a"],"filenames":["a"],"titles":["A"],"terms":{"x":[]}}`,
		"bad posting":     `{"docnames":["a"],"filenames":["a"],"titles":["A"],"terms":{"x":"zero"}}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			if !errors.Is(err, apperrors.ErrInvalidIndex) {
				t.Errorf("Decode error = %v, want ErrInvalidIndex", err)
			}
		})
	}
}

func TestDecodeObjects(t *testing.T) {
	listForm := `{"docnames":["api"],"filenames":["api.rst"],"titles":["API"],"terms":{},"titleterms":{},
		"objects":{"tespy.networks":[[0,0,1,"","Network"],[0,1,1,"-","solve"]]},
		"objtypes":{"0":"py:class","1":"py:method"},
		"objnames":{"0":["py","class","Python class"],"1":["py","method","Python method"]},
		"envversion":{"sphinx":56}}`
	idx, err := Decode(strings.NewReader(listForm))
	if err != nil {
		t.Fatalf("Decode list form: %v", err)
	}
	objs := idx.Objects()
	if len(objs) != 2 || objs[0].FullName() != "tespy.networks.Network" || objs[1].Anchor != "-" {
		t.Errorf("objects = %+v", objs)
	}
	if n, _ := idx.ObjName(1); n.Label != "Python method" {
		t.Errorf("objnames[1] = %+v", n)
	}

	dictForm := `{"docnames":["api"],"filenames":["api.rst"],"titles":["API"],
		"objects":{"":{"solph":[0,0,2,"module-solph"]}},
		"objtypes":{"0":"py:module"},"objnames":{"0":["py","module","Python module"]},
		"envversion":{"sphinx":56}}`
	idx, err = Decode(strings.NewReader(dictForm))
	if err != nil {
		t.Fatalf("Decode dict form: %v", err)
	}
	objs = idx.Objects()
	if len(objs) != 1 || objs[0].FullName() != "solph" || objs[0].Priority != 2 || objs[0].Anchor != "module-solph" {
		t.Errorf("objects = %+v", objs)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, idx, Options{}); err != nil {
		t.Fatal(err)
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatalf("re-decoding objects: %v", err)
	}
	if again.Fingerprint() != idx.Fingerprint() {
		t.Error("object round trip changed the index")
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name    string
		guard   Guard
		env     map[string]int
		wantErr bool
	}{
		{"sphinx build", DefaultGuard(), map[string]int{"sphinx": 56, "sphinx.domains.c": 2}, false},
		{"own build", DefaultGuard(), map[string]int{"sphinx": 56, index.StemmerKey("porter"): 1}, false},
		{"old sphinx", DefaultGuard(), map[string]int{"sphinx": 55}, true},
		{"missing sphinx", DefaultGuard(), map[string]int{}, true},
		{"other stemmer", DefaultGuard(), map[string]int{"sphinx": 56, index.StemmerKey("english"): 1}, true},
		{"english reader on sphinx build", Guard{Required: map[string]int{"sphinx": 56}, Stemmer: "english"}, map[string]int{"sphinx": 56}, true},
		{"extra requirement", Guard{Required: map[string]int{"sphinx": 56, "sphinxcontrib.bibtex": 9}}, map[string]int{"sphinx": 56, "sphinxcontrib.bibtex": 9}, false},
		{"no requirements", Guard{}, map[string]int{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.guard.Check(tt.env)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrSchemaMismatch) {
					t.Errorf("Check() = %v, want ErrSchemaMismatch", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Check() = %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	if _, err := LoadFile(fixturePath, DefaultGuard()); err != nil {
		t.Fatalf("LoadFile fixture: %v", err)
	}
	strict := Guard{Required: map[string]int{"sphinx": 57}}
	idx, err := LoadFile(fixturePath, strict)
	if !errors.Is(err, apperrors.ErrSchemaMismatch) {
		t.Errorf("LoadFile error = %v, want ErrSchemaMismatch", err)
	}
	if idx != nil {
		t.Error("mismatched index must not be returned")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.js"), DefaultGuard()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteFile(t *testing.T) {
	idx := loadFixture(t)
	path := filepath.Join(t.TempDir(), "out", "searchindex.js")
	if err := WriteFile(context.Background(), path, idx, Options{Wrap: true}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := LoadFile(path, DefaultGuard())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Fingerprint() != idx.Fingerprint() {
		t.Error("written index differs")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteFileRespectsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchindex.js")
	held := flock.New(path + ".lock")
	if err := held.Lock(); err != nil {
		t.Fatalf("taking lock: %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := WriteFile(ctx, path, index.Empty(), Options{}); err == nil {
		t.Fatal("WriteFile succeeded while the lock was held")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("index written despite held lock")
	}
}

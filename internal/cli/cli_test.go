package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const fixture = "../indexer/format/testdata/searchindex.js"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuery(t *testing.T) {
	out, err := run(t, "query", fixture, "heat", "-pump")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "getting-started/5-minutes-into-solph") || !strings.Contains(out, "1 of 1 results") {
		t.Errorf("output:\n%s", out)
	}
}

func TestQueryJSON(t *testing.T) {
	out, err := run(t, "query", "--json", "--limit", "3", fixture, "cop")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var res executor.SearchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if res.TotalHits != 10 || len(res.Results) != 3 || res.Results[0].DocID != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestQueryNoResults(t *testing.T) {
	out, err := run(t, "query", fixture, "zzzzqqqq")
	if err != nil || !strings.Contains(out, "no results") {
		t.Errorf("out %q, err %v", out, err)
	}
}

func TestQueryStemmerMismatch(t *testing.T) {
	_, err := run(t, "query", "--stemmer", "english", fixture, "cop")
	if !errors.Is(err, apperrors.ErrSchemaMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", fixture)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"documents    14", "sphinx = 56", "zliterature", "fingerprint"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestVerify(t *testing.T) {
	if out, err := run(t, "verify", fixture); err != nil || !strings.Contains(out, "envversion accepted") {
		t.Errorf("verify fixture: %v\n%s", err, out)
	}

	_, err := run(t, "verify", "--require", "sphinx=57", fixture)
	if !errors.Is(err, apperrors.ErrSchemaMismatch) {
		t.Errorf("strict verify err = %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.js")
	if err := os.WriteFile(bad, []byte(`Search.setIndex({"docnames":["a"],"filenames":["a.md"],"titles":["A"],"terms":{"x":5},"titleterms":{},"objects":{},"objtypes":{},"objnames":{},"envversion":{"sphinx":56}})`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "verify", bad); err == nil {
		t.Error("verify accepted a dangling posting")
	}
}

func TestBuildThenQuery(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"index.md":       "# Heat pump models\n\nAn overview of heat pump simulation.\n",
		"guide/setup.md": "# Setup\n\nInstall the solver and run a heat pump example.\n",
	}
	for rel, content := range files {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(t.TempDir(), "searchindex.js")

	msg, err := run(t, "build", src, out)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(msg, "2 documents") {
		t.Errorf("build output:\n%s", msg)
	}

	res, err := run(t, "query", "--json", out, "solver")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(res), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].DocName != "guide/setup" {
		t.Errorf("result = %+v", result)
	}
}

func TestArgs(t *testing.T) {
	if _, err := run(t, "query", fixture); err == nil {
		t.Error("query without words accepted")
	}
	if _, err := run(t, "inspect"); err == nil {
		t.Error("inspect without index accepted")
	}
}

func TestLoadTest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.URL.Query().Get("q") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		hits.Add(1)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	out, err := run(t, "loadtest", "--url", srv.URL, "--concurrency", "3", "--requests", "30",
		"--duration", "10s", "--from-index", fixture)
	if err != nil {
		t.Fatalf("loadtest: %v\n%s", err, out)
	}
	if n := hits.Load(); n != 30 {
		t.Errorf("server saw %d requests", n)
	}
	for _, want := range []string{"requests     30", "200: 30", "p95"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadTestFailsWithoutService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := run(t, "loadtest", "--url", srv.URL, "--requests", "3", "--duration", time.Second.String(), "--query", "cop")
	if err == nil {
		t.Error("loadtest against a closed server succeeded")
	}
}

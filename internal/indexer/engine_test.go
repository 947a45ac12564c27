package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func writeSources(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.md":             "# Heat pump workshop\n\nWelcome to the workshop.\n",
		"tespy/heat-pump.md":   "# Simple heat pump\n\nThe COP of a heat pump.\n",
		"_build/html/index.md": "# Build output\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestBuildWritesLoadableIndexAndPublishes(t *testing.T) {
	root := writeSources(t)
	out := filepath.Join(t.TempDir(), "out", "searchindex.js")
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())

	report, err := NewEngine(pub, m).Build(context.Background(), BuildOptions{
		SourceDir:  root,
		OutputPath: out,
		Stemmer:    "porter",
		Excludes:   []string{"_build"},
		Workers:    2,
		Wrap:       true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Stats.Documents != 2 || !report.Published {
		t.Errorf("report = %+v", report)
	}
	var stages []string
	for _, st := range report.Stages {
		stages = append(stages, st.Name)
	}
	if strings.Join(stages, ",") != "discover,index,validate,write,publish" {
		t.Errorf("stages = %v", stages)
	}

	idx, err := format.LoadFile(out, format.DefaultGuard())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if idx.Fingerprint() != report.Fingerprint {
		t.Error("fingerprint of written index differs from report")
	}
	if d, ok := idx.Document(1); !ok || d.DocName != "tespy/heat-pump" {
		t.Errorf("doc 1 = %+v", d)
	}
	if _, ok := idx.LookupTitle("pump"); !ok {
		t.Error("title term pump missing")
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events", len(pub.events))
	}
	ev, ok := pub.events[0].Value.(analytics.IndexEvent)
	if !ok || ev.Type != analytics.EventIndexBuilt || ev.Fingerprint != report.Fingerprint || ev.Documents != 2 {
		t.Errorf("event = %+v", pub.events[0].Value)
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("builds ok = %v", got)
	}
}

func TestBuildPublishFailureKeepsIndex(t *testing.T) {
	root := writeSources(t)
	out := filepath.Join(t.TempDir(), "searchindex.js")
	report, err := NewEngine(&recordingPublisher{err: errors.New("no brokers")}, nil).Build(context.Background(), BuildOptions{
		SourceDir:  root,
		OutputPath: out,
		Excludes:   []string{"_build"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Published {
		t.Error("report claims publish succeeded")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("index not written: %v", err)
	}
}

func TestBuildErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(nil, m)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "searchindex.js")

	cases := []BuildOptions{
		{OutputPath: out},
		{SourceDir: t.TempDir()},
		{SourceDir: t.TempDir(), OutputPath: out, Stemmer: "klingon"},
		{SourceDir: filepath.Join(t.TempDir(), "missing"), OutputPath: out},
	}
	for i, opts := range cases {
		if _, err := e.Build(ctx, opts); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")); got != float64(len(cases)) {
		t.Errorf("builds error = %v", got)
	}
}

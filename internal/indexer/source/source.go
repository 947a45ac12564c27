// Package source discovers documentation pages under a directory and parses
// them into documents ready for the index builder.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// DefaultExcludes are directory names skipped during discovery.
var DefaultExcludes = []string{"_build", ".git", ".ipynb_checkpoints"}

type Options struct {
	Excludes []string
	Workers  int
}

// Parser turns the content of one file into a document. docName and
// fileName are already set on the returned value by Discover.
type Parser func(content []byte) (index.SourceDocument, error)

var parsers = map[string]Parser{
	".md":    ParseMarkdown,
	".ipynb": ParseNotebook,
	".html":  ParseHTML,
	".htm":   ParseHTML,
}

// Supported reports whether Discover parses files with path's extension.
func Supported(path string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Discover walks root, parses every supported file concurrently and returns
// the documents sorted by docname.
func Discover(ctx context.Context, root string, opts Options) ([]index.SourceDocument, error) {
	logger := slog.Default().With("component", "source")
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	skip := make(map[string]struct{}, len(excludes))
	for _, name := range excludes {
		skip[name] = struct{}{}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, excluded := skip[d.Name()]; excluded && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	docs := make([]index.SourceDocument, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := parseFile(root, path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].DocName < docs[j].DocName })
	for i := 1; i < len(docs); i++ {
		if docs[i].DocName == docs[i-1].DocName {
			return nil, fmt.Errorf("docname %q produced by both %s and %s", docs[i].DocName, docs[i-1].FileName, docs[i].FileName)
		}
	}
	logger.Info("sources discovered", "root", root, "documents", len(docs))
	return docs, nil
}

func parseFile(root, path string) (index.SourceDocument, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return index.SourceDocument{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return index.SourceDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}
	parse := parsers[strings.ToLower(filepath.Ext(path))]
	doc, err := parse(content)
	if err != nil {
		return index.SourceDocument{}, fmt.Errorf("parsing %s: %w", rel, err)
	}
	fileName := filepath.ToSlash(rel)
	doc.FileName = fileName
	doc.DocName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if doc.Title == "" {
		doc.Title = doc.DocName
	}
	return doc, nil
}

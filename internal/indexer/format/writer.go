package format

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

type Options struct {
	// Wrap emits Search.setIndex(...) around the JSON object.
	Wrap bool
}

const lockRetryDelay = 50 * time.Millisecond

// Encode writes idx to w. Keys are emitted in a fixed order and single-doc
// postings collapse to a scalar, so equal indexes encode to equal bytes.
func Encode(w io.Writer, idx *index.Index, opts Options) error {
	var buf bytes.Buffer
	if opts.Wrap {
		buf.WriteString(wrapPrefix)
	}

	docs := idx.Documents()
	docNames := make([]string, len(docs))
	fileNames := make([]string, len(docs))
	titles := make([]string, len(docs))
	for i, d := range docs {
		docNames[i] = d.DocName
		fileNames[i] = d.FileName
		titles[i] = d.Title
	}
	terms, titleTerms := idx.Snapshot()

	objects := make(map[string][][]any)
	for _, o := range idx.Objects() {
		objects[o.Prefix] = append(objects[o.Prefix], []any{o.DocID, o.TypeIndex, o.Priority, o.Anchor, o.Name})
	}
	objNames := make(map[int][]string)
	for i, n := range idx.ObjNames() {
		objNames[i] = []string{n.Domain, n.Type, n.Label}
	}

	fields := []struct {
		key   string
		value any
	}{
		{"docnames", docNames},
		{"filenames", fileNames},
		{"titles", titles},
		{"terms", postingsJSON(terms)},
		{"objects", objects},
		{"objtypes", idx.ObjTypes()},
		{"objnames", objNames},
		{"titleterms", postingsJSON(titleTerms)},
		{"envversion", idx.EnvVersion()},
	}
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.key)
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')

	if opts.Wrap {
		buf.WriteString(wrapSuffix)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

func postingsJSON(entries []index.TermEntry) map[string]any {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		if len(e.Postings) == 1 {
			out[e.Term] = e.Postings[0]
			continue
		}
		out[e.Term] = []int(e.Postings)
	}
	return out
}

// WriteFile atomically replaces path with the encoding of idx. It holds an
// advisory lock on path+".lock" for the duration of the write and renames a
// temp file into place on success.
func WriteFile(ctx context.Context, path string, idx *index.Index, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: lock held by another writer", path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Encode(tmp, idx, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting index file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file into place: %w", err)
	}
	return nil
}

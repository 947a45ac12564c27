// Package format reads and writes the searchindex.js file produced by
// Sphinx-style documentation builds: a JSON object, optionally wrapped in a
// Search.setIndex(...) call.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const (
	wrapPrefix = "Search.setIndex("
	wrapSuffix = ")"
)

type rawIndex struct {
	DocNames   []string                   `json:"docnames"`
	FileNames  []string                   `json:"filenames"`
	Titles     []string                   `json:"titles"`
	Terms      map[string]json.RawMessage `json:"terms"`
	TitleTerms map[string]json.RawMessage `json:"titleterms"`
	Objects    map[string]json.RawMessage `json:"objects"`
	ObjTypes   map[string]string          `json:"objtypes"`
	ObjNames   map[string][]string        `json:"objnames"`
	EnvVersion map[string]int             `json:"envversion"`
}

// Decode parses a search index from r. The input may be bare JSON or wrapped
// in Search.setIndex(...), with an optional trailing semicolon.
func Decode(r io.Reader) (*index.Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	payload := unwrap(data)

	var raw rawIndex
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "decoding index JSON: %v", err)
	}
	if raw.DocNames == nil {
		return nil, apperrors.New(apperrors.ErrInvalidIndex, 0, "missing docnames")
	}
	if len(raw.FileNames) != len(raw.DocNames) || len(raw.Titles) != len(raw.DocNames) {
		return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0,
			"document table lengths differ: docnames=%d filenames=%d titles=%d",
			len(raw.DocNames), len(raw.FileNames), len(raw.Titles))
	}

	d := index.Data{
		Documents:  make([]index.Document, len(raw.DocNames)),
		EnvVersion: raw.EnvVersion,
		ObjTypes:   make(map[int]string, len(raw.ObjTypes)),
		ObjNames:   make(map[int]index.ObjName, len(raw.ObjNames)),
	}
	for i, name := range raw.DocNames {
		d.Documents[i] = index.Document{
			ID:       i,
			DocName:  name,
			FileName: raw.FileNames[i],
			Title:    raw.Titles[i],
		}
	}
	if d.Terms, err = decodePostings("terms", raw.Terms); err != nil {
		return nil, err
	}
	if d.TitleTerms, err = decodePostings("titleterms", raw.TitleTerms); err != nil {
		return nil, err
	}
	for k, v := range raw.ObjTypes {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objtypes key %q is not an integer", k)
		}
		d.ObjTypes[i] = v
	}
	for k, v := range raw.ObjNames {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objnames key %q is not an integer", k)
		}
		var n index.ObjName
		if len(v) > 0 {
			n.Domain = v[0]
		}
		if len(v) > 1 {
			n.Type = v[1]
		}
		if len(v) > 2 {
			n.Label = v[2]
		}
		d.ObjNames[i] = n
	}
	if d.Objects, err = decodeObjects(raw.Objects); err != nil {
		return nil, err
	}

	idx, err := index.New(d)
	if err != nil {
		return nil, fmt.Errorf("validating index: %w", err)
	}
	return idx, nil
}

func unwrap(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte(wrapPrefix)) {
		return data
	}
	data = bytes.TrimPrefix(data, []byte(wrapPrefix))
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte(";"))
	data = bytes.TrimSpace(data)
	return bytes.TrimSuffix(data, []byte(wrapSuffix))
}

// decodePostings accepts both a single document id and a list of ids per
// term.
func decodePostings(table string, raw map[string]json.RawMessage) (map[string][]int, error) {
	out := make(map[string][]int, len(raw))
	for term, msg := range raw {
		msg = bytes.TrimSpace(msg)
		if len(msg) > 0 && msg[0] == '[' {
			var ids []int
			if err := json.Unmarshal(msg, &ids); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "%s term %q: %v", table, term, err)
			}
			out[term] = ids
			continue
		}
		var id int
		if err := json.Unmarshal(msg, &id); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "%s term %q: %v", table, term, err)
		}
		out[term] = []int{id}
	}
	return out, nil
}

// decodeObjects reads the per-prefix object table. Current builds write a
// list of [doc, type, prio, anchor, name] tuples per prefix; older builds
// write a map of name to [doc, type, prio, anchor].
func decodeObjects(raw map[string]json.RawMessage) ([]index.Object, error) {
	var out []index.Object
	for prefix, msg := range raw {
		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case '[':
			var entries [][]json.RawMessage
			if err := json.Unmarshal(msg, &entries); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q: %v", prefix, err)
			}
			for _, e := range entries {
				if len(e) < 5 {
					return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q: entry has %d fields, want 5", prefix, len(e))
				}
				obj, err := decodeObject(prefix, e[4], e[:4])
				if err != nil {
					return nil, err
				}
				out = append(out, obj)
			}
		case '{':
			var entries map[string][]json.RawMessage
			if err := json.Unmarshal(msg, &entries); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q: %v", prefix, err)
			}
			for name, e := range entries {
				if len(e) < 4 {
					return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q.%q: entry has %d fields, want 4", prefix, name, len(e))
				}
				nameMsg, _ := json.Marshal(name)
				obj, err := decodeObject(prefix, nameMsg, e)
				if err != nil {
					return nil, err
				}
				out = append(out, obj)
			}
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q: unexpected JSON value", prefix)
		}
	}
	return out, nil
}

func decodeObject(prefix string, nameMsg json.RawMessage, fields []json.RawMessage) (index.Object, error) {
	obj := index.Object{Prefix: prefix}
	if err := json.Unmarshal(nameMsg, &obj.Name); err != nil {
		return obj, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q: name: %v", prefix, err)
	}
	targets := []*int{&obj.DocID, &obj.TypeIndex, &obj.Priority}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i], target); err != nil {
			return obj, apperrors.Newf(apperrors.ErrInvalidIndex, 0, "objects %q.%q: field %d: %v", prefix, obj.Name, i, err)
		}
	}
	if err := json.Unmarshal(fields[3], &obj.Anchor); err != nil {
		// Some builds write a numeric or null anchor; treat it as the default.
		obj.Anchor = ""
	}
	return obj, nil
}

// ReadFile decodes the index stored at path without a version check.
func ReadFile(path string) (*index.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	defer f.Close()
	idx, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", path, err)
	}
	return idx, nil
}

// LoadFile decodes the index at path and checks its envversion against
// guard. A mismatch yields an error wrapping ErrSchemaMismatch and no index.
func LoadFile(path string, guard Guard) (*index.Index, error) {
	idx, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := guard.Check(idx.EnvVersion()); err != nil {
		return nil, fmt.Errorf("loading index %s: %w", path, err)
	}
	return idx, nil
}

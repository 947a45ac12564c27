package index

import (
	"fmt"
	"maps"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// SourceDocument is one parsed documentation page fed to a Builder.
type SourceDocument struct {
	DocName  string
	FileName string
	Title    string
	Sections []string
	Body     string
}

// Builder accumulates documents and produces an immutable Index.
type Builder struct {
	analyzer   *tokenizer.Analyzer
	stemmer    string
	docs       map[string]SourceDocument
	envVersion map[string]int
}

func NewBuilder(analyzer *tokenizer.Analyzer) *Builder {
	stemmer := "none"
	if analyzer.Stemmer != nil {
		stemmer = analyzer.Stemmer.Name()
	}
	return &Builder{
		analyzer: analyzer,
		stemmer:  stemmer,
		docs:     make(map[string]SourceDocument),
	}
}

// WithEnvVersion adds components to the envversion table stamped on the
// built index. The sphinx and stemmer entries always win.
func (b *Builder) WithEnvVersion(components map[string]int) *Builder {
	if b.envVersion == nil {
		b.envVersion = make(map[string]int, len(components))
	}
	maps.Copy(b.envVersion, components)
	return b
}

// Add registers doc. Docnames must be unique.
func (b *Builder) Add(doc SourceDocument) error {
	if doc.DocName == "" {
		return fmt.Errorf("adding document: empty docname")
	}
	if _, exists := b.docs[doc.DocName]; exists {
		return fmt.Errorf("adding document %q: duplicate docname", doc.DocName)
	}
	b.docs[doc.DocName] = doc
	return nil
}

func (b *Builder) Len() int { return len(b.docs) }

// Build assigns document ids in docname order and fills the term tables. A
// word that appears in a document's title or section headings is recorded
// only in titleterms for that document.
func (b *Builder) Build() (*Index, error) {
	names := make([]string, 0, len(b.docs))
	for name := range b.docs {
		names = append(names, name)
	}
	sort.Strings(names)

	data := Data{
		Documents:  make([]Document, 0, len(names)),
		Terms:      make(map[string][]int),
		TitleTerms: make(map[string][]int),
		ObjTypes:   map[int]string{},
		ObjNames:   map[int]ObjName{},
		EnvVersion: maps.Clone(b.envVersion),
	}
	if data.EnvVersion == nil {
		data.EnvVersion = make(map[string]int, 2)
	}
	data.EnvVersion["sphinx"] = SphinxEnvVersion
	data.EnvVersion[StemmerKey(b.stemmer)] = 1

	for id, name := range names {
		src := b.docs[name]
		fileName := src.FileName
		if fileName == "" {
			fileName = src.DocName
		}
		data.Documents = append(data.Documents, Document{
			ID:       id,
			DocName:  src.DocName,
			FileName: fileName,
			Title:    src.Title,
		})

		inTitle := make(map[string]struct{})
		titleTexts := append([]string{src.Title}, src.Sections...)
		for _, text := range titleTexts {
			for _, tok := range b.analyzer.IndexTokens(text) {
				if _, seen := inTitle[tok.Term]; seen {
					continue
				}
				inTitle[tok.Term] = struct{}{}
				data.TitleTerms[tok.Term] = append(data.TitleTerms[tok.Term], id)
			}
		}

		inBody := make(map[string]struct{})
		for _, tok := range b.analyzer.IndexTokens(src.Body) {
			if _, titled := inTitle[tok.Term]; titled {
				continue
			}
			if _, seen := inBody[tok.Term]; seen {
				continue
			}
			inBody[tok.Term] = struct{}{}
			data.Terms[tok.Term] = append(data.Terms[tok.Term], id)
		}
	}

	idx, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return idx, nil
}

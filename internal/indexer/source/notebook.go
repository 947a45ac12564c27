package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

// text joins the cell source, which nbformat stores either as one string or
// as a list of lines.
func (c notebookCell) text() (string, error) {
	if len(c.Source) == 0 {
		return "", nil
	}
	var lines []string
	if err := json.Unmarshal(c.Source, &lines); err == nil {
		return strings.Join(lines, ""), nil
	}
	var s string
	if err := json.Unmarshal(c.Source, &s); err != nil {
		return "", fmt.Errorf("cell source: %w", err)
	}
	return s, nil
}

// ParseNotebook indexes markdown cells like markdown files and code cells as
// body text. Outputs are ignored.
func ParseNotebook(content []byte) (index.SourceDocument, error) {
	var nb notebook
	if err := json.Unmarshal(content, &nb); err != nil {
		return index.SourceDocument{}, fmt.Errorf("decoding notebook: %w", err)
	}
	var doc index.SourceDocument
	var body strings.Builder
	for i, cell := range nb.Cells {
		text, err := cell.text()
		if err != nil {
			return index.SourceDocument{}, fmt.Errorf("cell %d: %w", i, err)
		}
		switch cell.CellType {
		case "markdown":
			part := markdownText(text)
			if part.Title != "" {
				if doc.Title == "" {
					doc.Title = part.Title
				} else {
					doc.Sections = append(doc.Sections, part.Title)
				}
			}
			doc.Sections = append(doc.Sections, part.Sections...)
			body.WriteString(part.Body)
		case "code", "raw":
			body.WriteString(text)
			body.WriteByte('\n')
		}
	}
	doc.Body = body.String()
	return doc, nil
}

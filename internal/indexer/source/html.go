package source

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ParseHTML extracts the page title, headings and visible text. Scripts and
// styles are skipped.
func ParseHTML(content []byte) (index.SourceDocument, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return index.SourceDocument{}, fmt.Errorf("parsing html: %w", err)
	}

	var doc index.SourceDocument
	var pageTitle string
	var headings []string
	var body strings.Builder

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "script" || n.Data == "style" || n.Data == "noscript":
				return
			case n.Data == "title":
				pageTitle = strings.TrimSpace(nodeText(n))
				return
			case headingTags[n.Data]:
				if h := strings.Join(strings.Fields(nodeText(n)), " "); h != "" {
					headings = append(headings, h)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				body.WriteString(t)
				body.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(root)

	switch {
	case pageTitle != "":
		doc.Title = pageTitle
		doc.Sections = headings
	case len(headings) > 0:
		doc.Title = headings[0]
		doc.Sections = headings[1:]
	}
	doc.Body = body.String()
	return doc, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

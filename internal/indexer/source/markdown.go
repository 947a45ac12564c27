package source

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

type frontMatter struct {
	Title string `yaml:"title"`
}

var (
	linkTarget = regexp.MustCompile(`\]\([^)]*\)`)
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
)

// ParseMarkdown reads optional YAML front matter, then treats ATX headings
// as section titles and everything else as body text. The first heading is
// the title unless front matter sets one.
func ParseMarkdown(content []byte) (index.SourceDocument, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	meta, rest, err := splitFrontMatter(content)
	if err != nil {
		return index.SourceDocument{}, err
	}
	doc := markdownText(string(rest))
	if meta.Title != "" {
		if doc.Title != "" {
			doc.Sections = append([]string{doc.Title}, doc.Sections...)
		}
		doc.Title = meta.Title
	}
	return doc, nil
}

func splitFrontMatter(content []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return meta, content, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	var yamlLines []string
	consumed := 0
	closed := false
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		consumed += len(scanner.Bytes()) + 1
		if line == "---" {
			if first {
				first = false
				continue
			}
			closed = true
			break
		}
		yamlLines = append(yamlLines, line)
	}
	if !closed {
		return meta, content, nil
	}
	if err := yaml.Unmarshal([]byte(strings.Join(yamlLines, "\n")), &meta); err != nil {
		return meta, nil, fmt.Errorf("parsing front matter: %w", err)
	}
	if consumed > len(content) {
		consumed = len(content)
	}
	return meta, content[consumed:], nil
}

// markdownText splits markdown into headings and body. Fenced code stays in
// the body; heading markers inside fences are not headings.
func markdownText(text string) index.SourceDocument {
	var doc index.SourceDocument
	var body strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence {
			if heading, ok := atxHeading(trimmed); ok {
				if doc.Title == "" {
					doc.Title = heading
				} else {
					doc.Sections = append(doc.Sections, heading)
				}
				continue
			}
			line = linkTarget.ReplaceAllString(line, "]")
			line = htmlTag.ReplaceAllString(line, " ")
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	doc.Body = body.String()
	return doc
}

func atxHeading(line string) (string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", false
	}
	if level < len(line) && line[level] != ' ' && line[level] != '\t' {
		return "", false
	}
	heading := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[level:]), "#"))
	return cleanInline(heading), heading != ""
}

func cleanInline(s string) string {
	s = linkTarget.ReplaceAllString(s, "]")
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.NewReplacer("[", "", "]", "", "`", "", "*", "").Replace(s)
	return strings.TrimSpace(s)
}

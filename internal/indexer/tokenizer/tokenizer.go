// Package tokenizer turns documentation text into index terms. It
// NFC-normalises input, splits on non-word boundaries, removes stop-words and
// stems what remains with a configurable stemmer.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultStopWords is the English stop-word list used by Sphinx-generated
// indexes. Stop-words never appear as query terms.
var DefaultStopWords = NewStopWords(
	"a", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "near", "no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these", "they", "this", "to",
	"was", "will", "with",
)

type StopWords map[string]struct{}

func NewStopWords(words ...string) StopWords {
	sw := make(StopWords, len(words))
	for _, w := range words {
		sw[w] = struct{}{}
	}
	return sw
}

func (s StopWords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Token represents a single index term and its position in the original
// text.
type Token struct {
	Term     string
	Position int
}

var lower = cases.Lower(language.Und)

// Words splits text into runs of letters, numbers, marks and underscores
// after NFC normalisation. Case is preserved.
func Words(text string) []string {
	return strings.FieldsFunc(norm.NFC.String(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// Split is Words followed by lower-casing.
func Split(text string) []string {
	words := Words(text)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

// Analyzer applies one stemmer and one stop-word list consistently at build
// time and at query time.
type Analyzer struct {
	Stemmer   Stemmer
	StopWords StopWords
}

// NewAnalyzer returns an Analyzer using DefaultStopWords.
func NewAnalyzer(stemmer Stemmer) *Analyzer {
	return &Analyzer{Stemmer: stemmer, StopWords: DefaultStopWords}
}

func (a *Analyzer) stem(word string) string {
	w := lower.String(word)
	if a.Stemmer == nil {
		return w
	}
	return a.Stemmer.Stem(w)
}

// IndexTerm maps a raw word to the term stored in the index. When the stem
// is a stop-word but the raw word is not (e.g. "For"), the raw word is kept
// so the text stays searchable.
func (a *Analyzer) IndexTerm(word string) (string, bool) {
	if word == "" {
		return "", false
	}
	stemmed := a.stem(word)
	if !a.StopWords.Contains(stemmed) {
		return stemmed, true
	}
	if !a.StopWords.Contains(word) {
		return word, true
	}
	return "", false
}

// IndexTokens tokenizes text for the index.
func (a *Analyzer) IndexTokens(text string) []Token {
	words := Words(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term, ok := a.IndexTerm(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// QueryTerm maps a lower-cased query word to its lookup term. Stop-words are
// dropped.
func (a *Analyzer) QueryTerm(word string) (string, bool) {
	w := lower.String(word)
	if w == "" || a.StopWords.Contains(w) {
		return "", false
	}
	stemmed := a.stem(w)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// Tokenize breaks query text into stemmed, lowercased Tokens with stop-words
// removed.
func (a *Analyzer) Tokenize(text string) []Token {
	words := Split(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term, ok := a.QueryTerm(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

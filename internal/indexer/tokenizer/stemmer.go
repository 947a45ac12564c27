package tokenizer

import (
	"fmt"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"github.com/kljensen/snowball/english"
)

// Stemmer reduces a lower-cased word to its stem.
type Stemmer interface {
	Name() string
	Stem(word string) string
}

type porter struct{}

func (porter) Name() string { return "porter" }

// Stem applies the classic Porter algorithm, the one Sphinx uses for its
// English index.
func (porter) Stem(word string) string { return porterstemmer.StemString(word) }

type snowballEnglish struct{}

func (snowballEnglish) Name() string { return "english" }

func (snowballEnglish) Stem(word string) string { return english.Stem(word, true) }

type identity struct{}

func (identity) Name() string { return "none" }

func (identity) Stem(word string) string { return word }

// NewStemmer returns the stemmer registered under name. An empty name
// selects porter.
func NewStemmer(name string) (Stemmer, error) {
	switch name {
	case "", "porter":
		return porter{}, nil
	case "english":
		return snowballEnglish{}, nil
	case "none":
		return identity{}, nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q", name)
	}
}

// MustStemmer is NewStemmer for names known at compile time.
func MustStemmer(name string) Stemmer {
	s, err := NewStemmer(name)
	if err != nil {
		panic(err)
	}
	return s
}

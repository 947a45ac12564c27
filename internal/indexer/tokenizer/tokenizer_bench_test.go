package tokenizer

import (
	"strings"
	"testing"
)

var benchText = strings.Repeat("The coefficient of performance of a heat pump depends on the temperature lift. ", 64)

func BenchmarkIndexTokens(b *testing.B) {
	a := NewAnalyzer(MustStemmer("porter"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		a.IndexTokens(benchText)
	}
}

func BenchmarkQueryTokenize(b *testing.B) {
	a := NewAnalyzer(MustStemmer("porter"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		a.Tokenize("partload efficiency of the heat pump")
	}
}

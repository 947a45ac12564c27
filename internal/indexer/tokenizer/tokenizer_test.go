package tokenizer

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Heat Pump", []string{"heat", "pump"}},
		{"cop_carnot = 3.5", []string{"cop_carnot", "3", "5"}},
		{"Schönfeldt, m³", []string{"schönfeldt", "m³"}},
		{"  ", nil},
		{"oemof-solph", []string{"oemof", "solph"}},
	}
	for _, tt := range tests {
		got := Split(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitNormalizesNFC(t *testing.T) {
	decomposed := "scho\u0308nfeld"
	got := Split(decomposed)
	if len(got) != 1 || got[0] != "sch\u00f6nfeld" {
		t.Errorf("Split(decomposed) = %q, want [schönfeld]", got)
	}
}

func TestPorterStemmer(t *testing.T) {
	s := MustStemmer("porter")
	cases := map[string]string{
		"survey":      "survei",
		"entropy":     "entropi",
		"efficiency":  "effici",
		"environment": "environ",
		"minutes":     "minut",
		"analysis":    "analysi",
		"cop":         "cop",
		"us":          "us",
	}
	for in, want := range cases {
		if got := s.Stem(in); got != want {
			t.Errorf("porter.Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewStemmer(t *testing.T) {
	for _, name := range []string{"", "porter", "english", "none"} {
		if _, err := NewStemmer(name); err != nil {
			t.Errorf("NewStemmer(%q): %v", name, err)
		}
	}
	if _, err := NewStemmer("lancaster"); err == nil {
		t.Error("expected error for unknown stemmer")
	}
	if got := MustStemmer("none").Stem("minutes"); got != "minutes" {
		t.Errorf("identity stemmer changed word: %q", got)
	}
}

func TestIndexTermKeepsRawWordForStopStem(t *testing.T) {
	a := NewAnalyzer(MustStemmer("porter"))

	tests := []struct {
		word   string
		want   string
		wantOK bool
	}{
		{"Heating", "heat", true},
		{"For", "For", true},
		{"AND", "AND", true},
		{"for", "", false},
		{"the", "", false},
		{"x", "x", true},
	}
	for _, tt := range tests {
		got, ok := a.IndexTerm(tt.word)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("IndexTerm(%q) = (%q, %v), want (%q, %v)", tt.word, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestQueryTermDropsStopWords(t *testing.T) {
	a := NewAnalyzer(MustStemmer("porter"))
	if _, ok := a.QueryTerm("The"); ok {
		t.Error("stop-word should be dropped regardless of case")
	}
	if got, ok := a.QueryTerm("Minutes"); !ok || got != "minut" {
		t.Errorf("QueryTerm(Minutes) = (%q, %v)", got, ok)
	}
}

func TestTokenizePositions(t *testing.T) {
	a := NewAnalyzer(MustStemmer("porter"))
	tokens := a.Tokenize("the heat pump of the model")
	want := []Token{{"heat", 0}, {"pump", 1}, {"model", 2}}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("Tokenize = %v, want %v", tokens, want)
	}
}

func TestIndexTokens(t *testing.T) {
	a := NewAnalyzer(MustStemmer("porter"))
	tokens := a.IndexTokens("For the COP of a heat pump")
	var terms []string
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
	}
	want := []string{"For", "cop", "heat", "pump"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("IndexTokens terms = %v, want %v", terms, want)
	}
}

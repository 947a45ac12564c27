package format

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Guard refuses indexes whose envversion does not match what this reader
// understands. An index without a stemmer entry was built by Sphinx itself
// and therefore used porter.
type Guard struct {
	Required map[string]int
	Stemmer  string
}

func DefaultGuard() Guard {
	return Guard{
		Required: map[string]int{"sphinx": index.SphinxEnvVersion},
		Stemmer:  "porter",
	}
}

// Check returns an error wrapping ErrSchemaMismatch when env lacks a required
// component, records a different version, or names another stemmer.
func (g Guard) Check(env map[string]int) error {
	names := make([]string, 0, len(g.Required))
	for name := range g.Required {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		want := g.Required[name]
		got, ok := env[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrSchemaMismatch, 0, "component %q missing from envversion", name)
		}
		if got != want {
			return apperrors.Newf(apperrors.ErrSchemaMismatch, 0, "component %q: got version %d, want %d", name, got, want)
		}
	}

	if g.Stemmer == "" {
		return nil
	}
	built := "porter"
	for key := range env {
		if strings.HasPrefix(key, index.StemmerKeyPrefix) {
			built = strings.TrimPrefix(key, index.StemmerKeyPrefix)
			break
		}
	}
	if built != g.Stemmer {
		return apperrors.Newf(apperrors.ErrSchemaMismatch, 0, "index built with stemmer %q, reader uses %q", built, g.Stemmer)
	}
	return nil
}

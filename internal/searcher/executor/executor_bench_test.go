package executor

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

func BenchmarkExecute(b *testing.B) {
	e := New(fixture(b), ranker.DefaultScorer())
	ctx := context.Background()
	for _, q := range []string{"cop", "heat pump", "carnot_cop", "oemof solph -tespy"} {
		plan := parser.Parse(q, analyzer)
		b.Run(q, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Execute(ctx, plan, 20); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteParallel(b *testing.B) {
	e := New(fixture(b), ranker.DefaultScorer())
	plan := parser.Parse("heat pump", analyzer)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Execute(context.Background(), plan, 20); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

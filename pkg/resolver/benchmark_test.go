// ABOUTME: Performance benchmarks for dependency resolution
// ABOUTME: Measures closure computation over long and wide reference graphs

package resolver

import (
	"fmt"
	"testing"

	"github.com/nainya/docdeps/pkg/document"
)

func chainStore(n int) *document.Store {
	docs := make([]*document.Document, n)
	for i := 0; i < n; i++ {
		d := &document.Document{DocID: fmt.Sprintf("doc%06d", i)}
		if i+1 < n {
			d.References = document.References{document.Normative: {fmt.Sprintf("doc%06d", i+1)}}
		}
		docs[i] = d
	}
	return document.Build(docs)
}

func fanStore(n, fan int) *document.Store {
	docs := make([]*document.Document, n)
	for i := 0; i < n; i++ {
		refs := make([]string, 0, fan)
		for j := 1; j <= fan; j++ {
			refs = append(refs, fmt.Sprintf("doc%06d", (i*fan+j)%n))
		}
		docs[i] = &document.Document{
			DocID:      fmt.Sprintf("doc%06d", i),
			References: document.References{document.Normative: refs},
		}
	}
	return document.Build(docs)
}

func BenchmarkResolveChain(b *testing.B) {
	store := chainStore(100000)
	r := New(store)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := r.Resolve("doc000000", DefaultOptions())
		if err != nil {
			b.Fatal(err)
		}
		if result.Len() != 99999 {
			b.Fatalf("unexpected closure size %d", result.Len())
		}
	}
}

func BenchmarkResolveFanOut(b *testing.B) {
	store := fanStore(20000, 8)
	r := New(store)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Resolve("doc000000", DefaultOptions()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEntries(b *testing.B) {
	store := fanStore(20000, 4)
	result, err := Resolve(store, "doc000000", DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Entries(store, result); err != nil {
			b.Fatal(err)
		}
	}
}

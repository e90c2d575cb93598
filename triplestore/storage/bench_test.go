package storage

import (
	"fmt"
	"testing"

	"github.com/wbrown/janus-triplestore/triplestore"
)

func BenchmarkCommit(b *testing.B) {
	s, err := Open(InMemoryConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := s.CreateBaseLayer()
		for j := 0; j < 100; j++ {
			subject := fmt.Sprintf("e%d", i*100+j)
			if _, err := w.AddStringTriple(triplestore.NewValueTriple(subject, "n", fmt.Sprint(j))); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := w.Commit(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRestoreDeepLineage measures loading a long lineage with no cache
func BenchmarkRestoreDeepLineage(b *testing.B) {
	config := TestDataConfig{
		DatabaseName:     "deep",
		NumLayers:        200,
		EntitiesPerLayer: 5,
		UpdatesPerLayer:  2,
	}
	s, db, err := BuildTestDatabase(config)
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	head, err := db.Head()
	if err != nil {
		b.Fatal(err)
	}
	name := head.Name()
	s.cacheLayers = false

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Layer(name); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkContainsDeepLineage(b *testing.B) {
	config := TestDataConfig{
		DatabaseName:     "deep",
		NumLayers:        200,
		EntitiesPerLayer: 5,
		UpdatesPerLayer:  2,
	}
	s, db, err := BuildTestDatabase(config)
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	head, err := db.Head()
	if err != nil {
		b.Fatal(err)
	}
	// the oldest triple is only found at the root
	oldest, ok := head.IdTripleFor(triplestore.NewNodeTriple(TestEntity(0), "type", "person"))
	if !ok {
		b.Fatal("missing root triple")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !head.Contains(oldest) {
			b.Fatal("root triple not visible")
		}
	}
}

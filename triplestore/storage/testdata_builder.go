package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wbrown/janus-triplestore/triplestore"
)

// TestDataConfig specifies what kind of test database to build
type TestDataConfig struct {
	DatabaseName     string // Label to create
	NumLayers        int    // Number of layers in the head lineage
	EntitiesPerLayer int    // New entities introduced by each layer
	UpdatesPerLayer  int    // Existing entities whose age changes in each layer
	OutputPath       string // Where to store the database; empty means in memory
}

// DefaultTestDataConfig returns a small multi-layer dataset for profiling
// Size: 20 layers × 100 entities × 4 triples = 8,000 additions
func DefaultTestDataConfig() TestDataConfig {
	return TestDataConfig{
		DatabaseName:     "people",
		NumLayers:        20,
		EntitiesPerLayer: 100,
		UpdatesPerLayer:  10,
		OutputPath:       "testdata/people.db",
	}
}

// DeepTestDataConfig returns a long lineage of small layers, which stresses
// lineage walks and restore
func DeepTestDataConfig() TestDataConfig {
	return TestDataConfig{
		DatabaseName:     "people",
		NumLayers:        1000,
		EntitiesPerLayer: 5,
		UpdatesPerLayer:  2,
		OutputPath:       "testdata/people_deep.db",
	}
}

// LargeTestDataConfig returns a dataset for stress testing
func LargeTestDataConfig() TestDataConfig {
	return TestDataConfig{
		DatabaseName:     "people",
		NumLayers:        100,
		EntitiesPerLayer: 5000,
		UpdatesPerLayer:  500,
		OutputPath:       "testdata/people_large.db",
	}
}

// TestEntity returns the deterministic subject of entity i
func TestEntity(i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("entity-%d", i))).String()
}

// BuildTestDatabase creates a store holding one database whose head is the
// last of config.NumLayers layers. Every entity gets a type, a name, an age
// and a link to the previous entity; later layers replace some ages.
func BuildTestDatabase(config TestDataConfig) (*Store, *Database, error) {
	cfg := InMemoryConfig()
	if config.OutputPath != "" {
		// Remove existing database
		if err := os.RemoveAll(config.OutputPath); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to remove existing db: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory: %w", err)
		}
		cfg = DefaultConfig(config.OutputPath)
		cfg.SyncWrites = false
	}

	store, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Create(config.DatabaseName)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	if err := populate(store, db, config); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func populate(store *Store, db *Database, config TestDataConfig) error {
	ages := make(map[int]int)
	entities := 0

	for n := 0; n < config.NumLayers; n++ {
		head, err := db.Head()
		if err != nil {
			return err
		}
		b := store.CreateBaseLayer()
		if head != nil {
			b = head.OpenWrite()
		}

		for i := 0; i < config.EntitiesPerLayer; i++ {
			id := entities
			subject := TestEntity(id)
			triples := []triplestore.StringTriple{
				triplestore.NewNodeTriple(subject, "type", "person"),
				triplestore.NewValueTriple(subject, "name", fmt.Sprintf("Person %d", id)),
				triplestore.NewValueTriple(subject, "age", fmt.Sprint(20+id%50)),
			}
			if id > 0 {
				triples = append(triples, triplestore.NewNodeTriple(subject, "knows", TestEntity(id-1)))
			}
			for _, t := range triples {
				if _, err := b.AddStringTriple(t); err != nil {
					return err
				}
			}
			ages[id] = 20 + id%50
			entities++
		}

		// Birthdays for entities from earlier layers
		if n > 0 && config.EntitiesPerLayer > 0 {
			for i := 0; i < config.UpdatesPerLayer; i++ {
				id := (n*config.UpdatesPerLayer + i) % (n * config.EntitiesPerLayer)
				subject := TestEntity(id)
				if _, err := b.RemoveStringTriple(triplestore.NewValueTriple(subject, "age", fmt.Sprint(ages[id]))); err != nil {
					return err
				}
				ages[id]++
				if _, err := b.AddStringTriple(triplestore.NewValueTriple(subject, "age", fmt.Sprint(ages[id]))); err != nil {
					return err
				}
			}
		}

		l, err := b.Commit()
		if err != nil {
			return fmt.Errorf("failed to commit layer %d: %w", n, err)
		}
		ok, err := db.SetHead(l)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("head of %q moved while building layer %d", db.Name(), n)
		}
	}
	return nil
}

// TestDatabaseStats prints statistics about a test database
func TestDatabaseStats(db *Database) error {
	label, err := db.Label()
	if err != nil {
		return err
	}
	head, err := db.Head()
	if err != nil {
		return err
	}

	fmt.Printf("Database %q (version %d)\n", label.Name, label.Version)
	if head == nil {
		fmt.Println("  No head")
		return nil
	}

	additions, removals := 0, 0
	for l := head; l != nil; l = l.Parent() {
		additions += len(l.Additions())
		removals += len(l.Removals())
	}

	fmt.Printf("  Head: %s\n", head.Name())
	fmt.Printf("  Layers: %d\n", head.Depth()+1)
	fmt.Printf("  Terms: %d\n", head.MaxId())
	fmt.Printf("  Visible triples: %d\n", head.TripleCount())
	fmt.Printf("  Additions: %d, removals: %d\n", additions, removals)
	return nil
}

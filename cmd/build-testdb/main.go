package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

func main() {
	configType := flag.String("config", "default", "Config type: default, deep, or large")
	output := flag.String("output", "", "Override the output directory")
	flag.Parse()

	var config storage.TestDataConfig
	switch *configType {
	case "default":
		config = storage.DefaultTestDataConfig()
	case "deep":
		config = storage.DeepTestDataConfig()
	case "large":
		config = storage.LargeTestDataConfig()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config type: %s (use 'default', 'deep', or 'large')\n", *configType)
		os.Exit(1)
	}
	if *output != "" {
		config.OutputPath = *output
	}

	fmt.Printf("Building test database: %s\n", config.OutputPath)
	fmt.Printf("  Layers: %d\n", config.NumLayers)
	fmt.Printf("  Entities/layer: %d\n", config.EntitiesPerLayer)
	fmt.Printf("  Updates/layer: %d\n", config.UpdatesPerLayer)
	fmt.Println()

	start := time.Now()
	store, db, err := storage.BuildTestDatabase(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := storage.TestDatabaseStats(db); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Done in %v! Inspect it with:\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   triplestore --store %s log %s\n", config.OutputPath, config.DatabaseName)
}

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockedby/loyalty-miniapp/internal/mockbackend"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No seed files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("❌ Failed to read %s: %v\n", path, err)
			failed = true
			continue
		}

		var temp interface{}
		if err := yaml.Unmarshal(data, &temp); err != nil {
			fmt.Printf("❌ Invalid YAML in %s: %v\n", path, err)
			failed = true
			continue
		}

		seed, err := mockbackend.ParseSeed(data)
		if err != nil {
			fmt.Printf("❌ Invalid seed %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d categories, %d products)\n", path, len(seed.Categories), len(seed.Products))
	}

	if failed {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"karaoke-score/config"
	"karaoke-score/utils"
)

// Compares each recording with itself; every one should score 100.
func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("Usage: test_self_match <audio-file>...")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	engine := cfg.NewEngine(utils.GetLogger())
	ctx := context.Background()

	fmt.Println("=== Testing Self-Match ===")
	fmt.Println("A recording compared with itself should score 100 with full coverage")
	fmt.Println()

	failures := 0
	for _, testFile := range flag.Args() {
		fmt.Printf("Testing: %s\n", filepath.Base(testFile))

		data, err := os.ReadFile(testFile)
		if err != nil {
			log.Printf("  ERROR: %v\n", err)
			failures++
			continue
		}

		result, err := engine.Compare(ctx, data, data, cfg.Compare)
		if err != nil {
			log.Printf("  ERROR: %v\n", err)
			failures++
			continue
		}

		score := result.Score
		if score.OverallScore == 100 && score.VoicedCoverage == 1 {
			fmt.Printf("  ✅ score %.1f, coverage %.0f%%\n", score.OverallScore, score.VoicedCoverage*100)
		} else {
			fmt.Printf("  ❌ score %.2f, coverage %.1f%%\n", score.OverallScore, score.VoicedCoverage*100)
			failures++
		}
		fmt.Printf("  alignment: %d pairs, cost %.2f, banded=%v\n\n",
			len(result.Alignment.Pairs), result.Alignment.Cost, result.Alignment.Banded)
	}

	if failures > 0 {
		fmt.Printf("%d of %d recordings failed\n", failures, flag.NArg())
		os.Exit(1)
	}
}

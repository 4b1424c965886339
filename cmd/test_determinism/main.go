package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"karaoke-score/config"
	"karaoke-score/models"
	"karaoke-score/pitch"
)

// Tracks the same recording several times and checks every run yields the
// same contour.
func main() {
	runs := flag.Int("runs", 5, "number of tracking runs")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: test_determinism [-runs N] <audio-file>")
	}
	testFile := flag.Arg(0)
	log.Printf("Testing determinism with: %s\n", testFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	signal, err := cfg.NewDecoder().DecodeFile(testFile)
	if err != nil {
		log.Fatalf("Failed to decode %s: %v", testFile, err)
	}

	trackerCfg := cfg.PitchConfig()
	var contours []*models.Contour
	for i := 0; i < *runs; i++ {
		contour, err := pitch.Track(signal, trackerCfg)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		contours = append(contours, contour)
		log.Printf("Run %d: %d frames, %d voiced", i+1, len(contour.Frames), contour.VoicedCount())
	}

	fmt.Println("\n=== Determinism Check ===")
	identical := true
	maxDiff := 0.0
	for i := 1; i < len(contours); i++ {
		if len(contours[i].Frames) != len(contours[0].Frames) {
			identical = false
			fmt.Printf("❌ Run %d has %d frames, run 1 has %d\n", i+1, len(contours[i].Frames), len(contours[0].Frames))
			continue
		}
		for j, frame := range contours[i].Frames {
			base := contours[0].Frames[j]
			if frame.Voiced() != base.Voiced() {
				identical = false
				fmt.Printf("❌ Frame %d voicing differs between run 1 and run %d\n", j, i+1)
				continue
			}
			if !frame.Voiced() {
				continue
			}
			diff := math.Abs(*frame.Frequency - *base.Frequency)
			if diff > maxDiff {
				maxDiff = diff
			}
			if diff != 0 {
				identical = false
				fmt.Printf("❌ Frame %d differs between run 1 and run %d: %.12f vs %.12f Hz\n",
					j, i+1, *base.Frequency, *frame.Frequency)
			}
		}
	}

	if identical {
		fmt.Println("✅ All runs produced IDENTICAL contours")
		return
	}
	fmt.Printf("❌ Pitch tracking is NON-DETERMINISTIC (max diff: %e Hz)\n", maxDiff)
	os.Exit(1)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"karaoke-score/apperrors"
	"karaoke-score/config"
	"karaoke-score/service"
	"karaoke-score/utils"
)

type BatchConfig struct {
	ReferencePath string
	PerformDir    string
	ReportPath    string
	Workers       int
}

type Entry struct {
	File           string  `json:"file"`
	OverallScore   float64 `json:"overallScore"`
	VoicedCoverage float64 `json:"voicedCoverage"`
	ErrorKind      string  `json:"errorKind,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type Report struct {
	Timestamp      time.Time     `json:"timestamp"`
	Reference      string        `json:"reference"`
	Entries        []Entry       `json:"entries"`
	Failed         int           `json:"failed"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// Scores every recording in a directory against one reference.
func main() {
	batch := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Batch Scoring ===")
	log.Printf("Reference: %s\n", batch.ReferencePath)
	log.Printf("Performances: %s\n", batch.PerformDir)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: Failed to load config: %v", err)
	}
	workers := cfg.Queue.Workers
	if batch.Workers > 0 {
		workers = batch.Workers
	}

	reference, err := os.ReadFile(batch.ReferencePath)
	if err != nil {
		log.Fatalf("ERROR: Failed to read reference: %v", err)
	}
	files, err := collectAudioFiles(batch.PerformDir)
	if err != nil {
		log.Fatalf("ERROR: Failed to read performance directory: %v", err)
	}
	log.Printf("Found %d recordings, scoring with %d workers\n", len(files), workers)

	start := time.Now()
	queue := service.NewScoringQueue(cfg.NewEngine(utils.GetLogger()), workers, len(files), utils.GetLogger())
	defer queue.Close()

	ctx := context.Background()
	replies := make([]<-chan service.ScoreResponse, len(files))
	entries := make([]Entry, len(files))
	for i, file := range files {
		entries[i].File = filepath.Base(file)
		audio, err := os.ReadFile(file)
		if err != nil {
			entries[i].Error = err.Error()
			continue
		}
		replies[i], err = queue.Submit(ctx, service.ScoreRequest{
			Reference:   reference,
			Performance: audio,
			Options:     cfg.Compare,
		})
		if err != nil {
			entries[i].Error = err.Error()
		}
	}

	report := Report{Timestamp: start, Reference: batch.ReferencePath}
	for i, reply := range replies {
		if reply == nil {
			report.Failed++
			continue
		}
		resp := <-reply
		if resp.Err != nil {
			entries[i].ErrorKind = string(apperrors.KindOf(resp.Err))
			entries[i].Error = resp.Err.Error()
			report.Failed++
			continue
		}
		entries[i].OverallScore = resp.Result.Score.OverallScore
		entries[i].VoicedCoverage = resp.Result.Score.VoicedCoverage
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OverallScore > entries[j].OverallScore
	})
	report.Entries = entries
	report.ProcessingTime = time.Since(start)

	printReport(report)

	if batch.ReportPath != "" {
		if err := saveReport(report, batch.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			log.Printf("Report saved to: %s\n", batch.ReportPath)
		}
	}
}

func parseFlags() BatchConfig {
	batch := BatchConfig{}

	flag.StringVar(&batch.ReferencePath, "ref", "", "Reference recording")
	flag.StringVar(&batch.PerformDir, "dir", "performances", "Directory of performance recordings")
	flag.StringVar(&batch.ReportPath, "report", "batch_report.json", "Path to save the report (empty to skip)")
	flag.IntVar(&batch.Workers, "workers", 0, "Scoring workers (0 uses the configured count)")

	flag.Parse()

	if batch.ReferencePath == "" {
		log.Fatal("Usage: batch_score -ref <reference> [-dir <performances>] [-report <path>]")
	}
	return batch
}

func collectAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".wav", ".mp3", ".m4a", ".ogg", ".flac", ".webm":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func printReport(report Report) {
	log.Println()
	log.Println(strings.Repeat("=", 60))
	for i, e := range report.Entries {
		if e.Error != "" {
			log.Printf("%3d. %-32s FAILED %s\n", i+1, truncate(e.File, 32), e.Error)
			continue
		}
		log.Printf("%3d. %-32s %6.1f  (coverage %3.0f%%)\n", i+1, truncate(e.File, 32), e.OverallScore, e.VoicedCoverage*100)
	}
	log.Println(strings.Repeat("=", 60))
	log.Printf("%d scored, %d failed in %v\n", len(report.Entries)-report.Failed, report.Failed, report.ProcessingTime.Round(time.Millisecond))
}

func saveReport(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

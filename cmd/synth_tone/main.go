package main

import (
	"flag"
	"log"
	"math"
	"strconv"
	"strings"

	"karaoke-score/wav"
)

// Writes a test melody as a mono WAV. Each note is "<hz>:<seconds>"; a
// frequency of 0 is a rest.
func main() {
	out := flag.String("out", "tone.wav", "output WAV path")
	notes := flag.String("notes", "440:2", "comma separated <hz>:<seconds> notes")
	sampleRate := flag.Int("rate", wav.DefaultSampleRate, "sample rate in Hz")
	amplitude := flag.Float64("amp", 0.5, "peak amplitude (0-1)")
	delay := flag.Float64("delay", 0, "seconds of silence before the first note")
	flag.Parse()

	samples := make([]float64, int(*delay*float64(*sampleRate)))
	phase := 0.0
	for _, note := range strings.Split(*notes, ",") {
		hz, seconds, err := parseNote(note)
		if err != nil {
			log.Fatalf("Invalid note %q: %v", note, err)
		}
		n := int(seconds * float64(*sampleRate))
		for i := 0; i < n; i++ {
			if hz <= 0 {
				samples = append(samples, 0)
				continue
			}
			samples = append(samples, *amplitude*math.Sin(phase))
			phase += 2 * math.Pi * hz / float64(*sampleRate)
		}
	}

	if err := wav.WriteWavFile(*out, samples, *sampleRate); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	log.Printf("Wrote %s (%.2fs at %d Hz)", *out, float64(len(samples))/float64(*sampleRate), *sampleRate)
}

func parseNote(s string) (float64, float64, error) {
	hzText, secText, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, strconv.ErrSyntax
	}
	hz, err := strconv.ParseFloat(hzText, 64)
	if err != nil {
		return 0, 0, err
	}
	seconds, err := strconv.ParseFloat(secText, 64)
	if err != nil {
		return 0, 0, err
	}
	return hz, seconds, nil
}

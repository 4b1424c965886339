package models

import (
	"math"
	"testing"
)

func TestPitchClassDistanceOctaveInvariant(t *testing.T) {
	t.Parallel()

	if d := PitchClassDistance(440, 880); d != 0 {
		t.Fatalf("expected 0 for an octave, got %v", d)
	}
	if d := PitchClassDistance(440, 220); d != 0 {
		t.Fatalf("expected 0 for an octave below, got %v", d)
	}
	// A4 against E5 is 7 semitones up, which folds to 5.
	if d := PitchClassDistance(440, 659.2551); math.Abs(d-5) > 1e-3 {
		t.Fatalf("expected ~5 semitones, got %v", d)
	}
	if d := PitchClassDistance(440, math.NaN()); !math.IsNaN(d) {
		t.Fatalf("expected NaN for invalid input, got %v", d)
	}
}

func TestMidiNote(t *testing.T) {
	t.Parallel()

	if got := MidiNote(440); got != 69 {
		t.Fatalf("expected 69, got %v", got)
	}
	if got := MidiNote(261.6256); math.Abs(got-60) > 1e-3 {
		t.Fatalf("expected ~60, got %v", got)
	}
}

func TestNewContourMarksInvalidFrequenciesUnvoiced(t *testing.T) {
	t.Parallel()

	c := NewContour(22050, 512, []float64{440, 0, math.NaN(), -3, math.Inf(1)}, nil)
	if len(c.Frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(c.Frames))
	}
	if !c.Frames[0].Voiced() || c.Frames[0].Confidence != 1 {
		t.Fatalf("expected first frame voiced with confidence 1, got %+v", c.Frames[0])
	}
	for i := 1; i < 5; i++ {
		if c.Frames[i].Voiced() || c.Frames[i].Frequency != nil {
			t.Fatalf("expected frame %d unvoiced, got %+v", i, c.Frames[i])
		}
	}
	if c.VoicedCount() != 1 {
		t.Fatalf("expected 1 voiced frame, got %d", c.VoicedCount())
	}
	step := 512.0 / 22050.0
	if math.Abs(c.Frames[3].Timestamp-3*step) > 1e-12 {
		t.Fatalf("expected timestamp %v, got %v", 3*step, c.Frames[3].Timestamp)
	}
}

func TestChallengeCloneIsDeep(t *testing.T) {
	t.Parallel()

	c := NewChallenge("p1", "alice", "song", "Song")
	c.Player1.Score = &ScoreResult{OverallScore: 80, SegmentScores: []SegmentScore{{LocalScore: 80}}}

	clone := c.Clone()
	clone.Player1.Score.OverallScore = 10
	clone.Player1.Score.SegmentScores[0].LocalScore = 10

	if c.Player1.Score.OverallScore != 80 || c.Player1.Score.SegmentScores[0].LocalScore != 80 {
		t.Fatalf("expected original score untouched, got %+v", c.Player1.Score)
	}
	if c.Player("p1") == nil || c.Player("nobody") != nil {
		t.Fatalf("unexpected player lookup result")
	}
}

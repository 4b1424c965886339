package models

import "math"

const (
	// ConcertA is the reference pitch for semitone and MIDI conversion.
	ConcertA         = 440.0
	semitonesPerOct  = 12.0
	concertAMidiNote = 69.0
)

// ValidFrequency reports whether hz is a finite positive frequency.
func ValidFrequency(hz float64) bool {
	return hz > 0 && !math.IsNaN(hz) && !math.IsInf(hz, 0)
}

// Semitones converts hz to semitones relative to A4.
func Semitones(hz float64) float64 {
	return semitonesPerOct * math.Log2(hz/ConcertA)
}

// MidiNote converts hz to a fractional MIDI note number.
func MidiNote(hz float64) float64 {
	return concertAMidiNote + Semitones(hz)
}

// PitchClassDistance is the octave-invariant distance between two frequencies
// in semitones, in [0, 6]. It returns NaN if either frequency is invalid.
func PitchClassDistance(a, b float64) float64 {
	if !ValidFrequency(a) || !ValidFrequency(b) {
		return math.NaN()
	}
	d := math.Abs(semitonesPerOct * math.Log2(a/b))
	d = math.Mod(d, semitonesPerOct)
	if d > semitonesPerOct/2 {
		d = semitonesPerOct - d
	}
	return d
}

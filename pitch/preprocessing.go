package pitch

import (
	"math"
	"sort"
)

// PreprocessingConfig selects the filters run ahead of pitch estimation.
// Both filters are second-order Butterworth sections.
type PreprocessingConfig struct {
	EnableHighPass bool
	HighPassCutoff float64 // Hz, capped at fmin/2 when tracking
	EnableLowPass  bool
	LowPassCutoff  float64 // Hz
}

func DefaultPreprocessingConfig() PreprocessingConfig {
	return PreprocessingConfig{
		EnableHighPass: true,
		HighPassCutoff: 40,
		LowPassCutoff:  2000,
	}
}

// Preprocess returns a filtered copy of samples. Non-finite samples become 0.
func Preprocess(samples []float64, sampleRate int, cfg PreprocessingConfig) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			out[i] = s
		}
	}

	if cfg.EnableHighPass {
		if bq, ok := newBiquad(highPass, cfg.HighPassCutoff, sampleRate); ok {
			bq.apply(out)
		}
	}
	if cfg.EnableLowPass {
		if bq, ok := newBiquad(lowPass, cfg.LowPassCutoff, sampleRate); ok {
			bq.apply(out)
		}
	}
	return out
}

// HighPassFilter returns samples with content below cutoffHz attenuated at
// 12 dB per octave. Out-of-range cutoffs return the input unchanged.
func HighPassFilter(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	return filtered(highPass, samples, sampleRate, cutoffHz)
}

// LowPassFilter is the low-pass counterpart of HighPassFilter.
func LowPassFilter(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	return filtered(lowPass, samples, sampleRate, cutoffHz)
}

func filtered(kind filterKind, samples []float64, sampleRate int, cutoffHz float64) []float64 {
	bq, ok := newBiquad(kind, cutoffHz, sampleRate)
	if !ok {
		return samples
	}
	out := append([]float64(nil), samples...)
	bq.apply(out)
	return out
}

type filterKind int

const (
	highPass filterKind = iota
	lowPass
)

// biquad holds normalized direct form I coefficients (a0 = 1).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func newBiquad(kind filterKind, cutoffHz float64, sampleRate int) (biquad, bool) {
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return biquad{}, false
	}

	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	alpha := sinW / math.Sqrt2 // Q = 1/sqrt(2)
	a0 := 1 + alpha

	var bq biquad
	switch kind {
	case highPass:
		bq.b0 = (1 + cosW) / 2
		bq.b1 = -(1 + cosW)
		bq.b2 = (1 + cosW) / 2
	case lowPass:
		bq.b0 = (1 - cosW) / 2
		bq.b1 = 1 - cosW
		bq.b2 = (1 - cosW) / 2
	}
	bq.a1 = -2 * cosW
	bq.a2 = 1 - alpha

	bq.b0 /= a0
	bq.b1 /= a0
	bq.b2 /= a0
	bq.a1 /= a0
	bq.a2 /= a0
	return bq, true
}

// apply filters x in place from a zero state.
func (f biquad) apply(x []float64) {
	var x1, x2, y1, y2 float64
	for i, in := range x {
		y := f.b0*in + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		x2, x1 = x1, in
		y2, y1 = y1, y
		x[i] = y
	}
}

const snrFrame = 256

// EstimateSNR estimates the signal-to-noise ratio in dB. The noise floor is
// the mean power of the quietest tenth of short frames; the signal power is
// the mean over the whole recording.
func EstimateSNR(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var powers []float64
	for start := 0; start < len(samples); start += snrFrame {
		end := min(start+snrFrame, len(samples))
		r := rootMeanSquare(samples[start:end])
		powers = append(powers, r*r)
	}
	sort.Float64s(powers)

	quiet := max(1, len(powers)/10)
	var noise float64
	for _, p := range powers[:quiet] {
		noise += p
	}
	noise /= float64(quiet)

	total := rootMeanSquare(samples)
	signal := total * total
	switch {
	case signal == 0:
		return 0
	case noise == 0:
		return 100
	}
	return 10 * math.Log10(signal/noise)
}

func rootMeanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

package wav

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

// antiAliasTaps is the length of the low-pass kernel run before downsampling.
const antiAliasTaps = 63

// Downmix averages interleaved channels into a mono signal.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Resample converts samples from one rate to another using linear interpolation.
// Downsampling first removes content above 0.45 of the target rate.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}
	if toRate < fromRate {
		samples = convolve(samples, lowPassKernel(0.45*float64(toRate)/float64(fromRate), antiAliasTaps))
	}

	ratio := float64(fromRate) / float64(toRate)
	newLength := int(float64(len(samples)) / ratio)
	resampled := make([]float64, newLength)

	for i := 0; i < newLength; i++ {
		pos := float64(i) * ratio
		index := int(pos)
		frac := pos - float64(index)

		switch {
		case index+1 < len(samples):
			resampled[i] = samples[index]*(1-frac) + samples[index+1]*frac
		case index < len(samples):
			resampled[i] = samples[index]
		default:
			resampled[i] = samples[len(samples)-1]
		}
	}

	return resampled
}

// lowPassKernel builds a Hamming-windowed sinc with unit DC gain. cutoff is in
// cycles per sample.
func lowPassKernel(cutoff float64, taps int) []float64 {
	h := window.Hamming(taps)
	mid := float64(taps-1) / 2
	var sum float64
	for k := range h {
		x := 2 * cutoff * (float64(k) - mid)
		sinc := 1.0
		if x != 0 {
			sinc = math.Sin(math.Pi*x) / (math.Pi * x)
		}
		h[k] *= 2 * cutoff * sinc
		sum += h[k]
	}
	for k := range h {
		h[k] /= sum
	}
	return h
}

// convolve applies the odd-length kernel centred on each sample, treating
// samples outside the signal as zero.
func convolve(samples, kernel []float64) []float64 {
	half := len(kernel) / 2
	out := make([]float64, len(samples))
	for i := range samples {
		var acc float64
		for k, w := range kernel {
			j := i + k - half
			if j < 0 || j >= len(samples) {
				continue
			}
			acc += samples[j] * w
		}
		out[i] = acc
	}
	return out
}

package pitch

import (
	"math"
	"testing"
)

func TestHighPassRemovesDCOffset(t *testing.T) {
	t.Parallel()

	samples := make([]float64, testRate)
	for i := range samples {
		samples[i] = 0.5
	}
	filtered := HighPassFilter(samples, testRate, 40)
	if tail := math.Abs(filtered[len(filtered)-1]); tail > 1e-3 {
		t.Fatalf("expected DC to decay, got %v", tail)
	}
}

func TestPreprocessDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	samples := []float64{0.1, 0.2, 0.3, 0.4}
	cfg := DefaultPreprocessingConfig()
	cfg.EnableLowPass = true
	_ = Preprocess(samples, testRate, cfg)
	if samples[0] != 0.1 || samples[3] != 0.4 {
		t.Fatalf("expected input untouched, got %v", samples)
	}
}

func TestEstimateSNR(t *testing.T) {
	t.Parallel()

	// The quiet lead spans more whole frames than the quietest tenth.
	samples := make([]float64, 10240)
	for i := 2048; i < len(samples); i++ {
		samples[i] = 0.5 * math.Sin(float64(i)/5)
	}
	for i := 0; i < 2048; i++ {
		samples[i] = 0.001
	}
	if snr := EstimateSNR(samples); snr < 30 {
		t.Fatalf("expected high SNR, got %.1f dB", snr)
	}
	if snr := EstimateSNR(nil); snr != 0 {
		t.Fatalf("expected 0 for empty input, got %v", snr)
	}
}

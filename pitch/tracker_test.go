package pitch

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"karaoke-score/apperrors"
	"karaoke-score/models"
)

const testRate = 22050

func sineSignal(freq, seconds, amp float64) *models.Signal {
	n := int(seconds * testRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return &models.Signal{Samples: samples, SampleRate: testRate}
}

func TestTrackSineFrequencies(t *testing.T) {
	t.Parallel()

	for _, freq := range []float64{110, 220, 440, 650} {
		contour, err := Track(sineSignal(freq, 1, 0.5), DefaultConfig())
		if err != nil {
			t.Fatalf("%.0f Hz: unexpected error: %v", freq, err)
		}
		if len(contour.Frames) == 0 {
			t.Fatalf("%.0f Hz: expected frames", freq)
		}
		for _, f := range contour.Frames {
			if !f.Voiced() {
				t.Fatalf("%.0f Hz: expected frame %d voiced, got %+v", freq, f.Index, f)
			}
			if math.Abs(*f.Frequency-freq) > 0.01*freq {
				t.Fatalf("%.0f Hz: frame %d estimated %.2f Hz", freq, f.Index, *f.Frequency)
			}
			if f.Confidence < 0.9 {
				t.Fatalf("%.0f Hz: expected high confidence, got %.3f", freq, f.Confidence)
			}
		}
	}
}

func TestTrackFrameLayout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	contour, err := Track(sineSignal(440, 1, 0.5), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	window := WindowSize(testRate, cfg)
	if window != 1024 {
		t.Fatalf("expected 1024 sample window, got %d", window)
	}
	if want := FrameCount(testRate, window, cfg.HopSize); len(contour.Frames) != want {
		t.Fatalf("expected %d frames, got %d", want, len(contour.Frames))
	}

	step := float64(cfg.HopSize) / testRate
	for i, f := range contour.Frames {
		if f.Index != i {
			t.Fatalf("expected index %d, got %d", i, f.Index)
		}
		if math.Abs(f.Timestamp-float64(i)*step) > 1e-12 {
			t.Fatalf("frame %d: expected timestamp %v, got %v", i, float64(i)*step, f.Timestamp)
		}
		if i > 0 && f.Timestamp <= contour.Frames[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing at frame %d", i)
		}
	}
}

func TestTrackSilenceIsUnvoiced(t *testing.T) {
	t.Parallel()

	signal := &models.Signal{Samples: make([]float64, testRate), SampleRate: testRate}
	contour, err := Track(signal, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contour.Frames) == 0 {
		t.Fatalf("expected frames for one second of silence")
	}
	if contour.VoicedCount() != 0 {
		t.Fatalf("expected no voiced frames, got %d", contour.VoicedCount())
	}
	for _, f := range contour.Frames {
		if f.Frequency != nil || f.Confidence != 0 {
			t.Fatalf("expected empty frame, got %+v", f)
		}
	}
}

func TestTrackNoiseIsMostlyUnvoiced(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	samples := make([]float64, 2*testRate)
	for i := range samples {
		samples[i] = 0.3 * (2*rng.Float64() - 1)
	}

	contour, err := Track(&models.Signal{Samples: samples, SampleRate: testRate}, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if voiced := contour.VoicedCount(); voiced*10 > len(contour.Frames) {
		t.Fatalf("expected at most 10%% voiced frames in noise, got %d of %d", voiced, len(contour.Frames))
	}
}

func TestTrackIsDeterministic(t *testing.T) {
	t.Parallel()

	signal := sineSignal(330, 0.75, 0.4)
	for i := 2000; i < 4000; i++ {
		signal.Samples[i] = 0
	}

	first, err := Track(signal, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 3; run++ {
		again, err := Track(signal, DefaultConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced a different contour", run)
		}
	}
}

func TestTrackShortSignalYieldsNoFrames(t *testing.T) {
	t.Parallel()

	contour, err := Track(sineSignal(440, 0.02, 0.5), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contour.Frames) != 0 {
		t.Fatalf("expected zero frames for a signal shorter than one window, got %d", len(contour.Frames))
	}
}

func TestTrackRejectsInvalidSignals(t *testing.T) {
	t.Parallel()

	if _, err := Track(&models.Signal{SampleRate: testRate}, DefaultConfig()); !errors.Is(err, apperrors.ErrInvalidSignal) {
		t.Fatalf("expected invalid signal for empty samples, got %v", err)
	}
	if _, err := Track(&models.Signal{Samples: []float64{0, 1}, SampleRate: 0}, DefaultConfig()); !errors.Is(err, apperrors.ErrInvalidSignal) {
		t.Fatalf("expected invalid signal for zero rate, got %v", err)
	}
	if _, err := Track(nil, DefaultConfig()); !errors.Is(err, apperrors.ErrInvalidSignal) {
		t.Fatalf("expected invalid signal for nil, got %v", err)
	}
}

func TestTrackRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Fmax = 20000
	if _, err := Track(sineSignal(440, 0.5, 0.5), cfg); !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options above Nyquist, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.HopSize = 0
	if _, err := Track(sineSignal(440, 0.5, 0.5), cfg); !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options for zero hop, got %v", err)
	}
}

func TestTrackIgnoresNaNFrames(t *testing.T) {
	t.Parallel()

	signal := sineSignal(440, 0.5, 0.5)
	signal.Samples[3000] = math.NaN()

	contour, err := Track(signal, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range contour.Frames {
		if f.Frequency != nil && math.IsNaN(*f.Frequency) {
			t.Fatalf("frame %d carries a NaN frequency", f.Index)
		}
	}
	if voiced := contour.VoicedCount(); voiced*2 < len(contour.Frames) {
		t.Fatalf("expected a single NaN sample not to silence the contour, got %d of %d voiced", voiced, len(contour.Frames))
	}
}

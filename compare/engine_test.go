package compare

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"

	"karaoke-score/align"
	"karaoke-score/apperrors"
	"karaoke-score/models"
	"karaoke-score/scoring"
	"karaoke-score/wav"
)

const testRate = 22050

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func tone(freq, seconds float64) []float64 {
	out := make([]float64, int(seconds*testRate))
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func encode(t *testing.T, samples []float64) []byte {
	t.Helper()

	data, err := wav.Encode(samples, testRate)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return data
}

func TestCompareIdenticalRecordings(t *testing.T) {
	t.Parallel()

	audio := encode(t, append(tone(330, 1), tone(440, 1)...))
	res, err := newTestEngine().Compare(context.Background(), audio, audio, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score.OverallScore != 100 {
		t.Fatalf("expected 100 for identical recordings, got %v", res.Score.OverallScore)
	}
	if res.Score.VoicedCoverage != 1 {
		t.Fatalf("expected full coverage, got %v", res.Score.VoicedCoverage)
	}
	if res.ID == "" {
		t.Fatalf("expected a comparison id")
	}
	if res.Image != nil {
		t.Fatalf("did not expect an image without asking for one")
	}
}

func TestCompareLateStartAndOctave(t *testing.T) {
	t.Parallel()

	ref := encode(t, tone(330, 2))
	rest := make([]float64, testRate/3)

	for _, tc := range []struct {
		name string
		freq float64
	}{
		{"same pitch", 330},
		{"octave up", 660},
	} {
		late := encode(t, append(append([]float64{}, rest...), tone(tc.freq, 2)...))
		res, err := newTestEngine().Compare(context.Background(), ref, late, DefaultOptions())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if res.Score.OverallScore < 95 {
			t.Fatalf("%s: expected a late performance to score highly, got %v", tc.name, res.Score.OverallScore)
		}
		if res.Score.VoicedCoverage < 0.95 {
			t.Fatalf("%s: expected the leading rest to be skipped, got coverage %v", tc.name, res.Score.VoicedCoverage)
		}
	}
}

func TestCompareWrongNote(t *testing.T) {
	t.Parallel()

	ref := encode(t, tone(440, 1.5))
	perf := encode(t, tone(440*math.Pow(2, 2.0/12), 1.5))

	res, err := newTestEngine().Compare(context.Background(), ref, perf, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score.OverallScore > 5 {
		t.Fatalf("expected a whole tone off to score near 0, got %v", res.Score.OverallScore)
	}
	if res.Score.VoicedCoverage != 1 {
		t.Fatalf("expected coverage 1 when every frame is sung, got %v", res.Score.VoicedCoverage)
	}
}

func TestCompareVisualization(t *testing.T) {
	t.Parallel()

	audio := encode(t, tone(440, 1))
	opts := DefaultOptions()
	opts.WantVisualization = true

	res, err := newTestEngine().Compare(context.Background(), audio, audio, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(res.Image, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("expected png image bytes")
	}
}

func TestCompareRendererFailureKeepsScore(t *testing.T) {
	t.Parallel()

	audio := encode(t, tone(440, 1))
	opts := DefaultOptions()
	opts.WantVisualization = true

	engine := newTestEngine(WithRenderer(func(_, _ *models.Contour, _ *models.Alignment) ([]byte, error) {
		return nil, errors.New("no canvas")
	}))
	res, err := engine.Compare(context.Background(), audio, audio, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Image != nil || res.Score.OverallScore != 100 {
		t.Fatalf("expected score without image, got %+v", res)
	}
}

func TestCompareDurationExceeded(t *testing.T) {
	t.Parallel()

	audio := encode(t, tone(440, 2))
	opts := DefaultOptions()
	opts.MaxDurationSeconds = 1

	_, err := newTestEngine().Compare(context.Background(), audio, encode(t, tone(440, 0.5)), opts)
	if !errors.Is(err, apperrors.ErrDurationExceeded) {
		t.Fatalf("expected duration exceeded, got %v", err)
	}
}

func TestCompareForwardsDurationLimitToDecoder(t *testing.T) {
	t.Parallel()

	var limit atomic.Uint64
	signal := &models.Signal{Samples: tone(440, 1), SampleRate: testRate}
	engine := newTestEngine(WithDecoder(func(_ context.Context, data []byte, maxSeconds float64) (*models.Signal, error) {
		limit.Store(math.Float64bits(maxSeconds))
		if maxSeconds < 2 {
			return nil, apperrors.DurationExceeded("%s is longer than %.1fs", data, maxSeconds)
		}
		return signal, nil
	}))

	opts := DefaultOptions()
	opts.MaxDurationSeconds = 1.5
	_, err := engine.Compare(context.Background(), []byte("ref"), []byte("perf"), opts)
	if !errors.Is(err, apperrors.ErrDurationExceeded) {
		t.Fatalf("expected duration exceeded from the decoder, got %v", err)
	}
	if got := math.Float64frombits(limit.Load()); got != 1.5 {
		t.Fatalf("expected decoder to receive limit 1.5, got %v", got)
	}
}

func TestCompareEstimatesSNROnlyForDebugLogging(t *testing.T) {
	t.Parallel()

	audio := encode(t, tone(440, 1))
	tests := []struct {
		level   slog.Level
		wantSNR bool
	}{
		{level: slog.LevelDebug, wantSNR: true},
		{level: slog.LevelInfo, wantSNR: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.level.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level}))
			if _, err := NewEngine(WithLogger(logger)).Compare(context.Background(), audio, audio, DefaultOptions()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := bytes.Contains(buf.Bytes(), []byte("snrDb=")); got != tt.wantSNR {
				t.Fatalf("expected snrDb logged=%v, got %v in %q", tt.wantSNR, got, buf.String())
			}
		})
	}
}

func TestCompareShortAudioIsEmptyContour(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine().Compare(context.Background(), encode(t, tone(440, 1)), encode(t, tone(440, 0.02)), DefaultOptions())
	if !errors.Is(err, apperrors.ErrEmptyContour) {
		t.Fatalf("expected empty contour, got %v", err)
	}
}

func TestCompareDecodeFailure(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(WithDecoder(func(context.Context, []byte, float64) (*models.Signal, error) {
		return nil, io.ErrUnexpectedEOF
	}))
	_, err := engine.Compare(context.Background(), []byte("a"), []byte("b"), DefaultOptions())
	if apperrors.KindOf(err) != apperrors.KindDecodeFailed {
		t.Fatalf("expected decode_failed, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected the decoder error to be preserved, got %v", err)
	}
}

func TestCompareEmptyPayloadIsInvalidSignal(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine().Compare(context.Background(), nil, encode(t, tone(440, 1)), DefaultOptions())
	if !errors.Is(err, apperrors.ErrInvalidSignal) {
		t.Fatalf("expected invalid signal, got %v", err)
	}
}

func TestCompareInvalidOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Fmax = opts.Fmin
	_, err := newTestEngine().CompareSignals(context.Background(), &models.Signal{}, &models.Signal{}, opts)
	if !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options, got %v", err)
	}
}

func TestCompareRejectsDegenerateScoringPolicy(t *testing.T) {
	t.Parallel()

	signal := &models.Signal{Samples: tone(440, 1), SampleRate: testRate}

	engine := newTestEngine(WithScoringConfig(scoring.Config{MaxDeviation: 0, SegmentSeconds: 1}))
	if _, err := engine.CompareSignals(context.Background(), signal, signal, DefaultOptions()); !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options for a zero deviation cap, got %v", err)
	}

	cfg := align.DefaultConfig()
	cfg.GapPenalty = -5
	engine = newTestEngine(WithAlignerConfig(cfg))
	if _, err := engine.CompareSignals(context.Background(), signal, signal, DefaultOptions()); !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options for a negative gap penalty, got %v", err)
	}
}

func TestCompareSignalsUsesNoDecoder(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	engine := newTestEngine(WithDecoder(func(context.Context, []byte, float64) (*models.Signal, error) {
		calls.Add(1)
		return nil, errors.New("unused")
	}))

	signal := &models.Signal{Samples: tone(262, 1), SampleRate: testRate}
	res, err := engine.CompareSignals(context.Background(), signal, signal, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected decoder to be skipped, got %d calls", calls.Load())
	}
	if res.Score.OverallScore != 100 {
		t.Fatalf("expected 100, got %v", res.Score.OverallScore)
	}
}

func TestCompareCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	audio := encode(t, tone(440, 1))
	if _, err := newTestEngine().Compare(ctx, audio, audio, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	bad := DefaultOptions()
	bad.HopSize = 0
	if err := bad.Validate(); !errors.Is(err, apperrors.ErrInvalidOptions) {
		t.Fatalf("expected invalid options, got %v", err)
	}
}

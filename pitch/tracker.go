package pitch

// Fundamental frequency tracking
//
// The signal is cut into windows advanced by the hop size. Each window runs
// the YIN estimator:
//
// 1. Difference function d(τ); the cross term is computed with an FFT
// 2. Cumulative mean normalized difference d'(τ)
// 3. First lag under the absolute threshold, followed down to its local minimum
// 4. Parabolic interpolation around the chosen lag
//
// Confidence is 1 - d'(τ). Windows quieter than SilenceRMS are never
// estimated, so silence cannot produce a frequency.

import (
	"math"
	"math/cmplx"

	"karaoke-score/apperrors"
	"karaoke-score/models"

	"github.com/mjibson/go-dsp/fft"
)

// Config controls pitch tracking.
type Config struct {
	Fmin             float64
	Fmax             float64
	HopSize          int
	VoicingThreshold float64 // frames below this confidence are unvoiced
	YinThreshold     float64 // absolute threshold on d'(τ)
	SilenceRMS       float64 // energy gate
	WindowPeriods    float64 // window length in periods of Fmin
	Preprocessing    PreprocessingConfig
}

func DefaultConfig() Config {
	return Config{
		Fmin:             80,
		Fmax:             700,
		HopSize:          512,
		VoicingThreshold: 0.3,
		YinThreshold:     0.15,
		SilenceRMS:       0.003,
		WindowPeriods:    3,
		Preprocessing:    DefaultPreprocessingConfig(),
	}
}

// Validate checks c against audio at sampleRate.
func (c Config) Validate(sampleRate int) error {
	switch {
	case c.Fmin <= 0:
		return apperrors.InvalidOptions("fmin must be positive, got %v", c.Fmin)
	case c.Fmax <= c.Fmin:
		return apperrors.InvalidOptions("fmax (%v) must exceed fmin (%v)", c.Fmax, c.Fmin)
	case c.Fmax >= float64(sampleRate)/2:
		return apperrors.InvalidOptions("fmax (%v) must be below the Nyquist frequency of %d Hz audio", c.Fmax, sampleRate)
	case c.HopSize <= 0:
		return apperrors.InvalidOptions("hop size must be positive, got %d", c.HopSize)
	case c.VoicingThreshold < 0 || c.VoicingThreshold > 1:
		return apperrors.InvalidOptions("voicing threshold must be within [0, 1], got %v", c.VoicingThreshold)
	case c.YinThreshold <= 0 || c.YinThreshold > 1:
		return apperrors.InvalidOptions("yin threshold must be within (0, 1], got %v", c.YinThreshold)
	case c.SilenceRMS < 0:
		return apperrors.InvalidOptions("silence rms must not be negative, got %v", c.SilenceRMS)
	case c.WindowPeriods < 2:
		return apperrors.InvalidOptions("window must cover at least 2 periods of fmin, got %v", c.WindowPeriods)
	}
	return nil
}

// Track computes the F0 contour of signal. The result depends only on the
// samples and cfg.
func Track(signal *models.Signal, cfg Config) (*models.Contour, error) {
	if signal == nil || len(signal.Samples) == 0 {
		return nil, apperrors.InvalidSignal("signal has no samples")
	}
	if signal.SampleRate <= 0 {
		return nil, apperrors.InvalidSignal("sample rate must be positive, got %d", signal.SampleRate)
	}
	if err := cfg.Validate(signal.SampleRate); err != nil {
		return nil, err
	}

	prep := cfg.Preprocessing
	prep.HighPassCutoff = math.Min(prep.HighPassCutoff, cfg.Fmin/2)
	samples := Preprocess(signal.Samples, signal.SampleRate, prep)

	est := newEstimator(signal.SampleRate, cfg)
	n := FrameCount(len(samples), est.window, cfg.HopSize)

	freqs := make([]float64, n)
	confs := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * cfg.HopSize
		freqs[i], confs[i] = est.estimate(samples[start : start+est.window])
	}

	return models.NewContour(signal.SampleRate, cfg.HopSize, freqs, confs), nil
}

// WindowSize is the analysis window length used for the given rate and config.
func WindowSize(sampleRate int, cfg Config) int {
	maxLag := int(math.Ceil(float64(sampleRate) / cfg.Fmin))
	window := nextPowerOfTwo(int(math.Ceil(cfg.WindowPeriods * float64(maxLag))))
	if window < 2*maxLag {
		window = nextPowerOfTwo(2 * maxLag)
	}
	return window
}

// FrameCount is the number of whole windows that fit in length samples.
func FrameCount(length, window, hop int) int {
	if length < window || hop <= 0 {
		return 0
	}
	return 1 + (length-window)/hop
}

type estimator struct {
	cfg         Config
	sampleRate  float64
	window      int
	integration int
	minLag      int
	maxLag      int

	a, b   []float64
	prefix []float64
	diff   []float64
	cmnd   []float64
}

func newEstimator(sampleRate int, cfg Config) *estimator {
	sr := float64(sampleRate)
	maxLag := int(math.Ceil(sr / cfg.Fmin))
	minLag := int(math.Floor(sr / cfg.Fmax))
	if minLag < 2 {
		minLag = 2
	}
	window := WindowSize(sampleRate, cfg)
	integration := window - maxLag
	fftSize := nextPowerOfTwo(window + integration)

	return &estimator{
		cfg:         cfg,
		sampleRate:  sr,
		window:      window,
		integration: integration,
		minLag:      minLag,
		maxLag:      maxLag,
		a:           make([]float64, fftSize),
		b:           make([]float64, fftSize),
		prefix:      make([]float64, window+1),
		diff:        make([]float64, maxLag+1),
		cmnd:        make([]float64, maxLag+1),
	}
}

// estimate returns the frequency (0 when unvoiced) and confidence of frame.
func (e *estimator) estimate(frame []float64) (float64, float64) {
	rms := rootMeanSquare(frame)
	if math.IsNaN(rms) || math.IsInf(rms, 0) || rms < e.cfg.SilenceRMS {
		return 0, 0
	}

	e.difference(frame)
	e.normalize()

	tau := e.pickLag()
	confidence := 1 - e.cmnd[tau]
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < e.cfg.VoicingThreshold {
		return 0, confidence
	}

	hz := e.sampleRate / e.refine(tau)
	if !models.ValidFrequency(hz) {
		return 0, 0
	}
	return math.Max(e.cfg.Fmin, math.Min(e.cfg.Fmax, hz)), confidence
}

// difference fills d(τ) = Σ (x[j] - x[j+τ])² over the integration window,
// expanded as e(0) + e(τ) - 2r(τ).
func (e *estimator) difference(frame []float64) {
	for i := range e.a {
		e.a[i] = 0
		e.b[i] = 0
	}
	copy(e.a, frame[:e.integration])
	copy(e.b, frame)

	left := fft.FFTReal(e.a)
	right := fft.FFTReal(e.b)
	for k := range left {
		left[k] = cmplx.Conj(left[k]) * right[k]
	}
	corr := fft.IFFT(left)

	e.prefix[0] = 0
	for j, x := range frame {
		e.prefix[j+1] = e.prefix[j] + x*x
	}

	energy0 := e.prefix[e.integration]
	for tau := 0; tau <= e.maxLag; tau++ {
		energyTau := e.prefix[tau+e.integration] - e.prefix[tau]
		d := energy0 + energyTau - 2*real(corr[tau])
		if d < 0 {
			d = 0
		}
		e.diff[tau] = d
	}
}

func (e *estimator) normalize() {
	e.cmnd[0] = 1
	var running float64
	for tau := 1; tau <= e.maxLag; tau++ {
		running += e.diff[tau]
		if running <= 0 {
			e.cmnd[tau] = 1
			continue
		}
		e.cmnd[tau] = e.diff[tau] * float64(tau) / running
	}
}

func (e *estimator) pickLag() int {
	for tau := e.minLag; tau <= e.maxLag; tau++ {
		if e.cmnd[tau] < e.cfg.YinThreshold {
			for tau+1 <= e.maxLag && e.cmnd[tau+1] < e.cmnd[tau] {
				tau++
			}
			return tau
		}
	}

	best := e.minLag
	for tau := e.minLag + 1; tau <= e.maxLag; tau++ {
		if e.cmnd[tau] < e.cmnd[best] {
			best = tau
		}
	}
	return best
}

func (e *estimator) refine(tau int) float64 {
	if tau <= 1 || tau >= e.maxLag {
		return float64(tau)
	}
	a, b, c := e.cmnd[tau-1], e.cmnd[tau], e.cmnd[tau+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(tau)
	}
	shift := 0.5 * (a - c) / denom
	if math.Abs(shift) > 1 {
		return float64(tau)
	}
	return float64(tau) + shift
}

// Package compare wires decoding, pitch tracking, alignment, scoring and
// optional rendering into a single comparison of two recordings.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"karaoke-score/align"
	"karaoke-score/apperrors"
	"karaoke-score/models"
	"karaoke-score/pitch"
	"karaoke-score/scoring"
	"karaoke-score/utils"
	"karaoke-score/visualize"
	"karaoke-score/wav"

	"github.com/mdobak/go-xerrors"
	"golang.org/x/sync/errgroup"
)

// DecodeFunc turns raw audio bytes into a mono signal. Implementations should
// return a duration_exceeded error as soon as the audio is known to run past
// maxSeconds; the engine checks the decoded duration again either way.
type DecodeFunc func(ctx context.Context, data []byte, maxSeconds float64) (*models.Signal, error)

// RenderFunc draws both contours and their alignment as an image.
type RenderFunc func(reference, performance *models.Contour, alignment *models.Alignment) ([]byte, error)

// Result is the outcome of one comparison.
type Result struct {
	ID          string             `json:"id"`
	Score       models.ScoreResult `json:"score"`
	Image       []byte             `json:"image,omitempty"`
	Reference   *models.Contour    `json:"-"`
	Performance *models.Contour    `json:"-"`
	Alignment   *models.Alignment  `json:"-"`
}

// Engine is immutable once built and safe for concurrent use.
type Engine struct {
	decode  DecodeFunc
	render  RenderFunc
	tracker pitch.Config
	aligner align.Config
	scorer  scoring.Config
	logger  *slog.Logger
}

type Option func(*Engine)

func WithDecoder(fn DecodeFunc) Option {
	return func(e *Engine) { e.decode = fn }
}

func WithRenderer(fn RenderFunc) Option {
	return func(e *Engine) { e.render = fn }
}

// WithTrackerConfig sets tracker policy. Fmin, Fmax and HopSize are always
// taken from the per-request Options.
func WithTrackerConfig(cfg pitch.Config) Option {
	return func(e *Engine) { e.tracker = cfg }
}

func WithAlignerConfig(cfg align.Config) Option {
	return func(e *Engine) { e.aligner = cfg }
}

func WithScoringConfig(cfg scoring.Config) Option {
	return func(e *Engine) { e.scorer = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		decode:  wav.NewDecoder(wav.DefaultSampleRate).DecodeLimited,
		render:  visualize.Render,
		tracker: pitch.DefaultConfig(),
		aligner: align.DefaultConfig(),
		scorer:  scoring.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = utils.GetLogger()
	}
	return e
}

type loader func(ctx context.Context) (*models.Signal, error)

// Compare decodes both recordings and scores the performance against the
// reference.
func (e *Engine) Compare(ctx context.Context, referenceAudio, performanceAudio []byte, opts Options) (*Result, error) {
	return e.run(ctx, opts,
		e.decoding(referenceAudio, opts.MaxDurationSeconds),
		e.decoding(performanceAudio, opts.MaxDurationSeconds),
	)
}

// CompareSignals scores already decoded signals.
func (e *Engine) CompareSignals(ctx context.Context, reference, performance *models.Signal, opts Options) (*Result, error) {
	return e.run(ctx, opts, given(reference), given(performance))
}

func (e *Engine) decoding(data []byte, maxSeconds float64) loader {
	return func(ctx context.Context) (*models.Signal, error) {
		if e.decode == nil {
			return nil, apperrors.New(apperrors.KindDecodeFailed, "no decoder configured")
		}
		return e.decode(ctx, data, maxSeconds)
	}
}

func given(signal *models.Signal) loader {
	return func(context.Context) (*models.Signal, error) { return signal, nil }
}

func (e *Engine) run(ctx context.Context, opts Options, loadRef, loadPerf loader) (*Result, error) {
	id := utils.GenerateUniqueID()
	start := time.Now()
	logger := e.logger.With(slog.String("comparisonId", id))

	result, err := e.execute(ctx, logger, opts, loadRef, loadPerf)
	if err != nil {
		logger.ErrorContext(ctx, "comparison failed",
			slog.String("kind", string(apperrors.KindOf(err))),
			slog.Any("error", xerrors.New(err)),
		)
		return nil, err
	}

	result.ID = id
	logger.InfoContext(ctx, "comparison complete",
		slog.Float64("score", result.Score.OverallScore),
		slog.Float64("voicedCoverage", result.Score.VoicedCoverage),
		slog.Int("referenceFrames", len(result.Reference.Frames)),
		slog.Int("performanceFrames", len(result.Performance.Frames)),
		slog.Bool("banded", result.Alignment.Banded),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, logger *slog.Logger, opts Options, loadRef, loadPerf loader) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := e.aligner.Validate(); err != nil {
		return nil, fmt.Errorf("aligner: %w", err)
	}
	if err := e.scorer.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}

	var reference, performance *models.Contour
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := e.analyze(gctx, logger, "reference", loadRef, opts)
		reference = c
		return err
	})
	g.Go(func() error {
		c, err := e.analyze(gctx, logger, "performance", loadPerf, opts)
		performance = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alignment, err := align.Align(reference, performance, e.aligner)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Score:       scoring.Score(reference, performance, alignment, e.scorer),
		Reference:   reference,
		Performance: performance,
		Alignment:   alignment,
	}

	if opts.WantVisualization && e.render != nil {
		img, err := e.render(reference, performance, alignment)
		if err != nil {
			logger.WarnContext(ctx, "visualization failed", slog.Any("error", xerrors.New(err)))
		} else {
			result.Image = img
		}
	}

	return result, nil
}

// analyze loads one signal, enforces the duration limit and tracks its pitch.
func (e *Engine) analyze(ctx context.Context, logger *slog.Logger, role string, load loader, opts Options) (*models.Contour, error) {
	signal, err := load(ctx)
	if err != nil {
		if apperrors.KindOf(err) == "" {
			return nil, apperrors.Wrap(apperrors.KindDecodeFailed, err, "decoding %s audio", role)
		}
		return nil, fmt.Errorf("%s audio: %w", role, err)
	}
	if signal == nil {
		return nil, apperrors.InvalidSignal("%s signal is missing", role)
	}
	if d := signal.Duration(); d > opts.MaxDurationSeconds {
		return nil, apperrors.DurationExceeded("%s audio is %.1fs, limit is %.1fs", role, d, opts.MaxDurationSeconds)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := e.tracker
	cfg.Fmin, cfg.Fmax, cfg.HopSize = opts.Fmin, opts.Fmax, opts.HopSize

	contour, err := pitch.Track(signal, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s audio: %w", role, err)
	}
	if len(contour.Frames) == 0 {
		return nil, apperrors.EmptyContour("%s audio (%.2fs) is shorter than one analysis window", role, signal.Duration())
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.DebugContext(ctx, "pitch tracked",
			slog.String("role", role),
			slog.Float64("durationSeconds", signal.Duration()),
			slog.Float64("snrDb", pitch.EstimateSNR(signal.Samples)),
			slog.Int("frames", len(contour.Frames)),
			slog.Int("voicedFrames", contour.VoicedCount()),
		)
	}
	return contour, nil
}

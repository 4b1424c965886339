package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"karaoke-score/align"
	"karaoke-score/compare"
	"karaoke-score/models"
	"karaoke-score/pitch"
	"karaoke-score/scoring"
	"karaoke-score/visualize"
	"karaoke-score/wav"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "KARAOKE"

type Config struct {
	Compare compare.Options `mapstructure:"compare" yaml:"compare"`
	Tracker TrackerConfig   `mapstructure:"tracker" yaml:"tracker"`
	Aligner AlignerConfig   `mapstructure:"aligner" yaml:"aligner"`
	Scoring ScoringConfig   `mapstructure:"scoring" yaml:"scoring"`
	Decoder DecoderConfig   `mapstructure:"decoder" yaml:"decoder"`
	Render  RenderConfig    `mapstructure:"render" yaml:"render"`
	Queue   QueueConfig     `mapstructure:"queue" yaml:"queue"`
}

type TrackerConfig struct {
	VoicingThreshold float64 `mapstructure:"voicing_threshold" yaml:"voicing_threshold"`
	YinThreshold     float64 `mapstructure:"yin_threshold" yaml:"yin_threshold"`
	SilenceRMS       float64 `mapstructure:"silence_rms" yaml:"silence_rms"`
	WindowPeriods    float64 `mapstructure:"window_periods" yaml:"window_periods"`
	HighPassHz       float64 `mapstructure:"high_pass_hz" yaml:"high_pass_hz"` // 0 disables
	LowPassHz        float64 `mapstructure:"low_pass_hz" yaml:"low_pass_hz"`   // 0 disables
}

type AlignerConfig struct {
	GapPenalty        float64 `mapstructure:"gap_penalty" yaml:"gap_penalty"`
	RestPenalty       float64 `mapstructure:"rest_penalty" yaml:"rest_penalty"`
	MaxDistance       float64 `mapstructure:"max_distance" yaml:"max_distance"`
	ExactFrameCeiling int     `mapstructure:"exact_frame_ceiling" yaml:"exact_frame_ceiling"`
	BandFraction      float64 `mapstructure:"band_fraction" yaml:"band_fraction"`
	MinBandWidth      int     `mapstructure:"min_band_width" yaml:"min_band_width"`
}

type ScoringConfig struct {
	MaxDeviationSemitones float64 `mapstructure:"max_deviation_semitones" yaml:"max_deviation_semitones"`
	SegmentSeconds        float64 `mapstructure:"segment_seconds" yaml:"segment_seconds"`
}

type DecoderConfig struct {
	SampleRate int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	FFmpegPath string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RenderConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

type QueueConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
	Depth   int `mapstructure:"depth" yaml:"depth"`
}

func setDefaults(v *viper.Viper) {
	opts := compare.DefaultOptions()
	v.SetDefault("compare.fmin", opts.Fmin)
	v.SetDefault("compare.fmax", opts.Fmax)
	v.SetDefault("compare.hop_size", opts.HopSize)
	v.SetDefault("compare.want_visualization", opts.WantVisualization)
	v.SetDefault("compare.max_duration_seconds", opts.MaxDurationSeconds)

	tracker := pitch.DefaultConfig()
	v.SetDefault("tracker.voicing_threshold", tracker.VoicingThreshold)
	v.SetDefault("tracker.yin_threshold", tracker.YinThreshold)
	v.SetDefault("tracker.silence_rms", tracker.SilenceRMS)
	v.SetDefault("tracker.window_periods", tracker.WindowPeriods)
	v.SetDefault("tracker.high_pass_hz", tracker.Preprocessing.HighPassCutoff)
	v.SetDefault("tracker.low_pass_hz", 0.0)

	aligner := align.DefaultConfig()
	v.SetDefault("aligner.gap_penalty", aligner.GapPenalty)
	v.SetDefault("aligner.rest_penalty", aligner.RestPenalty)
	v.SetDefault("aligner.max_distance", aligner.MaxDistance)
	v.SetDefault("aligner.exact_frame_ceiling", aligner.ExactFrameCeiling)
	v.SetDefault("aligner.band_fraction", aligner.BandFraction)
	v.SetDefault("aligner.min_band_width", aligner.MinBandWidth)

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.max_deviation_semitones", sc.MaxDeviation)
	v.SetDefault("scoring.segment_seconds", sc.SegmentSeconds)

	dec := wav.NewDecoder(wav.DefaultSampleRate)
	v.SetDefault("decoder.sample_rate", dec.SampleRate)
	v.SetDefault("decoder.ffmpeg_path", dec.FFmpegPath)
	v.SetDefault("decoder.timeout", dec.Timeout)

	render := visualize.DefaultOptions()
	v.SetDefault("render.width", render.Width)
	v.SetDefault("render.height", render.Height)

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.depth", 100)
}

// Load reads config.yaml from the given directories (default "." and
// "./config"), then applies KARAOKE_* environment overrides such as
// KARAOKE_COMPARE_FMIN. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads an explicit config file, with the same env overrides as Load.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Compare.Validate(); err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if c.Decoder.SampleRate <= 0 {
		return fmt.Errorf("decoder: sample rate must be positive, got %d", c.Decoder.SampleRate)
	}
	if c.Compare.Fmax >= float64(c.Decoder.SampleRate)/2 {
		return fmt.Errorf("compare: fmax %v is above the Nyquist frequency of %d Hz audio", c.Compare.Fmax, c.Decoder.SampleRate)
	}
	if c.Tracker.HighPassHz < 0 || c.Tracker.LowPassHz < 0 {
		return fmt.Errorf("tracker: filter cutoffs must not be negative, got %v/%v", c.Tracker.HighPassHz, c.Tracker.LowPassHz)
	}
	if err := c.PitchConfig().Validate(c.Decoder.SampleRate); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if err := c.AlignConfig().Validate(); err != nil {
		return fmt.Errorf("aligner: %w", err)
	}
	if err := c.ScoringConfig().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Queue.Workers <= 0 || c.Queue.Depth < 0 {
		return fmt.Errorf("queue: need at least one worker and a non-negative depth, got %d/%d", c.Queue.Workers, c.Queue.Depth)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) PitchConfig() pitch.Config {
	cfg := pitch.DefaultConfig()
	cfg.Fmin = c.Compare.Fmin
	cfg.Fmax = c.Compare.Fmax
	cfg.HopSize = c.Compare.HopSize
	cfg.VoicingThreshold = c.Tracker.VoicingThreshold
	cfg.YinThreshold = c.Tracker.YinThreshold
	cfg.SilenceRMS = c.Tracker.SilenceRMS
	cfg.WindowPeriods = c.Tracker.WindowPeriods
	cfg.Preprocessing.EnableHighPass = c.Tracker.HighPassHz > 0
	cfg.Preprocessing.HighPassCutoff = c.Tracker.HighPassHz
	cfg.Preprocessing.EnableLowPass = c.Tracker.LowPassHz > 0
	cfg.Preprocessing.LowPassCutoff = c.Tracker.LowPassHz
	return cfg
}

func (c *Config) AlignConfig() align.Config {
	return align.Config{
		GapPenalty:        c.Aligner.GapPenalty,
		RestPenalty:       c.Aligner.RestPenalty,
		MaxDistance:       c.Aligner.MaxDistance,
		ExactFrameCeiling: c.Aligner.ExactFrameCeiling,
		BandFraction:      c.Aligner.BandFraction,
		MinBandWidth:      c.Aligner.MinBandWidth,
	}
}

func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		MaxDeviation:   c.Scoring.MaxDeviationSemitones,
		SegmentSeconds: c.Scoring.SegmentSeconds,
	}
}

func (c *Config) NewDecoder() *wav.Decoder {
	dec := wav.NewDecoder(c.Decoder.SampleRate)
	if c.Decoder.FFmpegPath != "" {
		dec.FFmpegPath = c.Decoder.FFmpegPath
	}
	if c.Decoder.Timeout > 0 {
		dec.Timeout = c.Decoder.Timeout
	}
	return dec
}

// NewEngine builds a comparison engine from the configuration.
func (c *Config) NewEngine(logger *slog.Logger) *compare.Engine {
	renderOpts := visualize.DefaultOptions()
	renderOpts.Width = c.Render.Width
	renderOpts.Height = c.Render.Height

	return compare.NewEngine(
		compare.WithDecoder(c.NewDecoder().DecodeLimited),
		compare.WithRenderer(func(ref, perf *models.Contour, al *models.Alignment) ([]byte, error) {
			return visualize.RenderWithOptions(ref, perf, al, renderOpts)
		}),
		compare.WithTrackerConfig(c.PitchConfig()),
		compare.WithAlignerConfig(c.AlignConfig()),
		compare.WithScoringConfig(c.ScoringConfig()),
		compare.WithLogger(logger),
	)
}

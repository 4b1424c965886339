package compare

import "karaoke-score/apperrors"

// Options are the per-request knobs of a comparison.
type Options struct {
	Fmin               float64 `json:"fmin" yaml:"fmin" mapstructure:"fmin"`
	Fmax               float64 `json:"fmax" yaml:"fmax" mapstructure:"fmax"`
	HopSize            int     `json:"hopSize" yaml:"hop_size" mapstructure:"hop_size"`
	WantVisualization  bool    `json:"wantVisualization" yaml:"want_visualization" mapstructure:"want_visualization"`
	MaxDurationSeconds float64 `json:"maxDurationSeconds" yaml:"max_duration_seconds" mapstructure:"max_duration_seconds"`
}

func DefaultOptions() Options {
	return Options{
		Fmin:               80,
		Fmax:               700,
		HopSize:            512,
		WantVisualization:  false,
		MaxDurationSeconds: 600,
	}
}

func (o Options) Validate() error {
	switch {
	case o.Fmin <= 0:
		return apperrors.InvalidOptions("fmin must be positive, got %v", o.Fmin)
	case o.Fmax <= o.Fmin:
		return apperrors.InvalidOptions("fmax (%v) must exceed fmin (%v)", o.Fmax, o.Fmin)
	case o.HopSize <= 0:
		return apperrors.InvalidOptions("hop size must be positive, got %d", o.HopSize)
	case o.MaxDurationSeconds <= 0:
		return apperrors.InvalidOptions("max duration must be positive, got %v", o.MaxDurationSeconds)
	}
	return nil
}

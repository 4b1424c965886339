package models

import "math"

// Signal is mono PCM audio normalized to [-1, 1].
type Signal struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sampleRate"`
}

// Duration returns the signal length in seconds.
func (s *Signal) Duration() float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Frame is one analysis frame of an F0 contour. A nil Frequency means the
// frame is unvoiced or silent.
type Frame struct {
	Index      int      `json:"index"`
	Timestamp  float64  `json:"timestamp"`
	Frequency  *float64 `json:"frequency"`
	Confidence float64  `json:"confidence"`
}

// Voiced reports whether the frame carries a usable frequency.
func (f Frame) Voiced() bool {
	return f.Frequency != nil && ValidFrequency(*f.Frequency)
}

// Contour is an ordered sequence of frames sharing one hop duration.
type Contour struct {
	SampleRate int     `json:"sampleRate"`
	HopSize    int     `json:"hopSize"`
	Frames     []Frame `json:"frames"`
}

// HopDuration is the time between consecutive frames in seconds.
func (c *Contour) HopDuration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(c.HopSize) / float64(c.SampleRate)
}

// Duration covers every frame including the last hop.
func (c *Contour) Duration() float64 {
	if c == nil {
		return 0
	}
	return float64(len(c.Frames)) * c.HopDuration()
}

func (c *Contour) VoicedCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, f := range c.Frames {
		if f.Voiced() {
			n++
		}
	}
	return n
}

// NewContour builds a contour from per-frame frequencies. Zero, negative or
// non-finite frequencies become unvoiced frames. confidences may be nil, in
// which case voiced frames get confidence 1.
func NewContour(sampleRate, hopSize int, frequencies, confidences []float64) *Contour {
	c := &Contour{
		SampleRate: sampleRate,
		HopSize:    hopSize,
		Frames:     make([]Frame, len(frequencies)),
	}
	hop := c.HopDuration()
	for i, hz := range frequencies {
		frame := Frame{Index: i, Timestamp: float64(i) * hop}
		if ValidFrequency(hz) {
			frame.Frequency = Hz(hz)
			frame.Confidence = 1
		}
		if confidences != nil && i < len(confidences) {
			frame.Confidence = clamp01(confidences[i])
		}
		c.Frames[i] = frame
	}
	return c
}

// Hz returns a pointer to v, for building voiced frames.
func Hz(v float64) *float64 {
	return &v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package visualize draws a reference contour and the time-warped
// performance contour on a MIDI note axis and encodes the plot as PNG.
package visualize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"karaoke-score/models"
)

type Options struct {
	Width   int
	Height  int
	Padding int
	DotSize int
}

func DefaultOptions() Options {
	return Options{Width: 1200, Height: 400, Padding: 24, DotSize: 3}
}

var (
	background     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	octaveLine     = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	semitoneLine   = color.RGBA{R: 238, G: 238, B: 238, A: 255}
	referenceColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	perfColor      = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Render plots reference and performance with the default options.
func Render(reference, performance *models.Contour, alignment *models.Alignment) ([]byte, error) {
	return RenderWithOptions(reference, performance, alignment, DefaultOptions())
}

// RenderWithOptions plots the reference in blue and the performance in red.
// Performance frames are placed at the time of the reference frame they are
// aligned to; without an alignment they use their own timestamps.
func RenderWithOptions(reference, performance *models.Contour, alignment *models.Alignment, opts Options) ([]byte, error) {
	if reference == nil || performance == nil {
		return nil, errors.New("visualize: both contours are required")
	}
	if opts.Width <= 2*opts.Padding || opts.Height <= 2*opts.Padding {
		return nil, fmt.Errorf("visualize: canvas %dx%d too small for padding %d", opts.Width, opts.Height, opts.Padding)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	lo, hi := noteRange(reference, performance)
	duration := math.Max(reference.Duration(), performance.Duration())
	if duration <= 0 {
		duration = 1
	}
	p := plot{img: img, opts: opts, lowNote: lo, highNote: hi, duration: duration}

	p.grid()

	for _, f := range reference.Frames {
		if f.Voiced() {
			p.dot(f.Timestamp, models.MidiNote(*f.Frequency), referenceColor)
		}
	}

	if alignment != nil {
		for _, pair := range alignment.Pairs {
			if pair.Reference < 0 || pair.Reference >= len(reference.Frames) ||
				pair.Performance < 0 || pair.Performance >= len(performance.Frames) {
				continue
			}
			f := performance.Frames[pair.Performance]
			if f.Voiced() {
				p.dot(reference.Frames[pair.Reference].Timestamp, models.MidiNote(*f.Frequency), perfColor)
			}
		}
	} else {
		for _, f := range performance.Frames {
			if f.Voiced() {
				p.dot(f.Timestamp, models.MidiNote(*f.Frequency), perfColor)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// noteRange returns whole MIDI notes bounding every voiced frame with a
// two semitone margin. A C3 to C5 range is used when nothing is voiced.
func noteRange(contours ...*models.Contour) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range contours {
		for _, f := range c.Frames {
			if !f.Voiced() {
				continue
			}
			n := models.MidiNote(*f.Frequency)
			lo = math.Min(lo, n)
			hi = math.Max(hi, n)
		}
	}
	if math.IsInf(lo, 0) {
		return 48, 72
	}
	return math.Floor(lo) - 2, math.Ceil(hi) + 2
}

type plot struct {
	img      *image.RGBA
	opts     Options
	lowNote  float64
	highNote float64
	duration float64
}

func (p plot) x(seconds float64) int {
	inner := float64(p.opts.Width - 2*p.opts.Padding)
	return p.opts.Padding + int(math.Round(seconds/p.duration*inner))
}

func (p plot) y(note float64) int {
	inner := float64(p.opts.Height - 2*p.opts.Padding)
	frac := (note - p.lowNote) / (p.highNote - p.lowNote)
	return p.opts.Height - p.opts.Padding - int(math.Round(frac*inner))
}

func (p plot) grid() {
	for note := math.Ceil(p.lowNote); note <= p.highNote; note++ {
		c := semitoneLine
		if int(note)%12 == 0 {
			c = octaveLine
		}
		y := p.y(note)
		for x := p.opts.Padding; x < p.opts.Width-p.opts.Padding; x++ {
			p.img.SetRGBA(x, y, c)
		}
	}
}

func (p plot) dot(seconds, note float64, c color.RGBA) {
	cx, cy := p.x(seconds), p.y(note)
	r := p.opts.DotSize / 2
	rect := image.Rect(cx-r, cy-r, cx+r+1, cy+r+1).Intersect(p.img.Bounds())
	draw.Draw(p.img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

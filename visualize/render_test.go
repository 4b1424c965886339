package visualize

import (
	"bytes"
	"image/png"
	"testing"

	"karaoke-score/models"
)

func TestRenderProducesPNG(t *testing.T) {
	t.Parallel()

	ref := models.NewContour(22050, 512, []float64{440, 440, 0, 494, 523}, nil)
	perf := models.NewContour(22050, 512, []float64{0, 0, 440, 0, 494, 520}, nil)
	al := &models.Alignment{Pairs: []models.Pair{{Reference: 0, Performance: 0}, {Reference: 0, Performance: 1}, {Reference: 1, Performance: 2}, {Reference: 2, Performance: 3}, {Reference: 3, Performance: 4}, {Reference: 4, Performance: 5}}}

	data, err := Render(ref, perf, al)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected a decodable png, got %v", err)
	}
	opts := DefaultOptions()
	if b := img.Bounds(); b.Dx() != opts.Width || b.Dy() != opts.Height {
		t.Fatalf("expected %dx%d image, got %dx%d", opts.Width, opts.Height, b.Dx(), b.Dy())
	}

	p := plot{opts: opts, duration: perf.Duration()}
	p.lowNote, p.highNote = noteRange(ref, perf)
	r, g, b, _ := img.At(p.x(0), p.y(69)).RGBA()
	if r>>8 != uint32(referenceColor.R) || g>>8 != uint32(referenceColor.G) || b>>8 != uint32(referenceColor.B) {
		t.Fatalf("expected reference dot at A4, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestRenderSilentContours(t *testing.T) {
	t.Parallel()

	silent := models.NewContour(22050, 512, make([]float64, 10), nil)
	if _, err := Render(silent, silent, nil); err != nil {
		t.Fatalf("expected silent contours to render, got %v", err)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	t.Parallel()

	c := models.NewContour(22050, 512, []float64{440}, nil)
	if _, err := Render(nil, c, nil); err == nil {
		t.Fatalf("expected error for missing reference")
	}
	if _, err := RenderWithOptions(c, c, nil, Options{Width: 10, Height: 10, Padding: 8}); err == nil {
		t.Fatalf("expected error for a canvas smaller than its padding")
	}
}

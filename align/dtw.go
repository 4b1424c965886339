// Package align warps a performance contour onto a reference contour with
// dynamic time warping over octave-invariant pitch distances.
package align

import (
	"math"

	"karaoke-score/apperrors"
	"karaoke-score/models"
)

// Config holds the alignment cost policy.
type Config struct {
	// GapPenalty is the cost of pairing a voiced frame with an unvoiced one.
	GapPenalty float64
	// RestPenalty replaces GapPenalty when the reference holds while the
	// performance advances over an unvoiced frame, so leading, trailing and
	// inserted rests in the performance are skipped instead of being paired
	// against sung reference frames. Must stay below GapPenalty.
	RestPenalty float64
	// MaxDistance caps the semitone distance between two voiced frames.
	MaxDistance float64
	// ExactFrameCeiling is the longest contour aligned over the full matrix;
	// longer inputs are restricted to a band around the diagonal.
	ExactFrameCeiling int
	// BandFraction sets the band half-width as a fraction of the longer contour.
	BandFraction float64
	MinBandWidth int
}

func DefaultConfig() Config {
	return Config{
		GapPenalty:        4,
		RestPenalty:       0.5,
		MaxDistance:       3,
		ExactFrameCeiling: 8000,
		BandFraction:      0.1,
		MinBandWidth:      64,
	}
}

func (c Config) Validate() error {
	switch {
	case !(c.GapPenalty > 0) || math.IsInf(c.GapPenalty, 0):
		return apperrors.InvalidOptions("gap penalty must be positive, got %v", c.GapPenalty)
	case !(c.MaxDistance > 0):
		return apperrors.InvalidOptions("max distance must be positive, got %v", c.MaxDistance)
	case !(c.RestPenalty >= 0) || c.RestPenalty >= c.GapPenalty:
		return apperrors.InvalidOptions("rest penalty must be within [0, gap penalty), got %v", c.RestPenalty)
	case c.ExactFrameCeiling < 0:
		return apperrors.InvalidOptions("exact frame ceiling must not be negative, got %d", c.ExactFrameCeiling)
	case !(c.BandFraction > 0) || c.BandFraction > 1:
		return apperrors.InvalidOptions("band fraction must be within (0, 1], got %v", c.BandFraction)
	case c.MinBandWidth < 1:
		return apperrors.InvalidOptions("min band width must be at least 1, got %d", c.MinBandWidth)
	}
	return nil
}

const (
	moveNone byte = iota
	moveDiagonal
	moveVertical   // reference advances, performance holds
	moveHorizontal // performance advances, reference holds
)

// FrameDistance is the local cost of pairing two frames.
func FrameDistance(ref, perf models.Frame, cfg Config) float64 {
	rv, pv := ref.Voiced(), perf.Voiced()
	switch {
	case rv && pv:
		d := models.PitchClassDistance(*ref.Frequency, *perf.Frequency)
		if math.IsNaN(d) {
			return cfg.GapPenalty
		}
		return math.Min(d, cfg.MaxDistance)
	case rv || pv:
		return cfg.GapPenalty
	default:
		return 0
	}
}

// Align computes the minimum cost monotonic path from (0,0) to (N-1,M-1).
// Ties prefer the diagonal, then the vertical, then the horizontal move.
func Align(reference, performance *models.Contour, cfg Config) (*models.Alignment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reference == nil || len(reference.Frames) == 0 {
		return nil, apperrors.EmptyContour("reference contour has no frames")
	}
	if performance == nil || len(performance.Frames) == 0 {
		return nil, apperrors.EmptyContour("performance contour has no frames")
	}

	n, m := len(reference.Frames), len(performance.Frames)
	b := newBand(n, m, cfg)

	moves := make([][]byte, n)
	prev := make([]float64, m)
	cur := make([]float64, m)
	inf := math.Inf(1)
	for j := range prev {
		prev[j] = inf
		cur[j] = inf
	}

	for i := 0; i < n; i++ {
		lo, hi := b.lo[i], b.hi[i]
		row := make([]byte, hi-lo+1)
		ref := reference.Frames[i]

		for j := lo; j <= hi; j++ {
			perf := performance.Frames[j]
			cost := FrameDistance(ref, perf, cfg)
			if i == 0 && j == 0 {
				cur[j] = cost
				row[j-lo] = moveNone
				continue
			}

			best, move := inf, moveNone
			if i > 0 && j > 0 && b.contains(i-1, j-1) {
				best, move = prev[j-1]+cost, moveDiagonal
			}
			if i > 0 && b.contains(i-1, j) && prev[j]+cost < best {
				best, move = prev[j]+cost, moveVertical
			}
			if j > lo {
				hold := cost
				if !perf.Voiced() {
					hold = math.Min(cost, cfg.RestPenalty)
				}
				if cur[j-1]+hold < best {
					best, move = cur[j-1]+hold, moveHorizontal
				}
			}

			cur[j] = best
			row[j-lo] = move
		}
		moves[i] = row

		if i > 0 {
			for j := b.lo[i-1]; j <= b.hi[i-1]; j++ {
				prev[j] = inf
			}
		}
		prev, cur = cur, prev
	}

	total := prev[m-1]
	pairs := backtrack(moves, b, n, m)

	return &models.Alignment{
		Pairs:  pairs,
		Cost:   total,
		Banded: b.banded,
	}, nil
}

func backtrack(moves [][]byte, b *band, n, m int) []models.Pair {
	path := make([]models.Pair, 0, n+m)
	i, j := n-1, m-1
	for {
		path = append(path, models.Pair{Reference: i, Performance: j})
		if i == 0 && j == 0 {
			break
		}
		switch moves[i][j-b.lo[i]] {
		case moveDiagonal:
			i--
			j--
		case moveVertical:
			i--
		case moveHorizontal:
			j--
		default:
			// The band always connects both corners, so this is unreachable.
			if i > 0 {
				i--
			} else {
				j--
			}
		}
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

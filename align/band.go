package align

import "math"

// band holds the inclusive column range searched for each reference row.
type band struct {
	lo, hi []int
	banded bool
}

func newBand(n, m int, cfg Config) *band {
	b := &band{lo: make([]int, n), hi: make([]int, n)}

	longest := n
	if m > longest {
		longest = m
	}
	if cfg.ExactFrameCeiling <= 0 || longest <= cfg.ExactFrameCeiling || n == 1 {
		for i := range b.hi {
			b.hi[i] = m - 1
		}
		return b
	}

	b.banded = true
	slope := float64(m-1) / float64(n-1)
	width := int(math.Ceil(cfg.BandFraction * float64(longest)))
	if width < cfg.MinBandWidth {
		width = cfg.MinBandWidth
	}
	// Consecutive rows must overlap or the corners could disconnect.
	if minWidth := int(math.Ceil(slope)) + 1; width < minWidth {
		width = minWidth
	}

	for i := 0; i < n; i++ {
		center := float64(i) * slope
		lo := int(math.Floor(center)) - width
		hi := int(math.Ceil(center)) + width
		if lo < 0 {
			lo = 0
		}
		if hi > m-1 {
			hi = m - 1
		}
		b.lo[i], b.hi[i] = lo, hi
	}
	return b
}

func (b *band) contains(i, j int) bool {
	return j >= b.lo[i] && j <= b.hi[i]
}

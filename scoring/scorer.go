// Package scoring reduces an aligned pair of contours to a bounded accuracy
// score with per-window feedback.
package scoring

import (
	"math"

	"karaoke-score/apperrors"
	"karaoke-score/models"
)

// Config holds the scoring policy.
type Config struct {
	// MaxDeviation is the semitone deviation at which a frame scores 0.
	MaxDeviation   float64
	SegmentSeconds float64
}

func DefaultConfig() Config {
	return Config{
		MaxDeviation:   2,
		SegmentSeconds: 1,
	}
}

func (c Config) Validate() error {
	if !(c.MaxDeviation > 0) || math.IsInf(c.MaxDeviation, 0) {
		return apperrors.InvalidOptions("max deviation must be a positive number of semitones, got %v", c.MaxDeviation)
	}
	if !(c.SegmentSeconds > 0) {
		return apperrors.InvalidOptions("segment length must be positive, got %v", c.SegmentSeconds)
	}
	return nil
}

// LocalScore maps a semitone deviation to [0, 100], linear between 0 and
// maxDeviation. Non-finite deviations score 0.
func LocalScore(deviation, maxDeviation float64) float64 {
	if math.IsNaN(deviation) || math.IsInf(deviation, 0) || maxDeviation <= 0 {
		return 0
	}
	deviation = math.Abs(deviation)
	if deviation >= maxDeviation {
		return 0
	}
	return 100 * (1 - deviation/maxDeviation)
}

type frameResult struct {
	voiced  bool
	matched bool
	score   float64
}

// Score grades performance against reference along alignment. Only voiced
// reference frames count; each keeps the best local score among the
// performance frames aligned to it.
func Score(reference, performance *models.Contour, alignment *models.Alignment, cfg Config) models.ScoreResult {
	result := models.ScoreResult{SegmentScores: []models.SegmentScore{}}
	if reference == nil || len(reference.Frames) == 0 {
		return result
	}

	frames := make([]frameResult, len(reference.Frames))
	for i, f := range reference.Frames {
		frames[i].voiced = f.Voiced()
	}

	if alignment != nil && performance != nil {
		for _, p := range alignment.Pairs {
			if p.Reference < 0 || p.Reference >= len(frames) {
				continue
			}
			fr := &frames[p.Reference]
			if !fr.voiced || p.Performance < 0 || p.Performance >= len(performance.Frames) {
				continue
			}
			perf := performance.Frames[p.Performance]
			if !perf.Voiced() {
				continue
			}
			dev := models.PitchClassDistance(*reference.Frames[p.Reference].Frequency, *perf.Frequency)
			local := LocalScore(dev, cfg.MaxDeviation)
			fr.matched = true
			if local > fr.score {
				fr.score = local
			}
		}
	}

	var voiced, matched int
	var total float64
	for _, fr := range frames {
		if !fr.voiced {
			continue
		}
		voiced++
		total += fr.score
		if fr.matched {
			matched++
		}
	}

	if voiced > 0 {
		result.OverallScore = clampScore(total / float64(voiced))
		result.VoicedCoverage = float64(matched) / float64(voiced)
	}
	result.SegmentScores = segments(reference, frames, cfg.SegmentSeconds)
	return result
}

// segments buckets reference frames into fixed windows by timestamp. Windows
// with no voiced reference frames report a score of 0.
func segments(reference *models.Contour, frames []frameResult, seconds float64) []models.SegmentScore {
	duration := reference.Duration()
	if seconds <= 0 || duration <= 0 {
		return []models.SegmentScore{}
	}

	count := int(math.Ceil(duration / seconds))
	sums := make([]float64, count)
	voiced := make([]int, count)
	for i, fr := range frames {
		if !fr.voiced {
			continue
		}
		k := int(reference.Frames[i].Timestamp / seconds)
		if k >= count {
			k = count - 1
		}
		sums[k] += fr.score
		voiced[k]++
	}

	out := make([]models.SegmentScore, count)
	for k := range out {
		seg := models.SegmentScore{
			StartTime:    float64(k) * seconds,
			EndTime:      math.Min(float64(k+1)*seconds, duration),
			VoicedFrames: voiced[k],
		}
		if voiced[k] > 0 {
			seg.LocalScore = clampScore(sums[k] / float64(voiced[k]))
		}
		out[k] = seg
	}
	return out
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

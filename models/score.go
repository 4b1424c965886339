package models

// Pair links a reference frame to a performance frame.
type Pair struct {
	Reference   int `json:"ref"`
	Performance int `json:"perf"`
}

// Alignment is a monotonic correspondence running from (0,0) to the last
// frame of both contours.
type Alignment struct {
	Pairs  []Pair  `json:"pairs"`
	Cost   float64 `json:"cost"`
	Banded bool    `json:"banded"`
}

type SegmentScore struct {
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	LocalScore   float64 `json:"localScore"`
	VoicedFrames int     `json:"voicedFrames"`
}

type ScoreResult struct {
	OverallScore   float64        `json:"overallScore"`
	SegmentScores  []SegmentScore `json:"segmentScores"`
	VoicedCoverage float64        `json:"voicedCoverage"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type ChallengeStatus string

const (
	StatusPending   ChallengeStatus = "pending"
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
)

type PlayerStatus string

const (
	PlayerWaiting   PlayerStatus = "waiting"
	PlayerRecording PlayerStatus = "recording"
	PlayerDone      PlayerStatus = "done"
)

type Player struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Status    PlayerStatus `json:"status"`
	Score     *ScoreResult `json:"score,omitempty"` // nil until scored
	LastError string       `json:"lastError,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Scored reports whether the player's recording has been scored.
func (p *Player) Scored() bool {
	return p != nil && p.Score != nil
}

// Challenge is a two-player karaoke duel over one song.
type Challenge struct {
	ID          string          `json:"id"`
	SongID      string          `json:"songId"`
	SongTitle   string          `json:"songTitle"`
	Status      ChallengeStatus `json:"status"`
	Player1     Player          `json:"player1"`
	Player2     *Player         `json:"player2,omitempty"`
	CurrentTurn string          `json:"currentTurn,omitempty"`
	WinnerID    string          `json:"winnerId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func NewChallenge(creatorID, username, songID, songTitle string) *Challenge {
	now := time.Now()
	return &Challenge{
		ID:        uuid.NewString(),
		SongID:    songID,
		SongTitle: songTitle,
		Status:    StatusPending,
		Player1: Player{
			ID:        creatorID,
			Username:  username,
			Status:    PlayerWaiting,
			CreatedAt: now,
			UpdatedAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Player returns the participant with the given id, or nil.
func (c *Challenge) Player(id string) *Player {
	if c.Player1.ID == id {
		return &c.Player1
	}
	if c.Player2 != nil && c.Player2.ID == id {
		return c.Player2
	}
	return nil
}

// Clone returns a deep copy so stored challenges are never shared.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	out := *c
	out.Player1 = clonePlayer(c.Player1)
	if c.Player2 != nil {
		p2 := clonePlayer(*c.Player2)
		out.Player2 = &p2
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

func clonePlayer(p Player) Player {
	if p.Score != nil {
		s := *p.Score
		s.SegmentScores = append([]SegmentScore(nil), p.Score.SegmentScores...)
		p.Score = &s
	}
	return p
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"karaoke-score/compare"
	"karaoke-score/models"

	"github.com/mdobak/go-xerrors"
)

var (
	ErrChallengeAlreadyJoined  = errors.New("challenge already has two players")
	ErrNotYourTurn             = errors.New("not your turn to record")
	ErrPlayerAlreadyRecorded   = errors.New("player has already recorded")
	ErrChallengeCompleted      = errors.New("challenge already completed")
	ErrPlayerInActiveChallenge = errors.New("player already in active challenge")
	ErrCannotJoinOwnChallenge  = errors.New("cannot join your own challenge")
	ErrPlayerNotFound          = errors.New("player is not part of this challenge")
)

// ReferenceSource supplies the original recording of a song.
type ReferenceSource interface {
	ReferenceAudio(ctx context.Context, songID string) ([]byte, error)
}

// ScoreOutcome reports the end of scoring for one submitted recording.
type ScoreOutcome struct {
	Challenge *models.Challenge
	PlayerID  string
	Score     *models.ScoreResult
	Err       error
}

// ChallengeService runs two-player karaoke duels: player one records, then
// player two, and the higher pitch accuracy wins.
type ChallengeService struct {
	repo       ChallengeRepository
	queue      *ScoringQueue
	references ReferenceSource
	options    compare.Options
	logger     *slog.Logger

	// mu serializes read-modify-write cycles on stored challenges.
	mu sync.Mutex
}

func NewChallengeService(repo ChallengeRepository, queue *ScoringQueue, references ReferenceSource, opts compare.Options, logger *slog.Logger) *ChallengeService {
	return &ChallengeService{
		repo:       repo,
		queue:      queue,
		references: references,
		options:    opts,
		logger:     logger,
	}
}

func (s *ChallengeService) CreateChallenge(creatorID, username, songID, songTitle string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, _ := s.repo.GetActiveByPlayerID(creatorID); existing != nil {
		return nil, ErrPlayerInActiveChallenge
	}

	challenge := models.NewChallenge(creatorID, username, songID, songTitle)
	if err := s.repo.Create(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *ChallengeService) JoinChallenge(challengeID, playerID, username string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, err := s.repo.GetByID(challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.Player1.ID == playerID {
		return nil, ErrCannotJoinOwnChallenge
	}
	if existing, _ := s.repo.GetActiveByPlayerID(playerID); existing != nil {
		return nil, ErrPlayerInActiveChallenge
	}
	if challenge.Status != models.StatusPending {
		return nil, ErrChallengeAlreadyJoined
	}

	now := time.Now()
	challenge.Player2 = &models.Player{
		ID:        playerID,
		Username:  username,
		Status:    models.PlayerWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	challenge.Status = models.StatusActive
	challenge.CurrentTurn = challenge.Player1.ID
	challenge.Player1.Status = models.PlayerRecording
	challenge.UpdatedAt = now

	if err := s.repo.Update(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// SubmitRecording queues a player's recording for scoring against the song's
// reference. The returned channel yields one outcome once the score has been
// applied to the challenge. Submit blocks while the scoring queue is full.
func (s *ChallengeService) SubmitRecording(ctx context.Context, challengeID, playerID string, audio []byte) (*models.Challenge, <-chan ScoreOutcome, error) {
	snapshot, err := s.repo.GetByID(challengeID)
	if err != nil {
		return nil, nil, err
	}
	reference, err := s.references.ReferenceAudio(ctx, snapshot.SongID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference for song %s: %w", snapshot.SongID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, err := s.repo.GetByID(challengeID)
	if err != nil {
		return nil, nil, err
	}
	if challenge.Status == models.StatusCompleted {
		return nil, nil, ErrChallengeCompleted
	}
	player := challenge.Player(playerID)
	if player == nil {
		return nil, nil, ErrPlayerNotFound
	}
	switch player.Status {
	case models.PlayerDone:
		return nil, nil, ErrPlayerAlreadyRecorded
	case models.PlayerWaiting:
		return nil, nil, ErrNotYourTurn
	}

	reply, err := s.queue.Submit(ctx, ScoreRequest{
		Reference:   reference,
		Performance: audio,
		Options:     s.options,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to queue recording: %w", err)
	}

	now := time.Now()
	player.Status = models.PlayerDone
	player.LastError = ""
	player.UpdatedAt = now
	challenge.UpdatedAt = now
	challenge.CurrentTurn = ""
	if other := opponent(challenge, playerID); other != nil && other.Status != models.PlayerDone {
		other.Status = models.PlayerRecording
		challenge.CurrentTurn = other.ID
	}

	if err := s.repo.Update(challenge); err != nil {
		return nil, nil, err
	}

	outcomes := make(chan ScoreOutcome, 1)
	go func() {
		defer close(outcomes)
		resp := <-reply
		outcomes <- s.handleScoringComplete(ctx, challengeID, playerID, resp)
	}()

	return challenge, outcomes, nil
}

// handleScoringComplete records a player's score and settles the challenge
// once both players are scored. A failed scoring lets the player record again.
func (s *ChallengeService) handleScoringComplete(ctx context.Context, challengeID, playerID string, resp ScoreResponse) ScoreOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := ScoreOutcome{PlayerID: playerID, Err: resp.Err}

	challenge, err := s.repo.GetByID(challengeID)
	if err != nil {
		outcome.Err = errors.Join(resp.Err, err)
		return outcome
	}
	player := challenge.Player(playerID)
	if player == nil {
		outcome.Err = errors.Join(resp.Err, ErrPlayerNotFound)
		return outcome
	}

	now := time.Now()
	player.UpdatedAt = now
	challenge.UpdatedAt = now

	if resp.Err != nil {
		player.Status = models.PlayerRecording
		player.LastError = resp.Err.Error()
		if challenge.CurrentTurn == "" {
			challenge.CurrentTurn = playerID
		}
		s.logger.WarnContext(ctx, "scoring failed, player may record again",
			slog.String("challengeId", challengeID),
			slog.String("playerId", playerID),
			slog.Any("error", xerrors.New(resp.Err)),
		)
	} else {
		score := resp.Result.Score
		player.Score = &score
		outcome.Score = &score
	}

	if challenge.Player1.Scored() && challenge.Player2.Scored() {
		challenge.Status = models.StatusCompleted
		completedAt := now
		challenge.CompletedAt = &completedAt

		p1, p2 := challenge.Player1.Score.OverallScore, challenge.Player2.Score.OverallScore
		switch {
		case p1 > p2:
			challenge.WinnerID = challenge.Player1.ID
		case p2 > p1:
			challenge.WinnerID = challenge.Player2.ID
		}
		s.logger.InfoContext(ctx, "challenge completed",
			slog.String("challengeId", challengeID),
			slog.String("winnerId", challenge.WinnerID),
			slog.Float64("player1Score", p1),
			slog.Float64("player2Score", p2),
		)
	}

	if err := s.repo.Update(challenge); err != nil {
		outcome.Err = errors.Join(outcome.Err, err)
	}
	outcome.Challenge = challenge.Clone()
	return outcome
}

func opponent(c *models.Challenge, playerID string) *models.Player {
	if c.Player1.ID == playerID {
		return c.Player2
	}
	return &c.Player1
}

func (s *ChallengeService) GetChallenge(challengeID string) (*models.Challenge, error) {
	return s.repo.GetByID(challengeID)
}

func (s *ChallengeService) ListChallenges() ([]*models.Challenge, error) {
	return s.repo.List()
}

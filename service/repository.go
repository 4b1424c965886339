package service

import (
	"errors"
	"sort"
	"sync"

	"karaoke-score/models"
)

var ErrChallengeNotFound = errors.New("challenge not found")

type ChallengeRepository interface {
	Create(challenge *models.Challenge) error
	GetByID(id string) (*models.Challenge, error)
	Update(challenge *models.Challenge) error
	List() ([]*models.Challenge, error)
	GetActiveByPlayerID(playerID string) (*models.Challenge, error)
}

// InMemoryChallengeRepository keeps challenges in a map. It stores and
// returns clones, so callers never share a challenge.
type InMemoryChallengeRepository struct {
	mu         sync.RWMutex
	challenges map[string]*models.Challenge
}

func NewInMemoryChallengeRepository() *InMemoryChallengeRepository {
	return &InMemoryChallengeRepository{challenges: make(map[string]*models.Challenge)}
}

func (r *InMemoryChallengeRepository) Create(challenge *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.challenges[challenge.ID]; exists {
		return errors.New("challenge already exists")
	}
	r.challenges[challenge.ID] = challenge.Clone()
	return nil
}

func (r *InMemoryChallengeRepository) GetByID(id string) (*models.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return c.Clone(), nil
}

func (r *InMemoryChallengeRepository) Update(challenge *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[challenge.ID]; !ok {
		return ErrChallengeNotFound
	}
	r.challenges[challenge.ID] = challenge.Clone()
	return nil
}

// List returns challenges ordered by creation time.
func (r *InMemoryChallengeRepository) List() ([]*models.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Challenge, 0, len(r.challenges))
	for _, c := range r.challenges {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetActiveByPlayerID returns the player's unfinished challenge, or
// ErrChallengeNotFound.
func (r *InMemoryChallengeRepository) GetActiveByPlayerID(playerID string) (*models.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.challenges {
		if c.Status == models.StatusCompleted {
			continue
		}
		if c.Player(playerID) != nil {
			return c.Clone(), nil
		}
	}
	return nil, ErrChallengeNotFound
}

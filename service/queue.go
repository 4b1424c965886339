package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"karaoke-score/compare"

	"github.com/mdobak/go-xerrors"
)

var ErrQueueClosed = errors.New("scoring queue is closed")

// Comparer is the scoring operation the queue runs; *compare.Engine satisfies it.
type Comparer interface {
	Compare(ctx context.Context, referenceAudio, performanceAudio []byte, opts compare.Options) (*compare.Result, error)
}

type ScoreRequest struct {
	Reference   []byte
	Performance []byte
	Options     compare.Options
}

type ScoreResponse struct {
	Result *compare.Result
	Err    error
}

type queuedRequest struct {
	ctx   context.Context
	req   ScoreRequest
	reply chan ScoreResponse
}

// ScoringQueue runs comparisons on a fixed pool of workers. Every request
// gets its own reply channel, so no response state is shared.
type ScoringQueue struct {
	comparer Comparer
	logger   *slog.Logger
	requests chan queuedRequest

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewScoringQueue(comparer Comparer, workers, depth int, logger *slog.Logger) *ScoringQueue {
	if workers <= 0 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	q := &ScoringQueue{
		comparer: comparer,
		logger:   logger,
		requests: make(chan queuedRequest, depth),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues req. It blocks while the queue is full, until ctx is done.
// The returned channel yields exactly one response.
func (q *ScoringQueue) Submit(ctx context.Context, req ScoreRequest) (<-chan ScoreResponse, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	reply := make(chan ScoreResponse, 1)
	select {
	case q.requests <- queuedRequest{ctx: ctx, req: req, reply: reply}:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting requests and waits for queued ones to finish.
func (q *ScoringQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.requests)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *ScoringQueue) worker() {
	defer q.wg.Done()
	for item := range q.requests {
		if err := item.ctx.Err(); err != nil {
			item.reply <- ScoreResponse{Err: err}
			continue
		}
		res, err := q.comparer.Compare(item.ctx, item.req.Reference, item.req.Performance, item.req.Options)
		if err != nil && q.logger != nil {
			q.logger.WarnContext(item.ctx, "queued comparison failed", slog.Any("error", xerrors.New(err)))
		}
		item.reply <- ScoreResponse{Result: res, Err: err}
	}
}

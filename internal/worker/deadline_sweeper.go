package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/rs/zerolog"
)

const sweepBatch = 100

type expiredLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
}

type attemptExpirer interface {
	ExpireAttempt(ctx context.Context, attemptID, candidateID uuid.UUID) (bool, error)
}

// DeadlineSweeper closes attempts whose deadline passed without any further
// request from the candidate. Without it they stay in_progress until the
// next answer or submit call.
type DeadlineSweeper struct {
	store    expiredLister
	attempts attemptExpirer
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewDeadlineSweeper creates a sweeper running every interval.
func NewDeadlineSweeper(store expiredLister, attempts attemptExpirer, interval time.Duration, log zerolog.Logger) *DeadlineSweeper {
	return &DeadlineSweeper{
		store:    store,
		attempts: attempts,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "deadline_sweeper").Logger(),
	}
}

// Start sweeps until ctx is cancelled.
func (s *DeadlineSweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("DeadlineSweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("DeadlineSweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("Deadline sweep failed")
			} else if n > 0 {
				s.log.Info().Int("expired", n).Msg("Expired attempts auto-submitted")
			}
		}
	}
}

// Sweep expires one batch of overdue attempts and returns how many it closed.
func (s *DeadlineSweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, a := range expired {
		done, err := s.attempts.ExpireAttempt(ctx, a.ID, a.CandidateID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to expire attempt")
			continue
		}
		if done {
			closed++
		}
	}
	return closed, nil
}

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attemptStore is the store surface the attempt service depends on.
type attemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	Get(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error)
	Update(ctx context.Context, attemptID, candidateID uuid.UUID, mutate func(a *model.Attempt) error) (*model.Attempt, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Attempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error)
	ListInProgress(ctx context.Context) ([]model.Attempt, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
	List(ctx context.Context, limit, offset int) ([]model.Attempt, int, error)
}

// Whole seconds so stores with millisecond precision round-trip exactly.
var contractBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestAttempt(candidateID, examID uuid.UUID, startedAt time.Time) *model.Attempt {
	return &model.Attempt{
		ID:             uuid.New(),
		CandidateID:    candidateID,
		ExamID:         examID,
		Status:         model.AttemptStatusInProgress,
		StartedAt:      startedAt,
		EndsAt:         startedAt.Add(30 * time.Minute),
		QuestionOrder:  []uuid.UUID{},
		Answers:        []model.Answer{},
		Violations:     []model.Violation{},
		NavigationMode: model.NavigationFree,
		CreatedAt:      startedAt,
		UpdatedAt:      startedAt,
	}
}

// runAttemptStoreContract checks the behaviour every attempt store must
// share. newStore must return an empty store on each call.
func runAttemptStoreContract(t *testing.T, newStore func(t *testing.T) attemptStore) {
	t.Run("create and scoped get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
		require.NoError(t, store.Create(ctx, a))

		got, err := store.Get(ctx, a.ID, a.CandidateID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.WithinDuration(t, a.EndsAt, got.EndsAt, 0)
		assert.Equal(t, model.AttemptStatusInProgress, got.Status)

		_, err = store.Get(ctx, a.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(ctx, uuid.New(), a.CandidateID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty lists stay non-nil", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
		require.NoError(t, store.Create(ctx, a))

		got, err := store.Get(ctx, a.ID, a.CandidateID)
		require.NoError(t, err)
		assert.NotNil(t, got.Answers)
		assert.NotNil(t, got.Violations)

		updated, err := store.Update(ctx, a.ID, a.CandidateID, func(*model.Attempt) error { return nil })
		require.NoError(t, err)
		assert.NotNil(t, updated.Answers)
		assert.NotNil(t, updated.Violations)
	})

	t.Run("failed mutation is discarded", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
		require.NoError(t, store.Create(ctx, a))

		boom := errors.New("boom")
		_, err := store.Update(ctx, a.ID, a.CandidateID, func(w *model.Attempt) error {
			w.WarningsCount = 99
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, a.ID, a.CandidateID)
		require.NoError(t, err)
		assert.Zero(t, got.WarningsCount)

		updated, err := store.Update(ctx, a.ID, a.CandidateID, func(w *model.Attempt) error {
			w.WarningsCount = 1
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.WarningsCount)

		_, err = store.Update(ctx, a.ID, uuid.New(), func(*model.Attempt) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mutation owns the timestamp", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
		require.NoError(t, store.Create(ctx, a))

		stamp := contractBase.Add(7 * time.Minute)
		updated, err := store.Update(ctx, a.ID, a.CandidateID, func(w *model.Attempt) error {
			w.UpdatedAt = stamp
			return nil
		})
		require.NoError(t, err)
		assert.WithinDuration(t, stamp, updated.UpdatedAt, 0)

		got, err := store.Get(ctx, a.ID, a.CandidateID)
		require.NoError(t, err)
		assert.WithinDuration(t, stamp, got.UpdatedAt, 0)
	})

	t.Run("concurrent updates are all applied", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
		require.NoError(t, store.Create(ctx, a))

		const writers = 25
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, a.ID, a.CandidateID, func(w *model.Attempt) error {
					w.WarningsCount++
					w.Violations = append(w.Violations, model.Violation{
						Type:      model.ViolationEyeMovement,
						Severity:  model.SeverityWarning,
						Timestamp: contractBase,
					})
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, a.ID, a.CandidateID)
		require.NoError(t, err)
		assert.Equal(t, writers, got.WarningsCount)
		assert.Len(t, got.Violations, writers)
	})

	t.Run("lists", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		alice, bob := uuid.New(), uuid.New()
		examA, examB := uuid.New(), uuid.New()

		old := newTestAttempt(alice, examA, contractBase)
		mid := newTestAttempt(bob, examA, contractBase.Add(time.Hour))
		recent := newTestAttempt(alice, examB, contractBase.Add(2*time.Hour))
		recent.Status = model.AttemptStatusCompleted
		for _, a := range []*model.Attempt{old, mid, recent} {
			require.NoError(t, store.Create(ctx, a))
		}

		byAlice, err := store.ListByCandidate(ctx, alice)
		require.NoError(t, err)
		require.Len(t, byAlice, 2)
		assert.Equal(t, recent.ID, byAlice[0].ID)
		assert.Equal(t, old.ID, byAlice[1].ID)

		byExam, err := store.ListByExam(ctx, examA)
		require.NoError(t, err)
		assert.Len(t, byExam, 2)

		live, err := store.ListInProgress(ctx)
		require.NoError(t, err)
		assert.Len(t, live, 2)

		expired, err := store.ListExpired(ctx, contractBase.Add(45*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, old.ID, expired[0].ID)

		expired, err = store.ListExpired(ctx, contractBase.Add(5*time.Hour), 1)
		require.NoError(t, err)
		assert.Len(t, expired, 1, "limit applies")

		page, total, err := store.List(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, page, 2)
		assert.Equal(t, mid.ID, page[0].ID)
		assert.Equal(t, old.ID, page[1].ID)

		page, total, err = store.List(ctx, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, page)
	})
}

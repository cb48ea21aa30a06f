package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAttemptStoreContract(t *testing.T) {
	runAttemptStoreContract(t, func(*testing.T) attemptStore {
		return NewMemoryAttemptStore()
	})
}

func TestMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	store := NewMemoryAttemptStore()
	ctx := context.Background()
	a := newTestAttempt(uuid.New(), uuid.New(), contractBase)

	require.NoError(t, store.Create(ctx, a))
	assert.ErrorIs(t, store.Create(ctx, a), ErrConcurrentUpdate)
}

func TestMemoryStoreReturnsSnapshots(t *testing.T) {
	store := NewMemoryAttemptStore()
	ctx := context.Background()
	a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
	require.NoError(t, store.Create(ctx, a))

	a.Status = model.AttemptStatusCompleted
	got, err := store.Get(ctx, a.ID, a.CandidateID)
	require.NoError(t, err)
	got.Answers = append(got.Answers, model.Answer{QuestionID: uuid.New()})

	again, err := store.Get(ctx, a.ID, a.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusInProgress, again.Status)
	assert.Empty(t, again.Answers)
}

func TestMemoryStoreUpdateHonoursCancelledContext(t *testing.T) {
	store := NewMemoryAttemptStore()
	a := newTestAttempt(uuid.New(), uuid.New(), contractBase)
	require.NoError(t, store.Create(context.Background(), a))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := store.Update(ctx, a.ID, a.CandidateID, func(*model.Attempt) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

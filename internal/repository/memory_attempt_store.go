package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
)

type memoryEntry struct {
	candidateID uuid.UUID

	mu      sync.Mutex
	attempt *model.Attempt
}

// MemoryAttemptStore keeps attempts in process memory. Every attempt has its
// own lock, so updates to one attempt serialize while others proceed.
type MemoryAttemptStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryEntry
}

// NewMemoryAttemptStore creates an empty MemoryAttemptStore.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{entries: make(map[uuid.UUID]*memoryEntry)}
}

// Create stores a copy of a. The id must be unique.
func (s *MemoryAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[a.ID]; exists {
		return ErrConcurrentUpdate
	}
	s.entries[a.ID] = &memoryEntry{candidateID: a.CandidateID, attempt: a.Clone()}
	return nil
}

// Get returns a snapshot of the attempt owned by candidateID.
func (s *MemoryAttemptStore) Get(_ context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error) {
	e, err := s.entry(attemptID, candidateID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempt.Clone(), nil
}

// Update applies mutate to a working copy under the attempt lock and swaps
// it in only when mutate succeeds.
func (s *MemoryAttemptStore) Update(ctx context.Context, attemptID, candidateID uuid.UUID, mutate func(a *model.Attempt) error) (*model.Attempt, error) {
	e, err := s.entry(attemptID, candidateID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := e.attempt.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	e.attempt = working
	return working.Clone(), nil
}

// ListByCandidate returns the candidate's attempts, newest first.
func (s *MemoryAttemptStore) ListByCandidate(_ context.Context, candidateID uuid.UUID) ([]model.Attempt, error) {
	return s.filter(func(a *model.Attempt) bool { return a.CandidateID == candidateID }), nil
}

// ListByExam returns every attempt of examID, newest first.
func (s *MemoryAttemptStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	return s.filter(func(a *model.Attempt) bool { return a.ExamID == examID }), nil
}

// ListInProgress returns every attempt that is not terminal.
func (s *MemoryAttemptStore) ListInProgress(_ context.Context) ([]model.Attempt, error) {
	return s.filter(func(a *model.Attempt) bool { return a.Status == model.AttemptStatusInProgress }), nil
}

// ListExpired returns up to limit in-progress attempts whose deadline passed.
func (s *MemoryAttemptStore) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	out := s.filter(func(a *model.Attempt) bool {
		return a.Status == model.AttemptStatusInProgress && a.Expired(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// List returns one page of all attempts, newest first, and the total count.
func (s *MemoryAttemptStore) List(_ context.Context, limit, offset int) ([]model.Attempt, int, error) {
	all := s.filter(func(*model.Attempt) bool { return true })
	total := len(all)
	if offset >= total {
		return []model.Attempt{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryAttemptStore) entry(attemptID, candidateID uuid.UUID) (*memoryEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.candidateID != candidateID {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *MemoryAttemptStore) filter(keep func(a *model.Attempt) bool) []model.Attempt {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]model.Attempt, 0)
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.attempt) {
			out = append(out, *e.attempt.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
)

// AttemptStore persists attempt records. Lookups are scoped to the owning
// candidate: an attempt of another candidate is reported as not found.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	Get(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error)
	// Update runs mutate against the current record and persists the result
	// as one atomic read-modify-write. When mutate returns an error nothing
	// is written and that error is returned unchanged. mutate may run more
	// than once when the store retries an optimistic write, so it must
	// derive all of its effects from the attempt it is given.
	Update(ctx context.Context, attemptID, candidateID uuid.UUID, mutate func(a *model.Attempt) error) (*model.Attempt, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Attempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error)
	ListInProgress(ctx context.Context) ([]model.Attempt, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
	List(ctx context.Context, limit, offset int) ([]model.Attempt, int, error)
}

// ExamCatalog supplies exam definitions. Both lookups return an error
// wrapping repository.ErrNotFound when the exam is unknown; GetActiveExam
// also treats inactive exams as unknown.
type ExamCatalog interface {
	GetActiveExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// AccessChecker answers whether a candidate purchased or was assigned an exam.
type AccessChecker interface {
	HasAccess(ctx context.Context, candidateID, examID uuid.UUID) (bool, error)
}

// EventPublisher receives committed attempt transitions. Publishing is best
// effort; failures never change the outcome of a state machine operation.
type EventPublisher interface {
	Publish(ctx context.Context, event model.AttemptEvent) error
}

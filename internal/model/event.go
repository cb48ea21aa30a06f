package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptEventType names a committed attempt transition.
type AttemptEventType string

const (
	EventAttemptStarted       AttemptEventType = "attempt.started"
	EventAttemptWarning       AttemptEventType = "attempt.warning"
	EventAttemptTerminated    AttemptEventType = "attempt.terminated"
	EventAttemptAutoSubmitted AttemptEventType = "attempt.auto_submitted"
	EventAttemptCompleted     AttemptEventType = "attempt.completed"
)

// AttemptEvent is published after an attempt transition has been persisted.
type AttemptEvent struct {
	Type          AttemptEventType `json:"type"`
	AttemptID     uuid.UUID        `json:"attemptId"`
	ExamID        uuid.UUID        `json:"examId"`
	CandidateID   uuid.UUID        `json:"candidateId"`
	Status        AttemptStatus    `json:"status"`
	WarningsCount int              `json:"warningsCount"`
	Score         float64          `json:"score"`
	Violation     *Violation       `json:"violation,omitempty"`
	At            time.Time        `json:"at"`
}

// NewAttemptEvent builds an event from the attempt's committed state.
func NewAttemptEvent(t AttemptEventType, a *Attempt, v *Violation, at time.Time) AttemptEvent {
	return AttemptEvent{
		Type:          t,
		AttemptID:     a.ID,
		ExamID:        a.ExamID,
		CandidateID:   a.CandidateID,
		Status:        a.Status,
		WarningsCount: a.WarningsCount,
		Score:         a.Score,
		Violation:     v,
		At:            at,
	}
}

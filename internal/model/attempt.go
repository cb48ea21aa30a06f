package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress    AttemptStatus = "in_progress"
	AttemptStatusCompleted     AttemptStatus = "completed"
	AttemptStatusTerminated    AttemptStatus = "terminated"
	AttemptStatusAutoSubmitted AttemptStatus = "auto_submitted"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptStatusInProgress
}

// NavigationMode is informational to the client; the server does not enforce it.
type NavigationMode string

const (
	NavigationFree       NavigationMode = "free"
	NavigationSequential NavigationMode = "sequential"
)

// Valid reports whether m is one of the known navigation modes.
func (m NavigationMode) Valid() bool {
	return m == NavigationFree || m == NavigationSequential
}

// Answer is a candidate's response to one question. Exactly one payload
// field is expected per question type; the others stay empty.
type Answer struct {
	QuestionID       uuid.UUID `json:"questionId"`
	SelectedOptionID string    `json:"selectedOptionId,omitempty"`
	TextAnswer       string    `json:"textAnswer,omitempty"`
	CodeAnswer       string    `json:"codeAnswer,omitempty"`
}

// Attempt is one candidate's timed run through one exam.
type Attempt struct {
	ID             uuid.UUID      `json:"id"`
	CandidateID    uuid.UUID      `json:"candidateId"`
	ExamID         uuid.UUID      `json:"examId"`
	Status         AttemptStatus  `json:"status"`
	StartedAt      time.Time      `json:"startedAt"`
	EndsAt         time.Time      `json:"endsAt"`
	SubmittedAt    *time.Time     `json:"submittedAt,omitempty"`
	WarningsCount  int            `json:"warningsCount"`
	QuestionOrder  []uuid.UUID    `json:"questionOrder"`
	Answers        []Answer       `json:"answers"`
	Violations     []Violation    `json:"violations"`
	Score          float64        `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	NavigationMode NavigationMode `json:"navigationMode"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Expired reports whether now is past the attempt deadline.
func (a *Attempt) Expired(now time.Time) bool {
	return now.After(a.EndsAt)
}

// UpsertAnswer replaces the answer for ans.QuestionID or appends it when new.
func (a *Attempt) UpsertAnswer(ans Answer) {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == ans.QuestionID {
			a.Answers[i] = ans
			return
		}
	}
	a.Answers = append(a.Answers, ans)
}

// AnswerFor returns the stored answer for questionID, if any.
func (a *Attempt) AnswerFor(questionID uuid.UUID) (Answer, bool) {
	for _, ans := range a.Answers {
		if ans.QuestionID == questionID {
			return ans, true
		}
	}
	return Answer{}, false
}

// Finalize moves an in-progress attempt into a terminal status and stamps
// submittedAt. It returns false, leaving the attempt untouched, when the
// attempt is already terminal or status is not terminal.
func (a *Attempt) Finalize(status AttemptStatus, at time.Time) bool {
	if a.Status.IsTerminal() || !status.IsTerminal() {
		return false
	}
	a.Status = status
	submitted := at
	a.SubmittedAt = &submitted
	a.UpdatedAt = at
	return true
}

// Clone returns a deep copy so stores can hand out snapshots safely.
func (a *Attempt) Clone() *Attempt {
	c := *a
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		c.SubmittedAt = &t
	}
	c.QuestionOrder = cloneSlice(a.QuestionOrder)
	c.Answers = cloneSlice(a.Answers)
	c.Violations = cloneSlice(a.Violations)
	return &c
}

// cloneSlice copies s, keeping an empty slice empty rather than nil so it
// still encodes as [] in JSON.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ      QuestionType = "mcq"
	QuestionTypeScenario QuestionType = "scenario"
	QuestionTypeCoding   QuestionType = "coding"
)

// Option is one selectable choice of an mcq question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CodingMeta carries the editor setup for coding questions.
type CodingMeta struct {
	Language         string `json:"language"`
	StarterCode      string `json:"starterCode"`
	ExpectedApproach string `json:"expectedApproach,omitempty"`
}

// Question is a catalog question including its answer key.
type Question struct {
	ID              uuid.UUID    `json:"id"`
	Prompt          string       `json:"prompt"`
	QuestionType    QuestionType `json:"questionType"`
	Options         []Option     `json:"options"`
	CorrectOptionID string       `json:"correctOptionId,omitempty"`
	CodingMeta      *CodingMeta  `json:"codingMeta,omitempty"`
}

// Exam is the catalog definition an attempt is taken against.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	SubCategory     string     `json:"subCategory"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"durationMinutes"`
	SupportsCoding  bool       `json:"supportsCoding"`
	Active          bool       `json:"active"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Duration returns the time box of one attempt.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// QuestionIDs returns question ids in catalog order.
func (e *Exam) QuestionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.Questions))
	for _, q := range e.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Question looks up a question by id.
func (e *Exam) Question(id uuid.UUID) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// CandidateQuestion is a question as shown to candidates (no answer key).
type CandidateQuestion struct {
	ID           uuid.UUID            `json:"id"`
	Prompt       string               `json:"prompt"`
	QuestionType QuestionType         `json:"questionType"`
	Options      []Option             `json:"options"`
	Coding       *CandidateCodingMeta `json:"codingMeta,omitempty"`
}

// CandidateCodingMeta is the candidate-visible part of CodingMeta.
type CandidateCodingMeta struct {
	Language    string `json:"language"`
	StarterCode string `json:"starterCode"`
}

// ExamBrief identifies the exam in attempt responses.
type ExamBrief struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Category        string         `json:"category,omitempty"`
	SubCategory     string         `json:"subCategory,omitempty"`
	DurationMinutes int            `json:"durationMinutes"`
	NavigationMode  NavigationMode `json:"navigationMode,omitempty"`
}

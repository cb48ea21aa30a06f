package model

import (
	"time"

	"github.com/google/uuid"
)

// StartAttemptRequest is the payload for starting an attempt.
type StartAttemptRequest struct {
	ExamID         string `json:"examId" binding:"required,uuid"`
	NavigationMode string `json:"navigationMode" binding:"omitempty,oneof=free sequential"`
}

// SubmitAnswerRequest is the payload for saving one answer. At least one of
// the three payload fields must be present.
type SubmitAnswerRequest struct {
	QuestionID       string  `json:"questionId" binding:"required,uuid"`
	SelectedOptionID *string `json:"selectedOptionId" binding:"required_without_all=TextAnswer CodeAnswer,omitempty,max=64"`
	TextAnswer       *string `json:"textAnswer" binding:"required_without_all=SelectedOptionID CodeAnswer,omitempty,max=20000"`
	CodeAnswer       *string `json:"codeAnswer" binding:"required_without_all=SelectedOptionID TextAnswer,omitempty,max=100000"`
}

// ToAnswer converts the request into an Answer. QuestionID must already be validated.
func (r *SubmitAnswerRequest) ToAnswer() Answer {
	ans := Answer{QuestionID: uuid.MustParse(r.QuestionID)}
	if r.SelectedOptionID != nil {
		ans.SelectedOptionID = *r.SelectedOptionID
	}
	if r.TextAnswer != nil {
		ans.TextAnswer = *r.TextAnswer
	}
	if r.CodeAnswer != nil {
		ans.CodeAnswer = *r.CodeAnswer
	}
	return ans
}

// ProctorEventRequest is the payload for reporting a proctoring violation.
type ProctorEventRequest struct {
	Type string `json:"type" binding:"required,oneof=face_missing eye_movement head_movement tab_switch screen_minimize fullscreen_exit copy_paste_attempt right_click_attempt screen_capture_attempt"`
}

// StartAttemptResponse is returned when an attempt is created.
type StartAttemptResponse struct {
	AttemptID uuid.UUID           `json:"attemptId"`
	Exam      ExamBrief           `json:"exam"`
	EndsAt    time.Time           `json:"endsAt"`
	Questions []CandidateQuestion `json:"questions"`
}

// AttemptState is the candidate's view of a running or finished attempt.
type AttemptState struct {
	AttemptID      uuid.UUID           `json:"attemptId"`
	Status         AttemptStatus       `json:"status"`
	EndsAt         time.Time           `json:"endsAt"`
	WarningsCount  int                 `json:"warningsCount"`
	Questions      []CandidateQuestion `json:"questions"`
	Answers        []Answer            `json:"answers"`
	NavigationMode NavigationMode      `json:"navigationMode"`
}

// ViolationOutcome is the result of recording one proctoring violation.
type ViolationOutcome struct {
	Terminated        bool   `json:"terminated"`
	Warning           bool   `json:"warning"`
	WarningsCount     int    `json:"warningsCount"`
	RemainingWarnings int    `json:"remainingWarnings"`
	Message           string `json:"message"`
}

// SubmitResult is the result of a (possibly repeated) submit call.
type SubmitResult struct {
	Message          string        `json:"message"`
	AlreadySubmitted bool          `json:"alreadySubmitted"`
	Status           AttemptStatus `json:"status"`
	Score            float64       `json:"score"`
	WarningsCount    int           `json:"warningsCount"`
	Violations       []Violation   `json:"violations"`
}

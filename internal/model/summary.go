package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptSummary is the dashboard / live-monitoring projection of an attempt.
type AttemptSummary struct {
	ID            uuid.UUID     `json:"id"`
	CandidateID   uuid.UUID     `json:"candidateId"`
	Exam          ExamBrief     `json:"exam"`
	Status        AttemptStatus `json:"status"`
	Score         float64       `json:"score"`
	WarningsCount int           `json:"warningsCount"`
	Violations    []Violation   `json:"violations"`
	AnsweredCount int           `json:"answeredCount"`
	StartedAt     time.Time     `json:"startedAt"`
	EndsAt        time.Time     `json:"endsAt"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`
}

// DashboardTotals aggregates a candidate's attempts.
type DashboardTotals struct {
	TotalAttempts   int     `json:"totalAttempts"`
	AverageScore    float64 `json:"averageScore"`
	TotalViolations int     `json:"totalViolations"`
}

// CandidateDashboard is the candidate's attempt history.
type CandidateDashboard struct {
	Attempts []AttemptSummary `json:"attempts"`
	Summary  DashboardTotals  `json:"summary"`
}

// OverviewStats holds platform-wide attempt counters.
type OverviewStats struct {
	Attempts   int `json:"attempts"`
	InProgress int `json:"inProgress"`
}

// AdminOverview lists attempts currently in progress.
type AdminOverview struct {
	Stats          OverviewStats    `json:"stats"`
	LiveMonitoring []AttemptSummary `json:"liveMonitoring"`
}

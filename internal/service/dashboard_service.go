package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/repository"
	"github.com/proctorhub/assessment-backend/internal/response"
)

// DashboardService builds attempt summaries for candidates and admins.
type DashboardService struct {
	store   AttemptStore
	catalog ExamCatalog
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(store AttemptStore, catalog ExamCatalog) *DashboardService {
	return &DashboardService{store: store, catalog: catalog}
}

// CandidateDashboard returns the candidate's attempts, newest first, with totals.
func (s *DashboardService) CandidateDashboard(ctx context.Context, candidateID uuid.UUID) (*model.CandidateDashboard, error) {
	attempts, err := s.store.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	summaries, err := s.summarize(ctx, attempts)
	if err != nil {
		return nil, err
	}

	totals := model.DashboardTotals{TotalAttempts: len(summaries)}
	var scoreSum float64
	for _, sm := range summaries {
		scoreSum += sm.Score
		totals.TotalViolations += len(sm.Violations)
	}
	if len(summaries) > 0 {
		totals.AverageScore = roundTo2(scoreSum / float64(len(summaries)))
	}

	return &model.CandidateDashboard{Attempts: summaries, Summary: totals}, nil
}

// Overview returns platform counters and every attempt still in progress.
func (s *DashboardService) Overview(ctx context.Context) (*model.AdminOverview, error) {
	live, err := s.store.ListInProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("list in-progress attempts: %w", err)
	}
	_, total, err := s.store.List(ctx, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	summaries, err := s.summarize(ctx, live)
	if err != nil {
		return nil, err
	}

	return &model.AdminOverview{
		Stats:          model.OverviewStats{Attempts: total, InProgress: len(live)},
		LiveMonitoring: summaries,
	}, nil
}

// ListAttempts returns one page of all attempts, newest first.
func (s *DashboardService) ListAttempts(ctx context.Context, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	attempts, total, err := s.store.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}

	summaries, err := s.summarize(ctx, attempts)
	if err != nil {
		return nil, nil, err
	}

	return summaries, response.NewPagination(page, perPage, total), nil
}

// ExamSnapshot returns the exam and the summaries of all its attempts, used
// as the first frame of the live monitor stream.
func (s *DashboardService) ExamSnapshot(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.AttemptSummary, error) {
	exam, err := s.catalog.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrExamNotFound
		}
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}

	attempts, err := s.store.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}

	summaries, err := s.summarize(ctx, attempts)
	if err != nil {
		return nil, nil, err
	}
	return exam, summaries, nil
}

func (s *DashboardService) summarize(ctx context.Context, attempts []model.Attempt) ([]model.AttemptSummary, error) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.After(attempts[j].StartedAt)
	})

	briefs := make(map[uuid.UUID]model.ExamBrief)
	out := make([]model.AttemptSummary, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]

		brief, ok := briefs[a.ExamID]
		if !ok {
			brief = model.ExamBrief{ID: a.ExamID}
			exam, err := s.catalog.GetExam(ctx, a.ExamID)
			switch {
			case err == nil:
				brief.Title = exam.Title
				brief.Category = exam.Category
				brief.SubCategory = exam.SubCategory
				brief.DurationMinutes = exam.DurationMinutes
			case !errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("get exam %s: %w", a.ExamID, err)
			}
			briefs[a.ExamID] = brief
		}

		violations := a.Violations
		if violations == nil {
			violations = []model.Violation{}
		}
		out = append(out, model.AttemptSummary{
			ID:            a.ID,
			CandidateID:   a.CandidateID,
			Exam:          brief,
			Status:        a.Status,
			Score:         a.Score,
			WarningsCount: a.WarningsCount,
			Violations:    violations,
			AnsweredCount: len(a.Answers),
			StartedAt:     a.StartedAt,
			EndsAt:        a.EndsAt,
			SubmittedAt:   a.SubmittedAt,
		})
	}
	return out, nil
}

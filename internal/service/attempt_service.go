package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/repository"
	"github.com/rs/zerolog"
)

// DefaultMaxWarnings is the warning count that terminates an attempt.
const DefaultMaxWarnings = 5

// AttemptService owns the attempt lifecycle: start, answer collection,
// violation ingestion and final scoring.
type AttemptService struct {
	store       AttemptStore
	catalog     ExamCatalog
	access      AccessChecker
	events      EventPublisher
	log         zerolog.Logger
	maxWarnings int
	now         func() time.Time
}

// AttemptOption customizes an AttemptService.
type AttemptOption func(*AttemptService)

// WithMaxWarnings overrides the warning limit.
func WithMaxWarnings(n int) AttemptOption {
	return func(s *AttemptService) {
		if n > 0 {
			s.maxWarnings = n
		}
	}
}

// WithClock overrides the wall clock used for deadlines and timestamps.
func WithClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	store AttemptStore,
	catalog ExamCatalog,
	access AccessChecker,
	events EventPublisher,
	log zerolog.Logger,
	opts ...AttemptOption,
) *AttemptService {
	if events == nil {
		events = NopPublisher{}
	}
	s := &AttemptService{
		store:       store,
		catalog:     catalog,
		access:      access,
		events:      events,
		log:         log.With().Str("component", "attempt_service").Logger(),
		maxWarnings: DefaultMaxWarnings,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxWarnings returns the configured warning limit.
func (s *AttemptService) MaxWarnings() int {
	return s.maxWarnings
}

// Start creates a new attempt with a freshly shuffled question order.
func (s *AttemptService) Start(ctx context.Context, candidateID, examID uuid.UUID, mode model.NavigationMode) (*model.StartAttemptResponse, error) {
	if mode == "" {
		mode = model.NavigationFree
	}
	if !mode.Valid() {
		return nil, ErrInvalidNavigation
	}

	exam, err := s.catalog.GetActiveExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	ok, err := s.access.HasAccess(ctx, candidateID, examID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return nil, ErrNoExamAccess
	}

	order := exam.QuestionIDs()
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	now := s.now()
	attempt := &model.Attempt{
		ID:             uuid.New(),
		CandidateID:    candidateID,
		ExamID:         exam.ID,
		Status:         model.AttemptStatusInProgress,
		StartedAt:      now,
		EndsAt:         now.Add(exam.Duration()),
		QuestionOrder:  order,
		Answers:        []model.Answer{},
		Violations:     []model.Violation{},
		TotalQuestions: len(exam.Questions),
		NavigationMode: mode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.logTransition(attempt, "Attempt started")
	s.publish(ctx, model.NewAttemptEvent(model.EventAttemptStarted, attempt, nil, now))

	return &model.StartAttemptResponse{
		AttemptID: attempt.ID,
		Exam: model.ExamBrief{
			ID:              exam.ID,
			Title:           exam.Title,
			DurationMinutes: exam.DurationMinutes,
			NavigationMode:  attempt.NavigationMode,
		},
		EndsAt:    attempt.EndsAt,
		Questions: CandidateQuestions(exam, attempt.QuestionOrder),
	}, nil
}

// GetState returns the candidate's view of an attempt.
func (s *AttemptService) GetState(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.getAttempt(ctx, attemptID, candidateID)
	if err != nil {
		return nil, err
	}

	exam, err := s.examFor(ctx, attempt)
	if err != nil {
		return nil, err
	}

	return &model.AttemptState{
		AttemptID:      attempt.ID,
		Status:         attempt.Status,
		EndsAt:         attempt.EndsAt,
		WarningsCount:  attempt.WarningsCount,
		Questions:      CandidateQuestions(exam, attempt.QuestionOrder),
		Answers:        attempt.Answers,
		NavigationMode: attempt.NavigationMode,
	}, nil
}

// SubmitAnswer upserts one answer. Past the deadline the attempt is closed
// as auto_submitted instead (without scoring) and ErrTimeOver is returned.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, candidateID uuid.UUID, ans model.Answer) error {
	if ans.SelectedOptionID == "" && ans.TextAnswer == "" && ans.CodeAnswer == "" {
		return ErrEmptyAnswer
	}

	var timedOut bool
	updated, err := s.store.Update(ctx, attemptID, candidateID, func(a *model.Attempt) error {
		timedOut = false
		if a.Status.IsTerminal() {
			return &AttemptClosedError{Status: a.Status}
		}
		now := s.now()
		if a.Expired(now) {
			a.Finalize(model.AttemptStatusAutoSubmitted, now)
			timedOut = true
			return nil
		}
		a.UpsertAnswer(ans)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return s.storeErr(err)
	}

	if timedOut {
		s.logTransition(updated, "Attempt auto-submitted on late answer")
		s.publish(ctx, model.NewAttemptEvent(model.EventAttemptAutoSubmitted, updated, nil, *updated.SubmittedAt))
		return ErrTimeOver
	}
	return nil
}

// RecordViolation appends a violation and applies the escalation policy.
// Termination paths do not score the attempt; score stays 0 until submit
// is called, which is then a no-op returning the terminal state.
func (s *AttemptService) RecordViolation(ctx context.Context, attemptID, candidateID uuid.UUID, vt model.ViolationType) (*model.ViolationOutcome, error) {
	verdict, err := ClassifyViolation(vt)
	if err != nil {
		return nil, err
	}

	var (
		outcome   model.ViolationOutcome
		violation model.Violation
	)
	updated, err := s.store.Update(ctx, attemptID, candidateID, func(a *model.Attempt) error {
		if a.Status.IsTerminal() {
			return &AttemptClosedError{Status: a.Status}
		}
		now := s.now()
		violation = model.Violation{
			Type:      vt,
			Severity:  verdict.Severity,
			Message:   verdict.Message,
			Timestamp: now,
		}
		a.Violations = append(a.Violations, violation)
		a.UpdatedAt = now

		if verdict.Critical() {
			a.Finalize(model.AttemptStatusTerminated, now)
			outcome = model.ViolationOutcome{
				Terminated:    true,
				WarningsCount: a.WarningsCount,
				Message:       "Assessment terminated",
			}
			return nil
		}

		a.WarningsCount++
		if a.WarningsCount >= s.maxWarnings {
			a.Finalize(model.AttemptStatusTerminated, now)
			outcome = model.ViolationOutcome{
				Terminated:    true,
				WarningsCount: a.WarningsCount,
				Message:       fmt.Sprintf("Assessment terminated after %d warnings", s.maxWarnings),
			}
			return nil
		}

		outcome = model.ViolationOutcome{
			Warning:           true,
			WarningsCount:     a.WarningsCount,
			RemainingWarnings: s.maxWarnings - a.WarningsCount,
			Message:           fmt.Sprintf("Warning %d/%d", a.WarningsCount, s.maxWarnings),
		}
		return nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}

	eventType := model.EventAttemptWarning
	if outcome.Terminated {
		eventType = model.EventAttemptTerminated
		s.log.Info().
			Str("attempt_id", updated.ID.String()).
			Str("candidate_id", updated.CandidateID.String()).
			Str("violation", string(vt)).
			Int("warnings", updated.WarningsCount).
			Msg("Attempt terminated by proctoring")
	}
	s.publish(ctx, model.NewAttemptEvent(eventType, updated, &violation, violation.Timestamp))

	return &outcome, nil
}

// Submit scores and closes an in-progress attempt. Calling it on an attempt
// that is already terminal returns the stored result without re-scoring.
func (s *AttemptService) Submit(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.SubmitResult, error) {
	current, err := s.getAttempt(ctx, attemptID, candidateID)
	if err != nil {
		return nil, err
	}
	// Terminal status is permanent, so this read needs no lock.
	if current.Status.IsTerminal() {
		return alreadySubmitted(current), nil
	}

	exam, err := s.examFor(ctx, current)
	if err != nil {
		return nil, err
	}

	var final *model.Attempt
	updated, err := s.store.Update(ctx, attemptID, candidateID, func(a *model.Attempt) error {
		final = nil
		if a.Status.IsTerminal() {
			final = a.Clone()
			return errAttemptFinal
		}
		now := s.now()
		a.Score = ScoreAttempt(exam, a.Answers)
		status := model.AttemptStatusCompleted
		if a.Expired(now) {
			status = model.AttemptStatusAutoSubmitted
		}
		a.Finalize(status, now)
		return nil
	})
	if errors.Is(err, errAttemptFinal) && final != nil {
		return alreadySubmitted(final), nil
	}
	if err != nil {
		return nil, s.storeErr(err)
	}

	eventType := model.EventAttemptCompleted
	if updated.Status == model.AttemptStatusAutoSubmitted {
		eventType = model.EventAttemptAutoSubmitted
	}
	s.logTransition(updated, "Attempt submitted and scored")
	s.publish(ctx, model.NewAttemptEvent(eventType, updated, nil, *updated.SubmittedAt))

	return &model.SubmitResult{
		Message:       "Assessment submitted",
		Status:        updated.Status,
		Score:         updated.Score,
		WarningsCount: updated.WarningsCount,
		Violations:    updated.Violations,
	}, nil
}

// ExpireAttempt applies the deadline transition to an in-progress attempt
// whose deadline has passed, exactly as a late SubmitAnswer would. It
// reports whether this call performed the transition.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attemptID, candidateID uuid.UUID) (bool, error) {
	updated, err := s.store.Update(ctx, attemptID, candidateID, func(a *model.Attempt) error {
		now := s.now()
		if a.Status.IsTerminal() || !a.Expired(now) {
			return errAttemptFinal
		}
		a.Finalize(model.AttemptStatusAutoSubmitted, now)
		return nil
	})
	if errors.Is(err, errAttemptFinal) {
		return false, nil
	}
	if err != nil {
		return false, s.storeErr(err)
	}

	s.logTransition(updated, "Expired attempt auto-submitted")
	s.publish(ctx, model.NewAttemptEvent(model.EventAttemptAutoSubmitted, updated, nil, *updated.SubmittedAt))
	return true, nil
}

// CandidateQuestions returns the questions of exam in the given order with
// answer keys stripped. Ids no longer present in the exam are skipped.
func CandidateQuestions(exam *model.Exam, order []uuid.UUID) []model.CandidateQuestion {
	out := make([]model.CandidateQuestion, 0, len(order))
	for _, id := range order {
		q, ok := exam.Question(id)
		if !ok {
			continue
		}
		var cq model.CandidateQuestion
		_ = copier.Copy(&cq, q)
		if q.QuestionType == model.QuestionTypeCoding {
			cq.Coding = &model.CandidateCodingMeta{}
			if q.CodingMeta != nil {
				cq.Coding.Language = q.CodingMeta.Language
				cq.Coding.StarterCode = q.CodingMeta.StarterCode
			}
		}
		if cq.Options == nil {
			cq.Options = []model.Option{}
		}
		out = append(out, cq)
	}
	return out
}

func alreadySubmitted(a *model.Attempt) *model.SubmitResult {
	return &model.SubmitResult{
		Message:          "Attempt already submitted",
		AlreadySubmitted: true,
		Status:           a.Status,
		Score:            a.Score,
		WarningsCount:    a.WarningsCount,
		Violations:       a.Violations,
	}
}

func (s *AttemptService) getAttempt(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error) {
	a, err := s.store.Get(ctx, attemptID, candidateID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return a, nil
}

// examFor loads the definition an attempt was started against, whether or
// not the exam is still active.
func (s *AttemptService) examFor(ctx context.Context, a *model.Attempt) (*model.Exam, error) {
	exam, err := s.catalog.GetExam(ctx, a.ExamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// storeErr translates store errors into domain errors, passing through
// errors raised by mutate callbacks.
func (s *AttemptService) storeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrAttemptNotFound
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return ErrConcurrentWrite
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return err
	default:
		return fmt.Errorf("attempt store: %w", err)
	}
}

func (s *AttemptService) publish(ctx context.Context, ev model.AttemptEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", ev.AttemptID.String()).
			Str("event", string(ev.Type)).
			Msg("Failed to publish attempt event")
	}
}

func (s *AttemptService) logTransition(a *model.Attempt, msg string) {
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("candidate_id", a.CandidateID.String()).
		Str("exam_id", a.ExamID.String()).
		Str("status", string(a.Status)).
		Float64("score", a.Score).
		Msg(msg)
}

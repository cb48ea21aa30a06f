package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorhub/assessment-backend/internal/model"
)

const attemptColumns = `id, candidate_id, exam_id, status, started_at, ends_at, submitted_at,
	warnings_count, question_order, answers, violations, score, total_questions,
	navigation_mode, created_at, updated_at`

// AttemptRepository stores attempts in PostgreSQL. Answers, violations and
// the question order live in jsonb columns next to the scalar state.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	order, answers, violations, err := encodeAttemptDocs(a)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.CandidateID, a.ExamID, a.Status, a.StartedAt, a.EndsAt, a.SubmittedAt,
		a.WarningsCount, order, answers, violations, a.Score, a.TotalQuestions,
		a.NavigationMode, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt owned by candidateID.
func (r *AttemptRepository) Get(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 AND candidate_id = $2`,
		attemptID, candidateID)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// Update locks the attempt row for the duration of mutate, so concurrent
// writers to the same attempt queue behind each other.
func (r *AttemptRepository) Update(ctx context.Context, attemptID, candidateID uuid.UUID, mutate func(a *model.Attempt) error) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 AND candidate_id = $2 FOR UPDATE`,
		attemptID, candidateID)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(a); err != nil {
		return nil, err
	}

	order, answers, violations, err := encodeAttemptDocs(a)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $2, submitted_at = $3, warnings_count = $4, question_order = $5,
		     answers = $6, violations = $7, score = $8, updated_at = $9
		 WHERE id = $1`,
		a.ID, a.Status, a.SubmittedAt, a.WarningsCount, order, answers, violations, a.Score, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

// ListByCandidate retrieves all attempts of a candidate, newest first.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE candidate_id = $1 ORDER BY started_at DESC`,
		candidateID)
}

// ListByExam retrieves all attempts of an exam, newest first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE exam_id = $1 ORDER BY started_at DESC`,
		examID)
}

// ListInProgress retrieves every attempt that is still running.
func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE status = $1 ORDER BY started_at DESC`,
		model.AttemptStatusInProgress)
}

// ListExpired retrieves up to limit running attempts whose deadline passed.
func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE status = $1 AND ends_at < $2
		 ORDER BY ends_at ASC
		 LIMIT $3`,
		model.AttemptStatusInProgress, now, limit)
}

// List retrieves one page of attempts, newest first, plus the total count.
func (r *AttemptRepository) List(ctx context.Context, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	attempts, err := r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (r *AttemptRepository) query(ctx context.Context, sql string, args ...any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]model.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.Attempt, error) {
	var (
		a                          model.Attempt
		order, answers, violations []byte
	)
	err := row.Scan(&a.ID, &a.CandidateID, &a.ExamID, &a.Status, &a.StartedAt, &a.EndsAt, &a.SubmittedAt,
		&a.WarningsCount, &order, &answers, &violations, &a.Score, &a.TotalQuestions,
		&a.NavigationMode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(order, &a.QuestionOrder); err != nil {
		return nil, fmt.Errorf("decode question_order: %w", err)
	}
	if err := decodeJSONColumn(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := decodeJSONColumn(violations, &a.Violations); err != nil {
		return nil, fmt.Errorf("decode violations: %w", err)
	}
	return &a, nil
}

func decodeJSONColumn(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeAttemptDocs(a *model.Attempt) (order, answers, violations []byte, err error) {
	if order, err = json.Marshal(nonNil(a.QuestionOrder)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode question_order: %w", err)
	}
	if answers, err = json.Marshal(nonNil(a.Answers)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	if violations, err = json.Marshal(nonNil(a.Violations)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode violations: %w", err)
	}
	return order, answers, violations, nil
}

// nonNil keeps empty collections as [] instead of null in jsonb.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

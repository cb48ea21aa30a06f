package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorhub/assessment-backend/internal/model"
)

// ExamRepository reads exam definitions from PostgreSQL.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetExam retrieves an exam with its questions in catalog order.
func (r *ExamRepository) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, category, sub_category, description, duration_minutes,
		        supports_coding, is_active, created_at
		 FROM exams WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &e.Category, &e.SubCategory, &e.Description, &e.DurationMinutes,
		&e.SupportsCoding, &e.Active, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	questions, err := r.questions(ctx, examID)
	if err != nil {
		return nil, err
	}
	e.Questions = questions
	return e, nil
}

// GetActiveExam is GetExam restricted to exams open for new attempts.
func (r *ExamRepository) GetActiveExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e, err := r.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, fmt.Errorf("exam %s inactive: %w", examID, ErrNotFound)
	}
	return e, nil
}

func (r *ExamRepository) questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, question_type, options, correct_option_id, coding_meta
		 FROM exam_questions
		 WHERE exam_id = $1
		 ORDER BY position ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]model.Question, 0)
	for rows.Next() {
		var (
			q             model.Question
			options       []byte
			correctOption *string
			codingMeta    []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.QuestionType, &options, &correctOption, &codingMeta); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		if correctOption != nil {
			q.CorrectOptionID = *correctOption
		}
		if len(codingMeta) > 0 && string(codingMeta) != "null" {
			q.CodingMeta = &model.CodingMeta{}
			if err := json.Unmarshal(codingMeta, q.CodingMeta); err != nil {
				return nil, fmt.Errorf("decode coding meta of question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessRepository answers exam entitlement questions from candidate_exams,
// which the purchase and assignment flows write to.
type AccessRepository struct {
	pool *pgxpool.Pool
}

// NewAccessRepository creates a new AccessRepository.
func NewAccessRepository(pool *pgxpool.Pool) *AccessRepository {
	return &AccessRepository{pool: pool}
}

// HasAccess reports whether the candidate holds the exam.
func (r *AccessRepository) HasAccess(ctx context.Context, candidateID, examID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM candidate_exams WHERE candidate_id = $1 AND exam_id = $2
		)`, candidateID, examID,
	).Scan(&ok)
	return ok, err
}

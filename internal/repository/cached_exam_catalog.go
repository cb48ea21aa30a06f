package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamSource is the uncached exam lookup behind CachedExamCatalog.
type ExamSource interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// CachedExamCatalog keeps serialized exam definitions in Redis so the hot
// attempt paths skip the question join. Redis failures fall through to the
// source; a stale entry lives at most ttl.
type CachedExamCatalog struct {
	source ExamSource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedExamCatalog creates a new CachedExamCatalog.
func NewCachedExamCatalog(source ExamSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamCatalog {
	return &CachedExamCatalog{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "exam_cache").Logger(),
	}
}

// GetExam returns the exam from cache, loading and caching it on a miss.
func (c *CachedExamCatalog) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamDefinitionKey(examID.String())

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		c.log.Warn().Str("exam_id", examID.String()).Msg("Discarding undecodable cached exam")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache read failed")
	}

	exam, err := c.source.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(exam); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}

// GetActiveExam is GetExam restricted to active exams.
func (c *CachedExamCatalog) GetActiveExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := c.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Active {
		return nil, fmt.Errorf("exam %s inactive: %w", examID, ErrNotFound)
	}
	return exam, nil
}

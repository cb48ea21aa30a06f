package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.AttemptEvent) error { return nil }

// MultiPublisher fans an event out to several publishers, joining their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, ev model.AttemptEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisPublisher pushes attempt events to the exam's live monitor channel
// and queues violations for the proctor log worker.
type RedisPublisher struct {
	rdb *redis.Client
	// queueViolations is false when no worker drains the proctor log queue.
	queueViolations bool
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(rdb *redis.Client, queueViolations bool) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, queueViolations: queueViolations}
}

// ProctorLogEntry is the queued form of one recorded violation.
type ProctorLogEntry struct {
	AttemptID   string `json:"attempt_id"`
	ExamID      string `json:"exam_id"`
	CandidateID string `json:"candidate_id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.AttemptEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), payload)

	if p.queueViolations && ev.Violation != nil {
		entry, err := json.Marshal(ProctorLogEntry{
			AttemptID:   ev.AttemptID.String(),
			ExamID:      ev.ExamID.String(),
			CandidateID: ev.CandidateID.String(),
			Type:        string(ev.Violation.Type),
			Severity:    string(ev.Violation.Severity),
			Message:     ev.Violation.Message,
			Timestamp:   ev.Violation.Timestamp.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("marshal proctor log entry: %w", err)
		}
		pipe.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, entry)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

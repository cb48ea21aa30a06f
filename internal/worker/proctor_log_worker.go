package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// proctorLogDB is the part of pgxpool.Pool the worker writes through.
type proctorLogDB interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var proctorLogColumns = []string{"attempt_id", "exam_id", "candidate_id", "violation_type", "severity", "message", "recorded_at"}

// ProctorLogWorker drains queued violations from Redis into the
// proctor_event_log table in batches.
type ProctorLogWorker struct {
	db  proctorLogDB
	rdb *redis.Client
	log zerolog.Logger

	requeue    func(ctx context.Context, items []service.ProctorLogEntry)
	retryPause time.Duration
}

// NewProctorLogWorker creates a new ProctorLogWorker.
func NewProctorLogWorker(db proctorLogDB, rdb *redis.Client, log zerolog.Logger) *ProctorLogWorker {
	w := &ProctorLogWorker{
		db:         db,
		rdb:        rdb,
		log:        log.With().Str("component", "proctor_log_worker").Logger(),
		retryPause: 2 * time.Second,
	}
	w.requeue = w.requeueRedis
	return w
}

// Start consumes the queue until ctx is cancelled, then flushes what it holds.
func (w *ProctorLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ProctorLogWorker started")

	buffer := make([]service.ProctorLogEntry, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop returns at once when data exists, else after PollTimeout.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistProctorEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var entry service.ProctorLogEntry
		if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
			// Malformed JSON can never succeed.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed proctor log entry")
			continue
		}
		buffer = append(buffer, entry)
	}
}

// flush tries one COPY for the whole batch, then row by row, requeueing
// rows the database refused.
func (w *ProctorLogWorker) flush(ctx context.Context, batch []service.ProctorLogEntry) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ProctorLogWorker) bulkInsert(ctx context.Context, batch []service.ProctorLogEntry) error {
	rows := make([][]any, 0, len(batch))
	for _, e := range batch {
		row, err := proctorLogRow(e)
		if err != nil {
			// The fallback path drops the bad row on its own.
			return err
		}
		rows = append(rows, row)
	}

	_, err := w.db.CopyFrom(ctx, pgx.Identifier{"proctor_event_log"}, proctorLogColumns, pgx.CopyFromRows(rows))
	return err
}

func (w *ProctorLogWorker) fallbackInsert(ctx context.Context, batch []service.ProctorLogEntry) {
	requeue := make([]service.ProctorLogEntry, 0)

	for _, e := range batch {
		row, err := proctorLogRow(e)
		if err != nil {
			w.log.Error().Err(err).Str("attempt_id", e.AttemptID).Msg("Dropping proctor log entry with invalid ids")
			continue
		}

		_, err = w.db.Exec(ctx,
			`INSERT INTO proctor_event_log (attempt_id, exam_id, candidate_id, violation_type, severity, message, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row...,
		)
		if err != nil {
			w.log.Error().Err(err).Str("attempt_id", e.AttemptID).Msg("Insert failed, requeueing")
			requeue = append(requeue, e)
		}
	}

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *ProctorLogWorker) requeueRedis(ctx context.Context, items []service.ProctorLogEntry) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue proctor log entries. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Back off so a down database is not hammered.
	time.Sleep(w.retryPause)
}

func (w *ProctorLogWorker) shutdown(buffer []service.ProctorLogEntry) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")
	if len(buffer) == 0 {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flush(shutdownCtx, buffer)
}

func proctorLogRow(e service.ProctorLogEntry) ([]any, error) {
	attemptID, err := uuid.Parse(e.AttemptID)
	if err != nil {
		return nil, err
	}
	examID, err := uuid.Parse(e.ExamID)
	if err != nil {
		return nil, err
	}
	candidateID, err := uuid.Parse(e.CandidateID)
	if err != nil {
		return nil, err
	}
	return []any{
		attemptID, examID, candidateID, e.Type, e.Severity, e.Message,
		time.UnixMilli(e.Timestamp).UTC(),
	}, nil
}

package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/repository"
)

const (
	ArchiveBatchSize    = 50
	ArchiveBatchTimeout = 2 * time.Second
	ArchivePollTimeout  = 1 * time.Second
)

// ArchiveWorker drains graded practice attempts from the Redis queue into
// the PostgreSQL archive in batches. Grading itself happens upstream; the
// archive only has to be eventually consistent, which is why submissions
// go through a queue instead of a synchronous insert.
type ArchiveWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewArchiveWorker creates a new ArchiveWorker.
func NewArchiveWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *ArchiveWorker {
	return &ArchiveWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "archive_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled, flushing the final
// batch on shutdown.
func (w *ArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ArchiveWorker started")

	batch := make([]*repository.AttemptPayload, 0, ArchiveBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ArchiveBatchSize || time.Since(lastFlush) >= ArchiveBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ArchivePollTimeout, config.WorkerKey.ArchiveAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p repository.AttemptPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flushSafe writes a batch, falling back to per-row inserts with requeue
// on failure so no attempt record is ever lost.
func (w *ArchiveWorker) flushSafe(ctx context.Context, batch []*repository.AttemptPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.attempts.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk archive failed, using fallback")

		for _, p := range batch {
			if err := w.attempts.Insert(ctx, p); err != nil {
				w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Insert failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.ArchiveAttemptsQueue, raw)
			}
		}
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/model"
)

// ChatSnapshot is the persisted slice of a user's chat state. It survives
// navigation away from the chat surface but not past the login session.
type ChatSnapshot struct {
	Messages         []model.ChatMessage `json:"messages"`
	HasLoadedHistory bool                `json:"has_loaded_history"`
	ShowLoadHistory  bool                `json:"show_load_history"`
	SavedAt          time.Time           `json:"saved_at"`
}

// SnapshotService persists per-user chat snapshots and per-login visit
// markers in Redis.
type SnapshotService struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		rdb: rdb,
		ttl: cfg.SnapshotTTL,
		log: log.With().Str("component", "snapshot_service").Logger(),
	}
}

// Save overwrites the user's snapshot. Failures are logged, not
// propagated: snapshotting is best-effort and never blocks the chat flow.
func (s *SnapshotService) Save(ctx context.Context, userID int, snap *ChatSnapshot) {
	snap.SavedAt = time.Now()

	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Snapshot encode failed")
		return
	}

	key := config.CacheKey.ChatSnapshotKey(userID)
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Snapshot save failed")
	}
}

// Load fetches the user's snapshot. Returns (nil, nil) when no snapshot
// exists. A corrupt snapshot is reported as an error so the caller can
// fall back to the fresh greeting flow.
func (s *SnapshotService) Load(ctx context.Context, userID int) (*ChatSnapshot, error) {
	key := config.CacheKey.ChatSnapshotKey(userID)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap ChatSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the user's snapshot.
func (s *SnapshotService) Clear(ctx context.Context, userID int) {
	if err := s.rdb.Del(ctx, config.CacheKey.ChatSnapshotKey(userID)).Err(); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Snapshot clear failed")
	}
}

// MarkVisited records that this login session has opened the chat
// surface. The marker shares the snapshot TTL.
func (s *SnapshotService) MarkVisited(ctx context.Context, userID int, loginUnix int64) {
	key := config.CacheKey.ChatVisitedKey(userID, loginUnix)
	if err := s.rdb.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Visit marker save failed")
	}
}

// HasVisited reports whether this login session has opened the chat
// surface before. Redis errors are treated as "not visited" so the user
// gets the safe first-visit path.
func (s *SnapshotService) HasVisited(ctx context.Context, userID int, loginUnix int64) bool {
	key := config.CacheKey.ChatVisitedKey(userID, loginUnix)

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Visit marker read failed")
		return false
	}
	return n > 0
}

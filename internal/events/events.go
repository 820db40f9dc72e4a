// Package events carries chat-surface events from the orchestrator and
// practice controller to connected WebSocket clients. Delivery goes
// through Redis PubSub on a per-user channel, so subscribers register by
// user id and deregister by closing their subscription. No event ever
// crosses between components outside this channel.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/config"
)

// Type enumerates chat-surface event kinds.
type Type string

const (
	// TypeMessageAppended fires when a message lands in the store.
	TypeMessageAppended Type = "message_appended"
	// TypeGenerating fires when a practice-generation starts or ends.
	TypeGenerating Type = "generating"
	// TypePracticeReady fires when a directive message becomes available.
	TypePracticeReady Type = "practice_ready"
	// TypeGraded fires when a practice submission is graded.
	TypeGraded Type = "graded"
)

// Event is one chat-surface notification. Payload is event-specific and
// already JSON-encoded by the publisher.
type Event struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher fans chat events out to a user's subscribers.
type Publisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		rdb: rdb,
		log: log.With().Str("component", "events").Logger(),
	}
}

// Publish sends an event to the user's channel. Failures are logged, not
// propagated: event delivery is best-effort and never blocks chat state
// transitions.
func (p *Publisher) Publish(ctx context.Context, userID int, typ Type, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			p.log.Error().Err(err).Str("type", string(typ)).Msg("Event payload encode failed")
			return
		}
		raw = encoded
	}

	msg, err := json.Marshal(Event{Type: typ, Payload: raw})
	if err != nil {
		p.log.Error().Err(err).Str("type", string(typ)).Msg("Event encode failed")
		return
	}

	channel := config.CacheKey.ChatEventChannel(userID)
	if err := p.rdb.Publish(ctx, channel, msg).Err(); err != nil {
		p.log.Warn().Err(err).Str("type", string(typ)).Msg("Event publish failed")
	}
}

// Subscribe opens a subscription to the user's event channel. The caller
// owns the returned PubSub and must Close it on disconnect.
func (p *Publisher) Subscribe(ctx context.Context, userID int) *redis.PubSub {
	return p.rdb.Subscribe(ctx, config.CacheKey.ChatEventChannel(userID))
}

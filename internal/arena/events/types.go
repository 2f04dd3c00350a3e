package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a match lifecycle event.
type EventType string

const (
	EventTypeMatchStarted EventType = "MatchStarted"
	EventTypeMatchEnded   EventType = "MatchEnded"
)

// Event is a single match lifecycle event ready for publishing.
type Event struct {
	ID      uuid.UUID
	Type    EventType
	MatchID uuid.UUID
	Payload []byte
}

// MatchStartedPayload describes a freshly paired match.
type MatchStartedPayload struct {
	MatchID   string    `json:"match_id"`
	Players   []string  `json:"players"`
	Duration  int       `json:"duration_sec"`
	StartedAt time.Time `json:"started_at"`
}

// MatchEndedPayload describes a finalized match. Scores and Results are
// empty when the match ended through a disconnect before completion.
type MatchEndedPayload struct {
	MatchID string            `json:"match_id"`
	Reason  string            `json:"reason"` // "completed" or "opponent_disconnected"
	Scores  map[string]int    `json:"scores,omitempty"`
	Results map[string]string `json:"results,omitempty"`
	EndedAt time.Time         `json:"ended_at"`
}

// Publisher emits match lifecycle events to an external consumer.
// Implementations must treat publishing as telemetry: the engine never
// branches on the outcome.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards all events. Wired when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/clickarena/internal/arena/events"
)

// Config holds engine configuration.
type Config struct {
	// MatchDuration is the fixed length of every duel.
	MatchDuration time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MatchDuration: 10 * time.Second,
	}
}

// Arena owns the matchmaking queue and the active-match table and routes
// connection events into match sessions. The gateway drives it through
// Connect, HandleMessage and Disconnect; everything else is internal.
type Arena struct {
	cfg       Config
	clock     clockwork.Clock
	publisher events.Publisher

	mu      sync.Mutex
	queue   waitQueue
	matches map[Conn]*Match

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewArena creates an arena. A nil clock falls back to the real clock and a
// nil publisher to the no-op publisher.
func NewArena(cfg Config, clock clockwork.Clock, publisher events.Publisher) *Arena {
	if cfg.MatchDuration <= 0 {
		cfg.MatchDuration = DefaultConfig().MatchDuration
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Arena{
		cfg:       cfg,
		clock:     clock,
		publisher: publisher,
		matches:   make(map[Conn]*Match),
		closeCh:   make(chan struct{}),
	}
}

// Connect admits a new connection: greets it, parks it in the queue, and
// starts a match as soon as two connections are waiting.
func (a *Arena) Connect(conn Conn) {
	conn.Send(WaitingMessage{Type: msgTypeWaiting})

	a.mu.Lock()
	a.queue.enqueue(conn)
	p1, p2, ok := a.queue.tryPair()
	if !ok {
		a.mu.Unlock()
		log.Debug().Str("conn_id", conn.ID()).Msg("connection queued for matchmaking")
		return
	}
	m := newMatch(p1, p2, a.clock, a.cfg.MatchDuration)
	a.matches[p1] = m
	a.matches[p2] = m
	a.mu.Unlock()

	log.Info().
		Str("match_id", m.ID().String()).
		Str("player1", p1.ID()).
		Str("player2", p2.ID()).
		Dur("duration", a.cfg.MatchDuration).
		Msg("match started")

	start := StartMessage{Type: msgTypeStart, Duration: int(a.cfg.MatchDuration / time.Second)}
	p1.Send(start)
	p2.Send(start)

	a.scheduleDeadline(m)
	a.publishMatchStarted(m)
}

// HandleMessage routes one inbound frame from conn. Unknown or malformed
// frames are ignored.
func (a *Arena) HandleMessage(conn Conn, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Str("conn_id", conn.ID()).Msg("dropping malformed frame")
		return
	}

	switch msg.Type {
	case inboundTypeClick:
		a.mu.Lock()
		m := a.matches[conn]
		a.mu.Unlock()
		if m == nil {
			return
		}
		m.RecordHit(conn)
	default:
		// Unknown types are a forward-compatible no-op.
	}
}

// Disconnect runs the teardown for a dropped connection: removes it from
// the queue if unpaired, otherwise finalizes its match in favor of the
// surviving participant.
func (a *Arena) Disconnect(conn Conn) {
	a.mu.Lock()
	a.queue.remove(conn)
	m := a.matches[conn]
	a.mu.Unlock()

	if m == nil {
		return
	}

	survivor := m.Other(conn)
	if !m.EndWithDisconnectWinner(survivor) {
		// Lost the race against the deadline timer; nothing left to do.
		return
	}
	a.removeMatch(m)

	log.Info().
		Str("match_id", m.ID().String()).
		Str("disconnected", conn.ID()).
		Str("survivor", survivor.ID()).
		Msg("match ended by disconnect")

	a.publishMatchEnded(m, Outcome{Reason: ReasonOpponentDisconnected})
}

// Stats reports the number of active matches and queued connections.
func (a *Arena) Stats() (activeMatches, waiting int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.matches) / 2, a.queue.len()
}

// Close releases pending deadline timers. Safe to call more than once.
func (a *Arena) Close() {
	a.closeOnce.Do(func() {
		close(a.closeCh)
	})
}

// scheduleDeadline arms the one-shot deadline for m. No cancellation path:
// a timer firing after the match was finalized by disconnect hits the
// idempotent End and stops there.
func (a *Arena) scheduleDeadline(m *Match) {
	timer := a.clock.NewTimer(a.cfg.MatchDuration)
	go func() {
		select {
		case <-timer.Chan():
			a.endMatch(m)
		case <-a.closeCh:
			stopAndDrainTimer(timer)
		}
	}()
}

// endMatch finalizes m on deadline expiry.
func (a *Arena) endMatch(m *Match) {
	out, ok := m.End()
	if !ok {
		return
	}
	a.removeMatch(m)

	log.Info().
		Str("match_id", m.ID().String()).
		Int("score1", out.Scores[0]).
		Int("score2", out.Scores[1]).
		Msg("match completed")

	a.publishMatchEnded(m, out)
}

func (a *Arena) removeMatch(m *Match) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range m.Players() {
		delete(a.matches, p)
	}
}

func (a *Arena) publishMatchStarted(m *Match) {
	players := m.Players()
	payload, err := json.Marshal(events.MatchStartedPayload{
		MatchID:   m.ID().String(),
		Players:   []string{players[0].ID(), players[1].ID()},
		Duration:  int(a.cfg.MatchDuration / time.Second),
		StartedAt: m.StartedAt(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal MatchStarted payload")
		return
	}
	a.publish(events.Event{
		ID:      uuid.New(),
		Type:    events.EventTypeMatchStarted,
		MatchID: m.ID(),
		Payload: payload,
	})
}

func (a *Arena) publishMatchEnded(m *Match, out Outcome) {
	players := m.Players()
	p := events.MatchEndedPayload{
		MatchID: m.ID().String(),
		Reason:  out.Reason,
		EndedAt: a.clock.Now(),
	}
	if out.Reason != ReasonOpponentDisconnected {
		p.Scores = map[string]int{
			players[0].ID(): out.Scores[0],
			players[1].ID(): out.Scores[1],
		}
		p.Results = map[string]string{
			players[0].ID(): out.Results[0],
			players[1].ID(): out.Results[1],
		}
	}
	payload, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal MatchEnded payload")
		return
	}
	a.publish(events.Event{
		ID:      uuid.New(),
		Type:    events.EventTypeMatchEnded,
		MatchID: m.ID(),
		Payload: payload,
	})
}

// publish is fire-and-forget: lifecycle events are telemetry and never
// block or fail match flow.
func (a *Arena) publish(ev events.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.publisher.Publish(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("event_type", string(ev.Type)).
				Str("match_id", ev.MatchID.String()).
				Msg("failed to publish lifecycle event")
		}
	}()
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

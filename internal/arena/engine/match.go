package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Conn is the engine's view of one participant: an opaque duplex channel
// with reference identity. Send is best-effort and reports nothing; the
// engine never branches on delivery.
type Conn interface {
	ID() string
	Send(v interface{})
}

// Match is one active or concluded duel between exactly two connections.
// All mutation goes through the match mutex; the ended flag is checked and
// set inside it so exactly one of the three finalize triggers (deadline,
// explicit end, disconnect) runs its body.
type Match struct {
	id       uuid.UUID
	clock    clockwork.Clock
	duration time.Duration

	mu        sync.Mutex
	players   [2]Conn
	scores    [2]int
	startedAt time.Time
	ended     bool
}

// Outcome summarizes a finalized match. Indexes follow the player slots.
type Outcome struct {
	Reason  string
	Scores  [2]int
	Results [2]string
}

func newMatch(p1, p2 Conn, clock clockwork.Clock, duration time.Duration) *Match {
	return &Match{
		id:        uuid.New(),
		clock:     clock,
		duration:  duration,
		players:   [2]Conn{p1, p2},
		startedAt: clock.Now(),
	}
}

func (m *Match) ID() uuid.UUID { return m.id }

// Players returns both participants in pairing order.
func (m *Match) Players() [2]Conn { return m.players }

// Other returns the participant opposite conn, or nil if conn is not part
// of this match.
func (m *Match) Other(conn Conn) Conn {
	switch {
	case m.players[0] == conn:
		return m.players[1]
	case m.players[1] == conn:
		return m.players[0]
	}
	return nil
}

// StartedAt is the authoritative start instant; the deadline timer and the
// per-hit elapsed guard both measure from it on the same clock.
func (m *Match) StartedAt() time.Time { return m.startedAt }

func (m *Match) playerIndex(conn Conn) int {
	for i, p := range m.players {
		if p == conn {
			return i
		}
	}
	return -1
}

// RecordHit credits one hit to conn and notifies both participants. Hits
// against an ended match, or arriving after the match duration has elapsed,
// are silently dropped. The score mutation and the paired score_update
// sends happen inside one critical section so updates never interleave.
func (m *Match) RecordHit(conn Conn) {
	i := m.playerIndex(conn)
	if i < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return
	}
	if m.clock.Now().Sub(m.startedAt) > m.duration {
		// Late hit: the deadline passed but the timer has not fired yet.
		return
	}

	m.scores[i]++

	m.players[0].Send(ScoreUpdateMessage{
		Type:     msgTypeScoreUpdate,
		You:      m.scores[0],
		Opponent: m.scores[1],
	})
	m.players[1].Send(ScoreUpdateMessage{
		Type:     msgTypeScoreUpdate,
		You:      m.scores[1],
		Opponent: m.scores[0],
	})
}

// End finalizes the match with a score comparison and notifies both
// participants. Returns the outcome and true if this call performed the
// finalization; false if the match was already ended.
func (m *Match) End() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return Outcome{}, false
	}
	m.ended = true

	out := Outcome{
		Reason: "completed",
		Scores: m.scores,
		Results: [2]string{
			resultFor(m.scores[0], m.scores[1]),
			resultFor(m.scores[1], m.scores[0]),
		},
	}

	m.players[0].Send(EndMessage{
		Type:          msgTypeEnd,
		Result:        out.Results[0],
		YourScore:     m.scores[0],
		OpponentScore: m.scores[1],
	})
	m.players[1].Send(EndMessage{
		Type:          msgTypeEnd,
		Result:        out.Results[1],
		YourScore:     m.scores[1],
		OpponentScore: m.scores[0],
	})

	return out, true
}

// EndWithDisconnectWinner finalizes the match after a participant dropped.
// Only the survivor is notified; nothing is attempted toward the closed
// peer. Returns true if this call performed the finalization.
func (m *Match) EndWithDisconnectWinner(survivor Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return false
	}
	m.ended = true

	survivor.Send(DisconnectEndMessage{
		Type:   msgTypeEnd,
		Result: ResultWin,
		Reason: ReasonOpponentDisconnected,
	})

	return true
}

func resultFor(own, opponent int) string {
	switch {
	case own > opponent:
		return ResultWin
	case own < opponent:
		return ResultLose
	}
	return ResultDraw
}

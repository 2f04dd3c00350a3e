package engine

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestArena() (*Arena, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	a := NewArena(Config{MatchDuration: 10 * time.Second}, clock, nil)
	return a, clock
}

var clickFrame = []byte(`{"type":"click"}`)

// waitFor polls cond until it holds or the deadline passes. Used where a
// deadline timer goroutine delivers the result asynchronously.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func (a *Arena) matchOf(conn Conn) *Match {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matches[conn]
}

func TestConnectSendsWaiting(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	c := newFakeConn("a")
	a.Connect(c)

	msgs := c.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if w, ok := msgs[0].(WaitingMessage); !ok || w.Type != "waiting" {
		t.Errorf("first message = %+v, want waiting", msgs[0])
	}
}

func TestFIFOPairing(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	connA := newFakeConn("a")
	connB := newFakeConn("b")
	connC := newFakeConn("c")
	connD := newFakeConn("d")

	a.Connect(connA)
	a.Connect(connB)

	mAB := a.matchOf(connA)
	if mAB == nil || a.matchOf(connB) != mAB {
		t.Fatal("connections A and B were not paired together")
	}

	a.Connect(connC)
	if a.matchOf(connC) != nil {
		t.Fatal("connection C was paired with no opponent available")
	}

	a.Connect(connD)
	mCD := a.matchOf(connC)
	if mCD == nil || a.matchOf(connD) != mCD {
		t.Fatal("connections C and D were not paired together")
	}
	if mCD == mAB {
		t.Fatal("second pair landed in the first match")
	}

	for _, c := range []*fakeConn{connA, connB, connC, connD} {
		var starts int
		for _, m := range c.messages() {
			if s, ok := m.(StartMessage); ok {
				starts++
				if s.Duration != 10 {
					t.Errorf("%s start duration = %d, want 10", c.id, s.Duration)
				}
			}
		}
		if starts != 1 {
			t.Errorf("%s received %d start messages, want 1", c.id, starts)
		}
	}
}

// TestClickScenario runs the full duel from the wire: X clicks three times,
// Y twice, the deadline fires, X wins 3:2.
func TestClickScenario(t *testing.T) {
	a, clock := newTestArena()
	defer a.Close()

	x := newFakeConn("x")
	y := newFakeConn("y")
	a.Connect(x)
	a.Connect(y)

	for i := 0; i < 3; i++ {
		a.HandleMessage(x, clickFrame)
	}
	for i := 0; i < 2; i++ {
		a.HandleMessage(y, clickFrame)
	}

	if got := len(x.scoreUpdates()); got != 5 {
		t.Fatalf("x received %d score updates, want 5", got)
	}

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	waitFor(t, func() bool { return len(x.endMessages()) == 1 && len(y.endMessages()) == 1 })

	ex := x.endMessages()[0].(EndMessage)
	if ex.Result != ResultWin || ex.YourScore != 3 || ex.OpponentScore != 2 {
		t.Errorf("x end = %+v, want win 3:2", ex)
	}
	ey := y.endMessages()[0].(EndMessage)
	if ey.Result != ResultLose || ey.YourScore != 2 || ey.OpponentScore != 3 {
		t.Errorf("y end = %+v, want lose 2:3", ey)
	}

	waitFor(t, func() bool {
		matches, _ := a.Stats()
		return matches == 0
	})
}

func TestClickWithoutMatchIsNoOp(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	c := newFakeConn("solo")
	a.Connect(c)
	a.HandleMessage(c, clickFrame)

	if got := len(c.scoreUpdates()); got != 0 {
		t.Errorf("unmatched click produced %d score updates", got)
	}
}

func TestUnknownAndMalformedFramesIgnored(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	x := newFakeConn("x")
	y := newFakeConn("y")
	a.Connect(x)
	a.Connect(y)
	before := len(x.messages())

	a.HandleMessage(x, []byte(`{"type":"emote","name":"wave"}`))
	a.HandleMessage(x, []byte(`{`))
	a.HandleMessage(x, []byte(`{"kind":"click"}`))

	if got := len(x.messages()); got != before {
		t.Errorf("unknown frames produced %d new messages", got-before)
	}
}

func TestQueuedDisconnectLeavesNoTrace(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	connA := newFakeConn("a")
	a.Connect(connA)
	a.Disconnect(connA)

	if _, waiting := a.Stats(); waiting != 0 {
		t.Fatalf("queue length after disconnect = %d, want 0", waiting)
	}

	// The departed connection must not be paired with the next arrival.
	connB := newFakeConn("b")
	a.Connect(connB)
	if a.matchOf(connB) != nil {
		t.Fatal("connection B was paired against a departed connection")
	}

	connC := newFakeConn("c")
	a.Connect(connC)
	if a.matchOf(connB) == nil || a.matchOf(connB) != a.matchOf(connC) {
		t.Fatal("connections B and C were not paired together")
	}
}

func TestDisconnectMidMatch(t *testing.T) {
	a, clock := newTestArena()
	defer a.Close()

	x := newFakeConn("x")
	y := newFakeConn("y")
	a.Connect(x)
	a.Connect(y)

	a.Disconnect(x)

	ends := y.endMessages()
	if len(ends) != 1 {
		t.Fatalf("survivor received %d end messages, want 1", len(ends))
	}
	e := ends[0].(DisconnectEndMessage)
	if e.Result != ResultWin || e.Reason != ReasonOpponentDisconnected {
		t.Errorf("survivor end = %+v, want win / opponent_disconnected", e)
	}
	if got := len(x.endMessages()); got != 0 {
		t.Errorf("departed connection received %d end messages, want 0", got)
	}

	if matches, _ := a.Stats(); matches != 0 {
		t.Errorf("active matches after disconnect = %d, want 0", matches)
	}

	// A click from the survivor and the deadline firing later must both be
	// no-ops against the finalized match.
	a.HandleMessage(y, clickFrame)
	if got := len(y.scoreUpdates()); got != 0 {
		t.Errorf("survivor click after finalize produced %d score updates", got)
	}

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := len(y.endMessages()); got != 1 {
		t.Errorf("survivor received %d end messages after deadline, want 1", got)
	}
}

// TestDeadlineVsDisconnectRace fires the deadline timer and a disconnect
// concurrently; the survivor must see exactly one end message.
func TestDeadlineVsDisconnectRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		a, clock := newTestArena()

		x := newFakeConn("x")
		y := newFakeConn("y")
		a.Connect(x)
		a.Connect(y)

		clock.BlockUntil(1)
		go clock.Advance(10 * time.Second)
		go a.Disconnect(x)

		waitFor(t, func() bool { return len(y.endMessages()) >= 1 })
		time.Sleep(10 * time.Millisecond)

		if got := len(y.endMessages()); got != 1 {
			t.Fatalf("iteration %d: survivor got %d end messages, want 1", i, got)
		}
		if got := len(x.endMessages()); got > 1 {
			t.Fatalf("iteration %d: departed peer got %d end messages", i, got)
		}
		a.Close()
	}
}

func TestStats(t *testing.T) {
	a, _ := newTestArena()
	defer a.Close()

	matches, waiting := a.Stats()
	if matches != 0 || waiting != 0 {
		t.Fatalf("fresh arena stats = (%d, %d), want (0, 0)", matches, waiting)
	}

	a.Connect(newFakeConn("a"))
	if _, waiting := a.Stats(); waiting != 1 {
		t.Errorf("waiting = %d, want 1", waiting)
	}

	a.Connect(newFakeConn("b"))
	matches, waiting = a.Stats()
	if matches != 1 || waiting != 0 {
		t.Errorf("stats after pairing = (%d, %d), want (1, 0)", matches, waiting)
	}
}

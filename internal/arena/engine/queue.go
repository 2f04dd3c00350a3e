package engine

// waitQueue holds connections awaiting an opponent in strict arrival order.
// Not self-synchronizing: the arena mutex covers every access.
type waitQueue struct {
	conns []Conn
}

// enqueue appends conn to the tail.
func (q *waitQueue) enqueue(conn Conn) {
	q.conns = append(q.conns, conn)
}

// tryPair pops the two longest-waiting connections when at least two are
// queued, oldest first.
func (q *waitQueue) tryPair() (first, second Conn, ok bool) {
	if len(q.conns) < 2 {
		return nil, nil, false
	}
	first, second = q.conns[0], q.conns[1]
	q.conns = q.conns[2:]
	return first, second, true
}

// remove drops conn if still queued; no-op otherwise.
func (q *waitQueue) remove(conn Conn) {
	for i, c := range q.conns {
		if c == conn {
			q.conns = append(q.conns[:i], q.conns[i+1:]...)
			return
		}
	}
}

func (q *waitQueue) len() int { return len(q.conns) }

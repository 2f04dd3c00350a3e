package engine

// Outbound message types sent to participants. These are the only shapes the
// engine puts on the wire; the gateway adds online_count on its own.
const (
	msgTypeWaiting     = "waiting"
	msgTypeStart       = "start"
	msgTypeScoreUpdate = "score_update"
	msgTypeEnd         = "end"
)

// Inbound message types accepted from participants. Anything else is a
// forward-compatible no-op.
const inboundTypeClick = "click"

// Match results as seen by one participant.
const (
	ResultWin  = "win"
	ResultLose = "lose"
	ResultDraw = "draw"
)

// ReasonOpponentDisconnected marks an end message delivered to the surviving
// participant of a dropped match.
const ReasonOpponentDisconnected = "opponent_disconnected"

// clientMessage is the envelope for all inbound traffic.
type clientMessage struct {
	Type string `json:"type"`
}

// WaitingMessage is sent to a connection parked in the matchmaking queue.
type WaitingMessage struct {
	Type string `json:"type"`
}

// StartMessage is sent to both participants when their match begins.
type StartMessage struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"` // seconds
}

// ScoreUpdateMessage is sent to both participants after an accepted hit.
// Each side sees its own tally as You.
type ScoreUpdateMessage struct {
	Type     string `json:"type"`
	You      int    `json:"you"`
	Opponent int    `json:"opponent"`
}

// EndMessage carries the outcome of a match that ran to completion.
type EndMessage struct {
	Type          string `json:"type"`
	Result        string `json:"result"`
	YourScore     int    `json:"your_score"`
	OpponentScore int    `json:"opponent_score"`
}

// DisconnectEndMessage carries the outcome delivered to the survivor when
// the opponent's connection dropped mid-match. No score fields.
type DisconnectEndMessage struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	Reason string `json:"reason"`
}

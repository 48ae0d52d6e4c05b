// Package protocol defines the JSON messages exchanged with arena clients.
//
// Server messages carry a "type" discriminator and, except for the tick and
// leaderboard bodies, the protocol version in "v". Client messages must carry
// the version too; anything else is rejected rather than guessed at.
package protocol

// Version is the only protocol version this server speaks
const Version = 1

// Server -> client message types
const (
	TypeHello         = "hello"
	TypeError         = "error"
	TypeQueue         = "queue"
	TypeMatchStatus   = "match_status"
	TypeTick          = "tick"
	TypeLeaderboard   = "leaderboard"
	TypeMatchFinished = "match_finished"
)

// Client -> server message types
const (
	TypeSubscribe  = "subscribe"
	TypeJoinQueue  = "join_queue"
	TypeLeaveQueue = "leave_queue"
)

// Match phases
const (
	PhaseWaiting  = "waiting"
	PhaseRunning  = "running"
	PhaseFinished = "finished"
)

// Strategy tags
const (
	StrategyHold       = "hold"
	StrategyRandom     = "random"
	StrategyTrend      = "trend"
	StrategyMeanRevert = "mean_revert"
)

// Numeric bounds shared by the server and its clients
const (
	MinTickIntervalMs = 250
	MaxAgentNameLen   = 32
)

// Message is any server-originated message
type Message interface {
	MessageType() string
	Validate() error
}

// Hello greets a freshly connected client
type Hello struct {
	Type       string `json:"type"`
	V          int    `json:"v"`
	ClientID   string `json:"clientId"`
	ServerTime int64  `json:"serverTime"`
}

// ErrorMessage reports a rejected client message
type ErrorMessage struct {
	Type    string `json:"type"`
	V       int    `json:"v"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Queue reports the current join queue size
type Queue struct {
	Type      string `json:"type"`
	V         int    `json:"v"`
	QueueSize int    `json:"queueSize"`
}

// SeatInfo describes one seat in a match_status message
type SeatInfo struct {
	SeatID    string  `json:"seatId"`
	AgentName string  `json:"agentName"`
	Strategy  string  `json:"strategy"`
	Credits   float64 `json:"credits"`
	Target    float64 `json:"target"`
}

// MatchStatus announces a match and its current phase
type MatchStatus struct {
	Type           string     `json:"type"`
	V              int        `json:"v"`
	MatchID        string     `json:"matchId"`
	Phase          string     `json:"phase"`
	Tick           int        `json:"tick"`
	Seats          []SeatInfo `json:"seats"`
	TickIntervalMs int        `json:"tickIntervalMs"`
	MaxTicks       int        `json:"maxTicks"`
}

// Tick is emitted once per simulation step
type Tick struct {
	Type     string  `json:"type"`
	MatchID  string  `json:"matchId"`
	Tick     int     `json:"tick"`
	Ts       int64   `json:"ts"`
	BtcPrice float64 `json:"btcPrice"`
}

// LeaderboardRow is one seat's standing after a tick
type LeaderboardRow struct {
	SeatID    string  `json:"seatId"`
	AgentName string  `json:"agentName"`
	Credits   float64 `json:"credits"`
	Target    float64 `json:"target"`
	Note      string  `json:"note,omitempty"`
}

// Leaderboard follows every tick message for the same tick
type Leaderboard struct {
	Type    string           `json:"type"`
	MatchID string           `json:"matchId"`
	Tick    int              `json:"tick"`
	Rows    []LeaderboardRow `json:"rows"`
}

// MatchFinished closes a match with its winner and settlement amounts
type MatchFinished struct {
	Type         string           `json:"type"`
	V            int              `json:"v"`
	MatchID      string           `json:"matchId"`
	Tick         int              `json:"tick"`
	FinalPrice   float64          `json:"finalPrice"`
	WinnerSeatID string           `json:"winnerSeatId"`
	PayoutSeatID string           `json:"payoutSeatId"`
	Pot          string           `json:"pot"`
	Rake         string           `json:"rake"`
	Payout       string           `json:"payout"`
	Rows         []LeaderboardRow `json:"rows"`
}

// Subscribe asks for a match's event stream
type Subscribe struct {
	Type    string `json:"type"`
	V       int    `json:"v"`
	MatchID string `json:"matchId"`
}

// JoinQueue enters the sender into the join queue
type JoinQueue struct {
	Type      string `json:"type"`
	V         int    `json:"v"`
	AgentName string `json:"agentName"`
	Strategy  string `json:"strategy"`
}

// LeaveQueue removes the sender's queue entry
type LeaveQueue struct {
	Type string `json:"type"`
	V    int    `json:"v"`
}

func (Hello) MessageType() string         { return TypeHello }
func (ErrorMessage) MessageType() string  { return TypeError }
func (Queue) MessageType() string         { return TypeQueue }
func (MatchStatus) MessageType() string   { return TypeMatchStatus }
func (Tick) MessageType() string          { return TypeTick }
func (Leaderboard) MessageType() string   { return TypeLeaderboard }
func (MatchFinished) MessageType() string { return TypeMatchFinished }

// NewHello builds a hello message
func NewHello(clientID string, serverTime int64) Hello {
	return Hello{Type: TypeHello, V: Version, ClientID: clientID, ServerTime: serverTime}
}

// NewQueue builds a queue message
func NewQueue(size int) Queue {
	return Queue{Type: TypeQueue, V: Version, QueueSize: size}
}

// NewMatchStatus builds a match_status message
func NewMatchStatus(matchID, phase string, tick int, seats []SeatInfo, tickIntervalMs, maxTicks int) MatchStatus {
	return MatchStatus{
		Type:           TypeMatchStatus,
		V:              Version,
		MatchID:        matchID,
		Phase:          phase,
		Tick:           tick,
		Seats:          seats,
		TickIntervalMs: tickIntervalMs,
		MaxTicks:       maxTicks,
	}
}

// NewTick builds a tick message
func NewTick(matchID string, tick int, ts int64, price float64) Tick {
	return Tick{Type: TypeTick, MatchID: matchID, Tick: tick, Ts: ts, BtcPrice: price}
}

// NewLeaderboard builds a leaderboard message
func NewLeaderboard(matchID string, tick int, rows []LeaderboardRow) Leaderboard {
	return Leaderboard{Type: TypeLeaderboard, MatchID: matchID, Tick: tick, Rows: rows}
}

// IsPhase reports whether s is a known match phase
func IsPhase(s string) bool {
	switch s {
	case PhaseWaiting, PhaseRunning, PhaseFinished:
		return true
	}
	return false
}

// IsStrategy reports whether s is a known strategy tag
func IsStrategy(s string) bool {
	switch s {
	case StrategyHold, StrategyRandom, StrategyTrend, StrategyMeanRevert:
		return true
	}
	return false
}

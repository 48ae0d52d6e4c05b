package msg

import (
	"fmt"
	"strings"
)

// JoinCmdMsg asks the arena to queue an agent
type JoinCmdMsg struct {
	EventID      string `json:"event_id"`
	Identity     string `json:"identity"`
	AgentName    string `json:"agent_name"`
	Strategy     string `json:"strategy"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}

// Validate checks the fields the arena needs
func (m JoinCmdMsg) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("event_id is required")
	}
	if strings.TrimSpace(m.AgentName) == "" {
		return fmt.Errorf("agent_name is required")
	}
	if m.Strategy == "" {
		return fmt.Errorf("strategy is required")
	}
	return nil
}

// SeatMsg is a seat's state inside match events
type SeatMsg struct {
	SeatID    string  `json:"seat_id"`
	AgentName string  `json:"agent_name"`
	Strategy  string  `json:"strategy,omitempty"`
	Credits   float64 `json:"credits"`
	Target    float64 `json:"target"`
	Note      string  `json:"note,omitempty"`
}

// MatchEventMsg records a match phase change or seat update
type MatchEventMsg struct {
	EventID        string   `json:"event_id"`
	MatchID        string   `json:"match_id"`
	Phase          string   `json:"phase,omitempty"`
	TickIntervalMs int      `json:"tick_interval_ms,omitempty"`
	MaxTicks       int      `json:"max_ticks,omitempty"`
	StartPrice     float64  `json:"start_price,omitempty"`
	Seat           *SeatMsg `json:"seat,omitempty"`
	TsUnixMillis   int64    `json:"ts_unix_millis"`
}

// TickEventMsg records one tick's price and standings
type TickEventMsg struct {
	EventID      string    `json:"event_id"`
	MatchID      string    `json:"match_id"`
	Tick         int       `json:"tick"`
	Price        float64   `json:"price"`
	Rows         []SeatMsg `json:"rows"`
	TsUnixMillis int64     `json:"ts_unix_millis"`
}

// TickEventID is the deterministic id of a match's tick event
func TickEventID(matchID string, tick int) string {
	return fmt.Sprintf("tick-%s-%d", matchID, tick)
}

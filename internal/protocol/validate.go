package protocol

import (
	"fmt"
	"math"
)

func checkHeader(gotType, wantType string, v int, versioned bool) error {
	if gotType != wantType {
		return fmt.Errorf("type %q does not match %q", gotType, wantType)
	}
	if versioned && v != Version {
		return fmt.Errorf("unsupported version %d", v)
	}
	return nil
}

func finite(name string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%s must be finite", name)
	}
	return nil
}

func checkTarget(target float64) error {
	if err := finite("target", target); err != nil {
		return err
	}
	if target < -1 || target > 1 {
		return fmt.Errorf("target %v outside [-1, 1]", target)
	}
	return nil
}

func checkCredits(credits float64) error {
	if err := finite("credits", credits); err != nil {
		return err
	}
	if credits < 0 {
		return fmt.Errorf("credits %v negative", credits)
	}
	return nil
}

func checkPrice(name string, price float64) error {
	if err := finite(name, price); err != nil {
		return err
	}
	if price <= 0 {
		return fmt.Errorf("%s %v must be positive", name, price)
	}
	return nil
}

func checkRows(rows []LeaderboardRow) error {
	for _, r := range rows {
		if r.SeatID == "" {
			return fmt.Errorf("row without seatId")
		}
		if err := checkCredits(r.Credits); err != nil {
			return fmt.Errorf("seat %s: %w", r.SeatID, err)
		}
		if err := checkTarget(r.Target); err != nil {
			return fmt.Errorf("seat %s: %w", r.SeatID, err)
		}
	}
	return nil
}

func (m Hello) Validate() error {
	if err := checkHeader(m.Type, TypeHello, m.V, true); err != nil {
		return err
	}
	if m.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	return nil
}

func (m ErrorMessage) Validate() error {
	if err := checkHeader(m.Type, TypeError, m.V, true); err != nil {
		return err
	}
	if m.Code == "" {
		return fmt.Errorf("code is required")
	}
	return nil
}

func (m Queue) Validate() error {
	if err := checkHeader(m.Type, TypeQueue, m.V, true); err != nil {
		return err
	}
	if m.QueueSize < 0 {
		return fmt.Errorf("queueSize %d negative", m.QueueSize)
	}
	return nil
}

func (m MatchStatus) Validate() error {
	if err := checkHeader(m.Type, TypeMatchStatus, m.V, true); err != nil {
		return err
	}
	if m.MatchID == "" {
		return fmt.Errorf("matchId is required")
	}
	if !IsPhase(m.Phase) {
		return fmt.Errorf("unknown phase %q", m.Phase)
	}
	if m.TickIntervalMs < MinTickIntervalMs {
		return fmt.Errorf("tickIntervalMs %d below %d", m.TickIntervalMs, MinTickIntervalMs)
	}
	if m.MaxTicks < 1 {
		return fmt.Errorf("maxTicks %d below 1", m.MaxTicks)
	}
	if m.Tick < 0 || m.Tick > m.MaxTicks {
		return fmt.Errorf("tick %d outside [0, %d]", m.Tick, m.MaxTicks)
	}
	for _, s := range m.Seats {
		if s.SeatID == "" {
			return fmt.Errorf("seat without seatId")
		}
		if !IsStrategy(s.Strategy) {
			return fmt.Errorf("seat %s: unknown strategy %q", s.SeatID, s.Strategy)
		}
		if err := checkCredits(s.Credits); err != nil {
			return fmt.Errorf("seat %s: %w", s.SeatID, err)
		}
		if err := checkTarget(s.Target); err != nil {
			return fmt.Errorf("seat %s: %w", s.SeatID, err)
		}
	}
	return nil
}

func (m Tick) Validate() error {
	if err := checkHeader(m.Type, TypeTick, 0, false); err != nil {
		return err
	}
	if m.MatchID == "" {
		return fmt.Errorf("matchId is required")
	}
	if m.Tick < 0 {
		return fmt.Errorf("tick %d negative", m.Tick)
	}
	return checkPrice("btcPrice", m.BtcPrice)
}

func (m Leaderboard) Validate() error {
	if err := checkHeader(m.Type, TypeLeaderboard, 0, false); err != nil {
		return err
	}
	if m.MatchID == "" {
		return fmt.Errorf("matchId is required")
	}
	if m.Tick < 0 {
		return fmt.Errorf("tick %d negative", m.Tick)
	}
	return checkRows(m.Rows)
}

func (m MatchFinished) Validate() error {
	if err := checkHeader(m.Type, TypeMatchFinished, m.V, true); err != nil {
		return err
	}
	if m.MatchID == "" {
		return fmt.Errorf("matchId is required")
	}
	if m.Tick < 0 {
		return fmt.Errorf("tick %d negative", m.Tick)
	}
	if err := checkPrice("finalPrice", m.FinalPrice); err != nil {
		return err
	}
	return checkRows(m.Rows)
}

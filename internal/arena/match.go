package arena

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

// Phase is a match's lifecycle stage; it only moves forward
type Phase string

const (
	PhaseWaiting  Phase = protocol.PhaseWaiting
	PhaseRunning  Phase = protocol.PhaseRunning
	PhaseFinished Phase = protocol.PhaseFinished
)

// MinTickInterval is the fastest allowed tick cadence
const MinTickInterval = protocol.MinTickIntervalMs * time.Millisecond

// MatchConfig is fixed when a match is formed
type MatchConfig struct {
	ID           string
	TickInterval time.Duration
	MaxTicks     int
	StartPrice   float64
}

// Validate checks the config bounds
func (c MatchConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty match id", ErrInvalidConfig)
	}
	if c.TickInterval < MinTickInterval {
		return fmt.Errorf("%w: tick interval %s below %s", ErrInvalidConfig, c.TickInterval, MinTickInterval)
	}
	if c.MaxTicks < 1 {
		return fmt.Errorf("%w: max ticks %d", ErrInvalidConfig, c.MaxTicks)
	}
	if !(c.StartPrice > 0) {
		return fmt.Errorf("%w: start price %v", ErrInvalidConfig, c.StartPrice)
	}
	return nil
}

// TickIntervalMs returns the interval in whole milliseconds
func (c MatchConfig) TickIntervalMs() int {
	return int(c.TickInterval / time.Millisecond)
}

// Seat is one participant slot
type Seat struct {
	ID        string
	AgentName string
	Strategy  Strategy
	Credits   float64
	Target    float64
	Note      string
}

// MatchSnapshot is a consistent copy of a match's state
type MatchSnapshot struct {
	Config     MatchConfig
	Phase      Phase
	Tick       int
	Price      float64
	PrevPrice  float64
	Seats      []Seat
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// StatusMessage renders the snapshot as a match_status message
func (s MatchSnapshot) StatusMessage() protocol.MatchStatus {
	seats := make([]protocol.SeatInfo, len(s.Seats))
	for i, seat := range s.Seats {
		seats[i] = protocol.SeatInfo{
			SeatID:    seat.ID,
			AgentName: seat.AgentName,
			Strategy:  string(seat.Strategy),
			Credits:   seat.Credits,
			Target:    seat.Target,
		}
	}
	return protocol.NewMatchStatus(s.Config.ID, string(s.Phase), s.Tick, seats, s.Config.TickIntervalMs(), s.Config.MaxTicks)
}

// LeaderboardRows renders the seats as leaderboard rows in seat order
func (s MatchSnapshot) LeaderboardRows() []protocol.LeaderboardRow {
	rows := make([]protocol.LeaderboardRow, len(s.Seats))
	for i, seat := range s.Seats {
		rows[i] = protocol.LeaderboardRow{
			SeatID:    seat.ID,
			AgentName: seat.AgentName,
			Credits:   seat.Credits,
			Target:    seat.Target,
			Note:      seat.Note,
		}
	}
	return rows
}

// match is the engine's private state for one match. Everything below mu is
// guarded by it; cancel is set before the tick loop starts and never replaced.
type match struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	// done is claimed once, by finish or by Close, for metrics accounting
	done atomic.Bool

	mu         sync.Mutex
	cfg        MatchConfig
	phase      Phase
	tick       int
	price      float64
	prevPrice  float64
	history    []float64
	seats      []Seat
	rng        *Sequence
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

func newMatch(cfg MatchConfig, entries []QueueEntry, credits float64, now time.Time) *match {
	seats := make([]Seat, len(entries))
	for i, e := range entries {
		seats[i] = Seat{
			ID:        fmt.Sprintf("%d", i+1),
			AgentName: e.AgentName,
			Strategy:  e.Strategy,
			Credits:   credits,
		}
	}
	return &match{
		cfg:       cfg,
		phase:     PhaseWaiting,
		price:     cfg.StartPrice,
		prevPrice: cfg.StartPrice,
		history:   []float64{cfg.StartPrice},
		seats:     seats,
		createdAt: now,
	}
}

func (m *match) snapshotLocked() MatchSnapshot {
	seats := make([]Seat, len(m.seats))
	copy(seats, m.seats)
	return MatchSnapshot{
		Config:     m.cfg,
		Phase:      m.phase,
		Tick:       m.tick,
		Price:      m.price,
		PrevPrice:  m.prevPrice,
		Seats:      seats,
		CreatedAt:  m.createdAt,
		StartedAt:  m.startedAt,
		FinishedAt: m.finishedAt,
	}
}

func (m *match) snapshot() MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// stop marks the match cancelled and releases its timer; safe to call repeatedly
func (m *match) stop() {
	m.stopped.Store(true)
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *match) pushHistory(price float64, window int) {
	m.history = append(m.history, price)
	if window > 0 && len(m.history) > window {
		m.history = append(m.history[:0], m.history[len(m.history)-window:]...)
	}
}

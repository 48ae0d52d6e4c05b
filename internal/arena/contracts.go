package arena

import (
	"context"
	"time"

	"github.com/ismaiel54/match-arena/internal/protocol"
	"github.com/ismaiel54/match-arena/internal/settlement"
)

// Publisher delivers engine events. Implementations must not block: the
// engine emits while holding a match's lock to keep per-match order.
type Publisher interface {
	PublishToMatch(matchID string, m protocol.Message)
	PublishToAll(m protocol.Message)
}

// Recorder persists match state. Calls are made on the tick path, so
// implementations should hand work off rather than block; errors are logged
// and otherwise ignored.
type Recorder interface {
	UpsertMatch(ctx context.Context, cfg MatchConfig, phase Phase) error
	UpsertSeat(ctx context.Context, matchID string, seat Seat) error
	InsertTick(ctx context.Context, matchID string, tick int, ts time.Time, price float64, rows []protocol.LeaderboardRow) error
}

// Settler computes the payout for a finished match
type Settler interface {
	Settle(standings []settlement.Standing) (settlement.Result, error)
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) PublishToMatch(string, protocol.Message) {}
func (NopPublisher) PublishToAll(protocol.Message)           {}

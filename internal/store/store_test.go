package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/msg"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testMatch = arena.MatchConfig{ID: "m-1", TickInterval: time.Second, MaxTicks: 3, StartPrice: 100000}

func TestStore_MatchLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMatch(ctx, testMatch, arena.PhaseWaiting))
	require.NoError(t, s.UpsertMatch(ctx, testMatch, arena.PhaseRunning))

	m, err := s.GetMatch(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "running", m.Phase)
	assert.Equal(t, 1000, m.TickIntervalMs)
	assert.Equal(t, 3, m.MaxTicks)

	_, err = s.GetMatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// replaying a phase does not duplicate its outbox event
	require.NoError(t, s.UpsertMatch(ctx, testMatch, arena.PhaseRunning))
	events, err := s.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, msg.TopicMatches, events[0].Topic)
	assert.Equal(t, "m-1", events[0].Key)
}

func TestStore_SeatsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"10", "2", "1"} {
		require.NoError(t, s.UpsertSeat(ctx, "m-1", arena.Seat{ID: id, AgentName: "bot", Strategy: arena.StrategyHold, Credits: float64(1000 + i)}))
	}
	require.NoError(t, s.UpsertSeat(ctx, "m-1", arena.Seat{ID: "2", AgentName: "bot", Strategy: arena.StrategyHold, Credits: 5, Target: 0.5, Note: "trend"}))

	seats, err := s.Seats(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Equal(t, []string{"1", "2", "10"}, []string{seats[0].ID, seats[1].ID, seats[2].ID})
	assert.Equal(t, 5.0, seats[1].Credits)
	assert.Equal(t, "trend", seats[1].Note)
}

func TestStore_InsertTickIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rows := []protocol.LeaderboardRow{{SeatID: "1", AgentName: "bot", Credits: 999.5, Target: 0}}
	ts := time.UnixMilli(1700000000000)

	require.NoError(t, s.InsertTick(ctx, "m-1", 1, ts, 100100, rows))
	require.NoError(t, s.InsertTick(ctx, "m-1", 1, ts, 999999, rows))
	require.NoError(t, s.InsertTick(ctx, "m-1", 2, ts, 100200, rows))

	ticks, err := s.Ticks(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 100100.0, ticks[0].Price, "first write wins")
	assert.Equal(t, rows, ticks[0].Rows)

	events, err := s.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	var ev msg.TickEventMsg
	require.NoError(t, json.Unmarshal([]byte(events[0].PayloadJSON), &ev))
	assert.Equal(t, "tick-m-1-1", ev.EventID)
	assert.Equal(t, 1, ev.Tick)
	assert.Equal(t, msg.TopicTicks, events[0].Topic)
}

func TestStore_Rebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))

	_, err := OpenDriver("mysql", "")
	assert.Error(t, err)
}

type fakeSink struct {
	mu     sync.Mutex
	events []msg.Event
	failOn string
}

func (f *fakeSink) Publish(_ context.Context, ev msg.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == f.failOn {
		return errors.New("broker unavailable")
	}
	f.events = append(f.events, ev)
	return nil
}

func TestPublisher_DrainsOutbox(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertMatch(ctx, testMatch, arena.PhaseRunning))
	require.NoError(t, s.InsertTick(ctx, "m-1", 1, time.Now(), 100, nil))
	require.NoError(t, s.InsertTick(ctx, "m-1", 2, time.Now(), 101, nil))

	sink := &fakeSink{failOn: "tick-m-1-2"}
	p := NewPublisher(s, sink, zap.NewNop(), nil)

	n, err := p.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unpublished, err := s.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, "tick-m-1-2", unpublished[0].EventID)

	sink.failOn = ""
	n, err = p.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.events, 3)
	assert.Equal(t, "match-m-1-running", sink.events[0].ID)
	assert.Equal(t, "tick-m-1-2", sink.events[2].ID)
	assert.Equal(t, "m-1", sink.events[2].Key)
}

func TestWorker_AppliesInOrder(t *testing.T) {
	s := openTestStore(t)
	w := NewWorker(s, 16, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, w.UpsertMatch(ctx, testMatch, arena.PhaseRunning))
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.InsertTick(ctx, "m-1", i, time.Now(), float64(100+i), nil))
	}
	require.NoError(t, w.UpsertMatch(ctx, testMatch, arena.PhaseFinished))

	cancel()
	w.Wait()

	m, err := s.GetMatch(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "finished", m.Phase)
	ticks, err := s.Ticks(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Len(t, ticks, 3)
}

type failingRecorder struct{}

func (failingRecorder) UpsertMatch(context.Context, arena.MatchConfig, arena.Phase) error {
	return errors.New("down")
}
func (failingRecorder) UpsertSeat(context.Context, string, arena.Seat) error { return errors.New("down") }
func (failingRecorder) InsertTick(context.Context, string, int, time.Time, float64, []protocol.LeaderboardRow) error {
	return errors.New("down")
}

func TestWorker_NeverReturnsErrors(t *testing.T) {
	w := NewWorker(failingRecorder{}, 1, zap.NewNop(), nil)

	assert.NoError(t, w.UpsertSeat(context.Background(), "m", arena.Seat{ID: "1"}))
	assert.NoError(t, w.UpsertSeat(context.Background(), "m", arena.Seat{ID: "2"}), "full queue drops silently")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)
}

func TestEngineWithStore(t *testing.T) {
	s := openTestStore(t)
	w := NewWorker(s, 0, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	e := arena.NewEngine(arena.Options{Clock: arena.NewManualClock(time.Now()), Recorder: w})
	defer e.Close()
	cfg := arena.MatchConfig{ID: "wired", TickInterval: arena.MinTickInterval, MaxTicks: 2, StartPrice: 100000}
	_, err := e.StartMatch(cfg, []arena.QueueEntry{{AgentName: "a", Strategy: arena.StrategyHold}})
	require.NoError(t, err)
	for e.Advance(context.Background(), "wired") {
	}

	cancel()
	w.Wait()

	m, err := s.GetMatch(context.Background(), "wired")
	require.NoError(t, err)
	assert.Equal(t, "finished", m.Phase)
	ticks, err := s.Ticks(context.Background(), "wired")
	require.NoError(t, err)
	assert.Len(t, ticks, 2)
	seats, err := s.Seats(context.Background(), "wired")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Less(t, seats[0].Credits, 1000.0)
}

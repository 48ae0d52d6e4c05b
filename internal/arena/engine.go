package arena

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/protocol"
	"github.com/ismaiel54/match-arena/internal/settlement"
)

// Options configures an Engine. Zero values fall back to DefaultOptions.
type Options struct {
	BatchSize       int
	TickInterval    time.Duration
	MaxTicks        int
	StartPrice      float64
	StartingCredits float64
	Volatility      float64
	HistoryWindow   int
	RetainFinished  int

	Clock     Clock
	Publisher Publisher
	Recorder  Recorder
	Settler   Settler
	Evaluator *Evaluator
	PriceFeed PriceFeed
	Logger    *zap.Logger
	Metrics   *observability.Metrics

	// NewMatchID generates ids for matches formed from the queue
	NewMatchID func() string
}

// DefaultOptions returns the standard match parameters
func DefaultOptions() Options {
	return Options{
		BatchSize:       5,
		TickInterval:    time.Second,
		MaxTicks:        60,
		StartPrice:      100000,
		StartingCredits: 1000,
		Volatility:      DefaultVolatility,
		HistoryWindow:   32,
		RetainFinished:  256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.MaxTicks <= 0 {
		o.MaxTicks = d.MaxTicks
	}
	if o.StartPrice <= 0 {
		o.StartPrice = d.StartPrice
	}
	if o.StartingCredits <= 0 {
		o.StartingCredits = d.StartingCredits
	}
	if o.Volatility <= 0 {
		o.Volatility = d.Volatility
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = d.HistoryWindow
	}
	if o.RetainFinished <= 0 {
		o.RetainFinished = d.RetainFinished
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.Publisher == nil {
		o.Publisher = NopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.NewMatchID == nil {
		o.NewMatchID = func() string { return uuid.New().String() }
	}
	return o
}

// Engine owns the join queue and every live match. Each running match ticks
// on its own goroutine; a slow decision in one match never delays another.
type Engine struct {
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
	queue   *Queue

	mu       sync.Mutex
	closed   bool
	matches  map[string]*match
	finished []string
	running  sync.WaitGroup
}

// NewEngine builds an engine; call Close to stop every match
func NewEngine(opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		matches: make(map[string]*match),
	}
	e.queue = NewQueue(opts.BatchSize, e.queueChanged)
	return e
}

func (e *Engine) queueChanged(size int) {
	e.metrics.SetQueueSize(size)
	e.opts.Publisher.PublishToAll(protocol.NewQueue(size))
}

// Join queues an agent. When the queue fills a batch a match is formed and
// started before Join returns. The returned size is the queue length after
// any batch was drained.
func (e *Engine) Join(identity, agentName, strategy string) (int, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return 0, err
	}
	size, batch, err := e.queue.Push(QueueEntry{Identity: identity, AgentName: agentName, Strategy: s})
	if err != nil {
		return 0, ErrEngineClosed
	}
	if batch == nil {
		return size, nil
	}

	cfg := MatchConfig{
		ID:           e.opts.NewMatchID(),
		TickInterval: e.opts.TickInterval,
		MaxTicks:     e.opts.MaxTicks,
		StartPrice:   e.opts.StartPrice,
	}
	if _, err := e.StartMatch(cfg, batch); err != nil {
		if errors.Is(err, ErrEngineClosed) {
			return 0, err
		}
		e.logger.Error("failed to start match from queue",
			zap.String("match_id", cfg.ID),
			zap.Int("seats", len(batch)),
			zap.Error(err),
		)
	}
	return size, nil
}

// Leave removes identity's most recent queue entry and returns the queue size
func (e *Engine) Leave(identity string) int {
	size, _ := e.queue.Remove(identity)
	return size
}

// QueueSize returns the number of pending joins
func (e *Engine) QueueSize() int {
	return e.queue.Len()
}

// StartMatch creates a match from entries and starts its tick timer
func (e *Engine) StartMatch(cfg MatchConfig, entries []QueueEntry) (MatchSnapshot, error) {
	if err := cfg.Validate(); err != nil {
		return MatchSnapshot{}, err
	}
	if len(entries) == 0 {
		return MatchSnapshot{}, fmt.Errorf("%w: no seats", ErrInvalidConfig)
	}

	m := newMatch(cfg, entries, e.opts.StartingCredits, e.opts.Clock.Now())
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return MatchSnapshot{}, ErrEngineClosed
	}
	if _, exists := e.matches[cfg.ID]; exists {
		e.mu.Unlock()
		cancel()
		return MatchSnapshot{}, fmt.Errorf("%w: %s", ErrDuplicateMatch, cfg.ID)
	}
	e.matches[cfg.ID] = m
	e.mu.Unlock()

	m.mu.Lock()
	e.opts.Publisher.PublishToAll(m.snapshotLocked().StatusMessage())
	e.record(ctx, "upsert_match", func(r Recorder) error { return r.UpsertMatch(ctx, cfg, PhaseWaiting) })
	for _, seat := range m.seats {
		seat := seat
		e.record(ctx, "upsert_seat", func(r Recorder) error { return r.UpsertSeat(ctx, cfg.ID, seat) })
	}

	m.rng = NewSequence(cfg.ID)
	m.phase = PhaseRunning
	m.startedAt = e.opts.Clock.Now()
	ticker := e.opts.Clock.NewTicker(cfg.TickInterval)
	snap := m.snapshotLocked()
	e.opts.Publisher.PublishToAll(snap.StatusMessage())
	e.record(ctx, "upsert_match", func(r Recorder) error { return r.UpsertMatch(ctx, cfg, PhaseRunning) })
	m.mu.Unlock()

	e.metrics.MatchStarted()
	e.logger.Info("match started",
		zap.String("match_id", cfg.ID),
		zap.Int("seats", len(entries)),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.Int("max_ticks", cfg.MaxTicks),
	)

	e.running.Add(1)
	go e.run(ctx, m, ticker)
	return snap, nil
}

func (e *Engine) run(ctx context.Context, m *match, ticker Ticker) {
	defer e.running.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !e.advance(ctx, m) {
				return
			}
		}
	}
}

// Advance runs one tick of a match immediately. It reports whether the match
// is still running afterwards; unknown, stopped and finished matches are
// skipped.
func (e *Engine) Advance(ctx context.Context, matchID string) bool {
	e.mu.Lock()
	m, ok := e.matches[matchID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	return e.advance(ctx, m)
}

func (e *Engine) advance(ctx context.Context, m *match) bool {
	if m.stopped.Load() {
		return false
	}
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped.Load() || m.phase != PhaseRunning {
		return false
	}

	m.tick++
	prev := m.price
	next := walk(prev, e.opts.Volatility, m.rng)
	if e.opts.PriceFeed != nil {
		q, err := e.opts.PriceFeed.Price(ctx, m.cfg.ID, prev)
		switch {
		case err != nil:
			e.logger.Warn("price feed failed, using internal walk", zap.String("match_id", m.cfg.ID), zap.Error(err))
		case !validQuote(q):
			e.logger.Warn("price feed returned invalid quote", zap.String("match_id", m.cfg.ID), zap.Float64("price", q.Price))
		default:
			next = math.Max(1, q.Price)
		}
	}
	m.prevPrice = prev
	m.price = next
	m.pushHistory(next, e.opts.HistoryWindow)

	delta := next - prev
	history := make([]float64, len(m.history))
	copy(history, m.history)
	for i := range m.seats {
		seat := &m.seats[i]
		d := e.opts.Evaluator.Evaluate(ctx, AgentContext{
			MatchID:        m.cfg.ID,
			SeatID:         seat.ID,
			AgentName:      seat.AgentName,
			Strategy:       seat.Strategy,
			Tick:           m.tick,
			TickIntervalMs: m.cfg.TickIntervalMs(),
			MaxTicks:       m.cfg.MaxTicks,
			Price:          next,
			Delta:          delta,
			PriceHistory:   history,
			Credits:        seat.Credits,
		}, m.rng.Next)
		seat.Target = Clamp(d.Target, -1, 1)
		seat.Note = d.Note
	}
	Score(prev, next, m.seats)

	// Close may have run while a provider call was in flight
	if m.stopped.Load() {
		return false
	}

	now := e.opts.Clock.Now()
	snap := m.snapshotLocked()
	rows := snap.LeaderboardRows()
	e.opts.Publisher.PublishToMatch(m.cfg.ID, protocol.NewTick(m.cfg.ID, m.tick, now.UnixMilli(), next))
	e.opts.Publisher.PublishToMatch(m.cfg.ID, protocol.NewLeaderboard(m.cfg.ID, m.tick, rows))
	tick := m.tick
	e.record(ctx, "insert_tick", func(r Recorder) error { return r.InsertTick(ctx, m.cfg.ID, tick, now, next, rows) })
	e.metrics.ObserveTick(time.Since(start))

	if m.tick < m.cfg.MaxTicks {
		return true
	}
	e.finishLocked(ctx, m, now)
	return false
}

// finishLocked moves a match to finished and releases its timer; m.mu is held
func (e *Engine) finishLocked(ctx context.Context, m *match, now time.Time) {
	m.phase = PhaseFinished
	m.finishedAt = now

	snap := m.snapshotLocked()
	e.opts.Publisher.PublishToAll(snap.StatusMessage())
	e.opts.Publisher.PublishToAll(e.finishedMessage(snap))
	e.record(ctx, "upsert_match", func(r Recorder) error { return r.UpsertMatch(ctx, m.cfg, PhaseFinished) })
	for _, seat := range snap.Seats {
		seat := seat
		e.record(ctx, "upsert_seat", func(r Recorder) error { return r.UpsertSeat(ctx, m.cfg.ID, seat) })
	}
	m.cancel()

	if m.done.CompareAndSwap(false, true) {
		e.metrics.MatchFinished()
	}
	e.logger.Info("match finished",
		zap.String("match_id", m.cfg.ID),
		zap.Int("ticks", m.tick),
		zap.Float64("final_price", m.price),
	)
	e.retire(m.cfg.ID)
}

func (e *Engine) finishedMessage(snap MatchSnapshot) protocol.MatchFinished {
	standings := make([]settlement.Standing, len(snap.Seats))
	for i, s := range snap.Seats {
		standings[i] = settlement.Standing{SeatID: s.ID, Credits: s.Credits}
	}

	msg := protocol.MatchFinished{
		Type:       protocol.TypeMatchFinished,
		V:          protocol.Version,
		MatchID:    snap.Config.ID,
		Tick:       snap.Tick,
		FinalPrice: snap.Price,
		Pot:        "0",
		Rake:       "0",
		Payout:     "0",
		Rows:       snap.LeaderboardRows(),
	}
	msg.WinnerSeatID, msg.PayoutSeatID, _ = settlement.Winner(standings)

	if e.opts.Settler == nil {
		return msg
	}
	res, err := e.opts.Settler.Settle(standings)
	if err != nil {
		e.logger.Warn("settlement failed", zap.String("match_id", snap.Config.ID), zap.Error(err))
		return msg
	}
	msg.WinnerSeatID = res.WinnerSeatID
	msg.PayoutSeatID = res.PayoutSeatID
	msg.Pot = res.Pot.String()
	msg.Rake = res.Rake.String()
	msg.Payout = res.Payout.String()
	return msg
}

// retire keeps the finished match for status queries, evicting the oldest
// finished matches past RetainFinished
func (e *Engine) retire(matchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.finished = append(e.finished, matchID)
	for len(e.finished) > e.opts.RetainFinished {
		delete(e.matches, e.finished[0])
		e.finished = e.finished[1:]
	}
}

func (e *Engine) record(ctx context.Context, op string, fn func(Recorder) error) {
	if e.opts.Recorder == nil {
		return
	}
	if err := fn(e.opts.Recorder); err != nil {
		e.metrics.PersistError(op)
		e.logger.Warn("failed to record match state", zap.String("op", op), zap.Error(err))
	}
}

// Status returns a snapshot of a live or retained match
func (e *Engine) Status(matchID string) (MatchSnapshot, error) {
	e.mu.Lock()
	m, ok := e.matches[matchID]
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return MatchSnapshot{}, ErrEngineClosed
	}
	if !ok {
		return MatchSnapshot{}, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return m.snapshot(), nil
}

// Matches returns snapshots of every known match, oldest first
func (e *Engine) Matches() []MatchSnapshot {
	e.mu.Lock()
	ms := make([]*match, 0, len(e.matches))
	for _, m := range e.matches {
		ms = append(ms, m)
	}
	e.mu.Unlock()

	out := make([]MatchSnapshot, len(ms))
	for i, m := range ms {
		out[i] = m.snapshot()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Config.ID < out[j].Config.ID
	})
	return out
}

// Close cancels every match timer and clears all match and queue state.
// It does not wait for in-flight ticks; they observe the cancellation and
// emit nothing further. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	ms := e.matches
	e.matches = make(map[string]*match)
	e.finished = nil
	e.mu.Unlock()

	for _, m := range ms {
		m.stop()
		if m.done.CompareAndSwap(false, true) {
			e.metrics.MatchAbandoned()
		}
	}
	e.queue.Close()
	e.metrics.SetQueueSize(0)
	e.logger.Info("engine closed", zap.Int("matches", len(ms)))
}

// Wait blocks until every match goroutine has exited. Use it after Close.
func (e *Engine) Wait() {
	e.running.Wait()
}

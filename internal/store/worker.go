package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

const (
	defaultWorkerQueue = 1024
	writeTimeout       = 5 * time.Second
)

type op struct {
	name string
	fn   func(ctx context.Context) error
}

// Worker makes a Recorder fire-and-forget: writes are queued and applied by
// one goroutine in order. When the queue is full the write is dropped.
type Worker struct {
	rec     arena.Recorder
	ops     chan op
	logger  *zap.Logger
	metrics *observability.Metrics

	done chan struct{}
}

// NewWorker wraps rec with a queue of the given size
func NewWorker(rec arena.Recorder, size int, logger *zap.Logger, metrics *observability.Metrics) *Worker {
	if size <= 0 {
		size = defaultWorkerQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		rec:     rec,
		ops:     make(chan op, size),
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Run applies queued writes until ctx is done, then drains what is left
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case o := <-w.ops:
			w.apply(o)
		}
	}
}

// Wait blocks until Run has returned
func (w *Worker) Wait() {
	<-w.done
}

func (w *Worker) drain() {
	for {
		select {
		case o := <-w.ops:
			w.apply(o)
		default:
			return
		}
	}
}

func (w *Worker) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := o.fn(ctx); err != nil {
		w.metrics.PersistError(o.name)
		w.logger.Warn("persistence write failed", zap.String("op", o.name), zap.Error(err))
	}
}

func (w *Worker) enqueue(o op) error {
	select {
	case w.ops <- o:
		return nil
	default:
		w.metrics.PersistError("queue_full")
		w.logger.Warn("persistence queue full, dropping write", zap.String("op", o.name))
		return nil
	}
}

// UpsertMatch queues a match write; the caller's ctx is not used for the write
func (w *Worker) UpsertMatch(_ context.Context, cfg arena.MatchConfig, phase arena.Phase) error {
	return w.enqueue(op{name: "upsert_match", fn: func(ctx context.Context) error {
		return w.rec.UpsertMatch(ctx, cfg, phase)
	}})
}

// UpsertSeat queues a seat write
func (w *Worker) UpsertSeat(_ context.Context, matchID string, seat arena.Seat) error {
	return w.enqueue(op{name: "upsert_seat", fn: func(ctx context.Context) error {
		return w.rec.UpsertSeat(ctx, matchID, seat)
	}})
}

// InsertTick queues a tick write
func (w *Worker) InsertTick(_ context.Context, matchID string, tick int, ts time.Time, price float64, rows []protocol.LeaderboardRow) error {
	return w.enqueue(op{name: "insert_tick", fn: func(ctx context.Context) error {
		return w.rec.InsertTick(ctx, matchID, tick, ts, price, rows)
	}})
}

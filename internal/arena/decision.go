package arena

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/observability"
)

// Decision sources
const (
	SourceRules    = "rules"
	SourceProvider = "provider"
)

// Decision is a seat's target exposure for one tick
type Decision struct {
	Target float64
	Note   string
	Source string
}

// AgentContext is everything a decision provider gets to see about a seat
type AgentContext struct {
	MatchID        string    `json:"matchId"`
	SeatID         string    `json:"seatId"`
	AgentName      string    `json:"agentName"`
	Strategy       Strategy  `json:"strategy"`
	Tick           int       `json:"tick"`
	TickIntervalMs int       `json:"tickIntervalMs"`
	MaxTicks       int       `json:"maxTicks"`
	Price          float64   `json:"price"`
	Delta          float64   `json:"delta"`
	PriceHistory   []float64 `json:"priceHistory"`
	Credits        float64   `json:"credits"`
}

// DecisionProvider is an external per-agent policy, e.g. a model-backed service
type DecisionProvider interface {
	Decide(ctx context.Context, ac AgentContext) (Decision, error)
}

// SeatSelector reports whether a seat's agent should consult the provider
type SeatSelector func(agentName string) bool

// AgentSet selects the listed agent names; "*" selects every agent
func AgentSet(names []string) SeatSelector {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "*" {
			return func(string) bool { return true }
		}
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return func(agentName string) bool {
		_, ok := set[agentName]
		return ok
	}
}

// Decide applies the rule for a strategy. Unknown strategies hold.
func Decide(strategy Strategy, delta float64, rng func() float64) Decision {
	switch strategy {
	case StrategyRandom:
		return Decision{Target: Clamp(rng()*2-1, -1, 1), Note: string(StrategyRandom), Source: SourceRules}
	case StrategyTrend:
		return Decision{Target: Clamp(sign(delta)*0.5, -1, 1), Note: string(StrategyTrend), Source: SourceRules}
	case StrategyMeanRevert:
		return Decision{Target: Clamp(-sign(delta)*0.5, -1, 1), Note: string(StrategyMeanRevert), Source: SourceRules}
	default:
		return Decision{Target: 0, Note: string(StrategyHold), Source: SourceRules}
	}
}

// Clamp bounds v to [lo, hi]; NaN maps to 0
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

var errOutOfRange = errors.New("target out of range")

// Evaluator chooses each seat's decision, consulting the external provider for
// selected seats and falling back to the strategy rule on any failure.
// A nil *Evaluator uses the rules only.
type Evaluator struct {
	provider DecisionProvider
	timeout  time.Duration
	selects  SeatSelector
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewEvaluator builds an Evaluator; a nil provider disables the external path
func NewEvaluator(provider DecisionProvider, timeout time.Duration, selects SeatSelector, logger *zap.Logger, metrics *observability.Metrics) *Evaluator {
	if selects == nil {
		selects = func(string) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		provider: provider,
		timeout:  timeout,
		selects:  selects,
		logger:   logger,
		metrics:  metrics,
	}
}

// Evaluate never fails: callers always receive a target in [-1, 1]
func (ev *Evaluator) Evaluate(ctx context.Context, ac AgentContext, rng func() float64) Decision {
	// The rule runs first so the random strategy consumes the sequence the
	// same way whether or not a provider answers.
	rule := Decide(ac.Strategy, ac.Delta, rng)
	if ev == nil || ev.provider == nil || !ev.selects(ac.AgentName) {
		return rule
	}

	d, err := ev.consult(ctx, ac)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, errOutOfRange):
			reason = "out_of_range"
		}
		ev.metrics.DecisionFallback(reason)
		ev.logger.Warn("decision provider unavailable, using rule",
			zap.String("match_id", ac.MatchID),
			zap.String("seat_id", ac.SeatID),
			zap.String("strategy", string(ac.Strategy)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return rule
	}
	return d
}

func (ev *Evaluator) consult(ctx context.Context, ac AgentContext) (Decision, error) {
	if ev.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ev.timeout)
		defer cancel()
	}

	type result struct {
		d   Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := ev.provider.Decide(ctx, ac)
		done <- result{d: d, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return Decision{}, res.err
	}
	if math.IsNaN(res.d.Target) || res.d.Target < -1 || res.d.Target > 1 {
		return Decision{}, fmt.Errorf("%w: %v", errOutOfRange, res.d.Target)
	}
	res.d.Target = Clamp(res.d.Target, -1, 1)
	res.d.Source = SourceProvider
	return res.d, nil
}

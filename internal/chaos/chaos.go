// Package chaos injects seeded, reproducible faults into the decision
// provider path so fallback behavior can be exercised on demand.
package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
)

// ErrDropped is returned for calls the chaos layer discards
var ErrDropped = errors.New("chaos: call dropped")

// Chaos decides which calls to drop or delay
type Chaos struct {
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand
	mu     sync.Mutex
	start  time.Time
	now    func() time.Time
}

// New creates a Chaos instance; a profile overrides the individual settings
func New(cfg Config, logger *zap.Logger) *Chaos {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Profile != "" {
		dropPct, delayMin, delayMax, err := ParseProfile(cfg.Profile)
		if err != nil {
			logger.Warn("failed to parse chaos profile", zap.String("profile", cfg.Profile), zap.Error(err))
		} else {
			if dropPct > 0 {
				cfg.DropPct = dropPct
			}
			if delayMin > 0 || delayMax > 0 {
				cfg.DelayMsMin = delayMin
				cfg.DelayMsMax = delayMax
			}
		}
	}

	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		start:  time.Now(),
		now:    time.Now,
	}
}

// EnabledFor reports whether faults apply to an agent right now
func (c *Chaos) EnabledFor(agentName string) bool {
	if !c.cfg.Enabled {
		return false
	}
	if c.cfg.WindowMs > 0 && c.now().Sub(c.start).Milliseconds() > int64(c.cfg.WindowMs) {
		return false
	}
	if c.cfg.TargetAgent != "" && c.cfg.TargetAgent != agentName {
		return false
	}
	return true
}

// MaybeDelay sleeps for a random delay, returning early if ctx ends
func (c *Chaos) MaybeDelay(ctx context.Context, agentName, op string) error {
	if !c.EnabledFor(agentName) {
		return nil
	}
	if c.cfg.DelayMsMin == 0 && c.cfg.DelayMsMax == 0 {
		return nil
	}

	c.mu.Lock()
	delayMs := c.cfg.DelayMsMin
	if c.cfg.DelayMsMax > c.cfg.DelayMsMin {
		delayMs += c.rng.Intn(c.cfg.DelayMsMax - c.cfg.DelayMsMin + 1)
	}
	c.mu.Unlock()

	if delayMs <= 0 {
		return nil
	}
	c.logger.Info("chaos delay injected",
		zap.String("agent_name", agentName),
		zap.String("op", op),
		zap.Int("delay_ms", delayMs),
	)

	timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MaybeDrop reports whether the call should be dropped
func (c *Chaos) MaybeDrop(agentName, op string) bool {
	if !c.EnabledFor(agentName) || c.cfg.DropPct == 0 {
		return false
	}

	c.mu.Lock()
	drop := c.rng.Intn(100) < c.cfg.DropPct
	c.mu.Unlock()

	if drop {
		c.logger.Info("chaos drop injected",
			zap.String("agent_name", agentName),
			zap.String("op", op),
		)
	}
	return drop
}

// Provider wraps a decision provider with drops and delays
type Provider struct {
	next  arena.DecisionProvider
	chaos *Chaos
}

// Wrap returns next unchanged when chaos is disabled
func Wrap(next arena.DecisionProvider, c *Chaos) arena.DecisionProvider {
	if c == nil || !c.cfg.Enabled || next == nil {
		return next
	}
	return &Provider{next: next, chaos: c}
}

// Decide implements arena.DecisionProvider
func (p *Provider) Decide(ctx context.Context, ac arena.AgentContext) (arena.Decision, error) {
	if p.chaos.MaybeDrop(ac.AgentName, "decide") {
		return arena.Decision{}, ErrDropped
	}
	if err := p.chaos.MaybeDelay(ctx, ac.AgentName, "decide"); err != nil {
		return arena.Decision{}, err
	}
	return p.next.Decide(ctx, ac)
}

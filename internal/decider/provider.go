// Package decider calls an external decision service for seat targets.
package decider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
)

// ErrCircuitOpen is returned without calling the service while the breaker is open
var ErrCircuitOpen = errors.New("decision provider circuit open")

const maxResponseBytes = 64 << 10

type decideResponse struct {
	Target *float64 `json:"target"`
	Note   string   `json:"note"`
}

// HTTPProvider POSTs the agent context as JSON and reads {"target","note"}
type HTTPProvider struct {
	url     string
	client  *http.Client
	breaker *Breaker
	logger  *zap.Logger
}

// NewHTTPProvider builds a provider for url. The engine bounds each call
// with its own timeout; the client timeout here is a backstop.
func NewHTTPProvider(url string, timeout time.Duration, breaker *Breaker, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = NewBreaker(DefaultBreakerConfig(), logger)
	}
	return &HTTPProvider{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Decide implements arena.DecisionProvider
func (p *HTTPProvider) Decide(ctx context.Context, ac arena.AgentContext) (arena.Decision, error) {
	if !p.breaker.Allow() {
		return arena.Decision{}, ErrCircuitOpen
	}

	d, err := p.call(ctx, ac)
	if err != nil {
		// cancellation by the engine is not the service's fault
		if !errors.Is(err, context.Canceled) {
			p.breaker.RecordFailure()
		}
		return arena.Decision{}, err
	}
	p.breaker.RecordSuccess()
	return d, nil
}

func (p *HTTPProvider) call(ctx context.Context, ac arena.AgentContext) (arena.Decision, error) {
	body, err := json.Marshal(ac)
	if err != nil {
		return arena.Decision{}, fmt.Errorf("failed to marshal agent context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return arena.Decision{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return arena.Decision{}, fmt.Errorf("decision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return arena.Decision{}, fmt.Errorf("decision service returned %d", resp.StatusCode)
	}

	var out decideResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return arena.Decision{}, fmt.Errorf("failed to decode decision: %w", err)
	}
	if out.Target == nil {
		return arena.Decision{}, errors.New("decision without target")
	}
	return arena.Decision{Target: *out.Target, Note: out.Note}, nil
}

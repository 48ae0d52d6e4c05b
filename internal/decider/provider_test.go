package decider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
)

func TestHTTPProvider_Decide(t *testing.T) {
	var got arena.AgentContext
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"target":-0.25,"note":"fade the pump"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, nil, zap.NewNop())
	d, err := p.Decide(context.Background(), arena.AgentContext{
		MatchID: "m1", SeatID: "2", AgentName: "bot", Strategy: arena.StrategyTrend,
		Tick: 4, Price: 100250, Delta: 250, PriceHistory: []float64{100000, 100250}, Credits: 990,
	})
	require.NoError(t, err)
	assert.Equal(t, -0.25, d.Target)
	assert.Equal(t, "fade the pump", d.Note)
	assert.Equal(t, "m1", got.MatchID)
	assert.Equal(t, []float64{100000, 100250}, got.PriceHistory)
}

func TestHTTPProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"target":`)) }},
		{"missing target", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"note":"hmm"}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.h)
			defer srv.Close()
			_, err := NewHTTPProvider(srv.URL, time.Second, nil, zap.NewNop()).Decide(context.Background(), arena.AgentContext{})
			assert.Error(t, err)
		})
	}
}

func TestHTTPProvider_BreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}, zap.NewNop())
	p := NewHTTPProvider(srv.URL, time.Second, b, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := p.Decide(context.Background(), arena.AgentContext{})
		assert.Error(t, err)
	}
	_, err := p.Decide(context.Background(), arena.AgentContext{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPProvider_EvaluatorFallsBackWhenServiceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"target":3}`))
	}))
	defer srv.Close()

	ev := arena.NewEvaluator(NewHTTPProvider(srv.URL, time.Second, nil, zap.NewNop()), time.Second, nil, zap.NewNop(), nil)
	d := ev.Evaluate(context.Background(), arena.AgentContext{Strategy: arena.StrategyMeanRevert, Delta: 10}, func() float64 { return 0 })
	assert.Equal(t, -0.5, d.Target)
	assert.Equal(t, arena.SourceRules, d.Source)
}

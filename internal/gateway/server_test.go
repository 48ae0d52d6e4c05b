package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

type testEnv struct {
	engine *arena.Engine
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	metrics := observability.NewMetrics()
	hub := NewHub(256, zap.NewNop(), metrics)
	engine := arena.NewEngine(arena.Options{
		TickInterval: arena.MinTickInterval,
		MaxTicks:     3,
		Clock:        arena.NewManualClock(time.Now()),
		Publisher:    hub,
		Metrics:      metrics,
	})
	srv := httptest.NewServer(NewServer(engine, hub, zap.NewNop(), metrics).Routes())
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return &testEnv{engine: engine, server: srv}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]interface{}
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

// readUntil skips messages until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 50; i++ {
		m := readMsg(t, conn)
		if m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %s message", typ)
	return nil
}

func readQueueSize(t *testing.T, conn *websocket.Conn, size int) {
	t.Helper()
	for i := 0; i < 50; i++ {
		m := readUntil(t, conn, "queue")
		if m["queueSize"] == float64(size) {
			return
		}
	}
	t.Fatalf("queue never reached %d", size)
}

func TestServer_HelloFirst(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	hello := readMsg(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, float64(protocol.Version), hello["v"])
	assert.NotEmpty(t, hello["clientId"])
}

func TestServer_RejectsBadMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	readMsg(t, conn)

	cases := map[string]string{
		`not json`:                                     protocol.CodeBadJSON,
		`{"type":"subscribe","matchId":"x"}`:           protocol.CodeUnsupportedVersion,
		`{"type":"subscribe","v":2,"matchId":"x"}`:     protocol.CodeUnsupportedVersion,
		`{"type":"dance","v":1}`:                       protocol.CodeUnknownType,
		`{"type":"join_queue","v":1,"agentName":"a"}`:  protocol.CodeInvalidField,
		`{"type":"subscribe","v":1,"matchId":"ghost"}`: protocol.CodeMatchNotFound,
	}
	for raw, code := range cases {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		m := readMsg(t, conn)
		assert.Equal(t, "error", m["type"], raw)
		assert.Equal(t, code, m["code"], raw)
	}
}

func TestServer_JoinFormsMatchAndSubscribe(t *testing.T) {
	env := newTestEnv(t)

	conns := make([]*websocket.Conn, 5)
	for i := range conns {
		conns[i] = env.dial(t)
		readMsg(t, conns[i])
	}
	for i, c := range conns {
		join := map[string]interface{}{"type": "join_queue", "v": 1, "agentName": "bot", "strategy": "hold"}
		require.NoError(t, c.WriteJSON(join))
		readQueueSize(t, c, (i+1)%5)
	}

	status := readUntil(t, conns[0], "match_status")
	assert.Equal(t, "waiting", status["phase"])
	matchID, _ := status["matchId"].(string)
	require.NotEmpty(t, matchID)
	assert.Len(t, status["seats"], 5)

	require.NoError(t, conns[0].WriteJSON(map[string]interface{}{"type": "subscribe", "v": 1, "matchId": matchID}))
	snap := readUntil(t, conns[0], "match_status")
	assert.Equal(t, matchID, snap["matchId"])

	// the subscription is registered before the snapshot is sent
	env.engine.Advance(context.Background(), matchID)
	tick := readUntil(t, conns[0], "tick")
	assert.Equal(t, float64(1), tick["tick"])
	lb := readMsg(t, conns[0])
	assert.Equal(t, "leaderboard", lb["type"])
}

func TestServer_DisconnectLeavesQueue(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "join_queue", "v": 1, "agentName": "x", "strategy": "trend"}))
	readUntil(t, conn, "queue")
	assert.Equal(t, 1, env.engine.QueueSize())

	conn.Close()
	assert.Eventually(t, func() bool { return env.engine.QueueSize() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_FailedSubscribeLeavesNoFilter(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "subscribe", "v": 1, "matchId": "late"}))
	errMsg := readUntil(t, conn, "error")
	assert.Equal(t, protocol.CodeMatchNotFound, errMsg["code"])

	// a match created later under that id must not stream to this client
	_, err := env.engine.StartMatch(arena.MatchConfig{
		ID: "late", TickInterval: arena.MinTickInterval, MaxTicks: 3, StartPrice: 100000,
	}, []arena.QueueEntry{{Identity: "other", AgentName: "bot", Strategy: arena.StrategyHold}})
	require.NoError(t, err)
	env.engine.Advance(context.Background(), "late")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "join_queue", "v": 1, "agentName": "x", "strategy": "hold"}))
	for {
		m := readMsg(t, conn)
		require.NotEqual(t, "tick", m["type"])
		require.NotEqual(t, "leaderboard", m["type"])
		if m["type"] == "queue" {
			break
		}
	}
}

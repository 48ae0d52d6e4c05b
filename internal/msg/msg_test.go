package msg

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJoin(t *testing.T) {
	data, err := json.Marshal(JoinCmdMsg{EventID: "e1", Identity: "joiner-1", AgentName: "bot", Strategy: "trend", TsUnixMillis: 5})
	require.NoError(t, err)

	cmd, err := DecodeJoin(Record{Value: data})
	require.NoError(t, err)
	assert.Equal(t, "bot", cmd.AgentName)
	assert.Equal(t, "trend", cmd.Strategy)

	_, err = DecodeJoin(Record{Value: []byte("{")})
	assert.ErrorIs(t, err, ErrPermanent)

	_, err = DecodeJoin(Record{Value: []byte(`{"event_id":"e2","strategy":"hold"}`)})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestDecodeTick(t *testing.T) {
	data, err := json.Marshal(TickEventMsg{EventID: TickEventID("m1", 3), MatchID: "m1", Tick: 3, Price: 100})
	require.NoError(t, err)

	ev, err := DecodeTick(Record{Value: data})
	require.NoError(t, err)
	assert.Equal(t, 3, ev.Tick)
	assert.Equal(t, "tick-m1-3", ev.EventID)

	_, err = DecodeTick(Record{Value: []byte(`{"tick":1}`)})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "arena.ticks.m1", Subject(TopicTicks, "m1"))
	assert.Equal(t, "arena.matches", Subject(TopicMatches, ""))
}

func TestStreamConfigCoversTopics(t *testing.T) {
	cfg := StreamConfig()
	assert.Equal(t, jetstream.FileStorage, cfg.Storage)
	assert.Equal(t, jetstream.LimitsPolicy, cfg.Retention)
	assert.Equal(t, []string{"arena.>"}, cfg.Subjects)
}

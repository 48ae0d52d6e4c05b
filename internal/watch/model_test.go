package watch

import (
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

type fakeConn struct {
	mu   sync.Mutex
	msgs chan protocol.Message
	subs []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan protocol.Message, 16)}
}

func (f *fakeConn) Messages() <-chan protocol.Message { return f.msgs }

func (f *fakeConn) Subscribe(matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, matchID)
	return nil
}

func (f *fakeConn) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}

func status(matchID, phase string) *protocol.MatchStatus {
	s := protocol.NewMatchStatus(matchID, phase, 0, []protocol.SeatInfo{
		{SeatID: "1", AgentName: "alice", Strategy: "hold", Credits: 1000},
		{SeatID: "2", AgentName: "bob", Strategy: "trend", Credits: 1000},
	}, 1000, 60)
	return &s
}

func TestModel_FollowsFirstMatch(t *testing.T) {
	conn := newFakeConn()
	m := NewModel(conn, "")

	cmd := m.apply(status("m1", protocol.PhaseWaiting))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"m1"}, conn.subscriptions())
	assert.Equal(t, "m1", m.matchID)
	assert.Len(t, m.rows, 2)

	// a second match is ignored while following the first
	assert.Nil(t, m.apply(status("m2", protocol.PhaseWaiting)))
	assert.Equal(t, "m1", m.matchID)

	m.apply(&protocol.Tick{Type: protocol.TypeTick, MatchID: "m2", Tick: 1, BtcPrice: 5})
	assert.Equal(t, 0, m.tick)

	m.apply(&protocol.Tick{Type: protocol.TypeTick, MatchID: "m1", Tick: 1, BtcPrice: 100100})
	m.apply(&protocol.Tick{Type: protocol.TypeTick, MatchID: "m1", Tick: 2, BtcPrice: 100050})
	assert.Equal(t, 2, m.tick)
	assert.InDelta(t, 100100, m.prevPrice, 1e-9)
	assert.InDelta(t, 100050, m.price, 1e-9)
}

func TestModel_LeaderboardIsRanked(t *testing.T) {
	m := NewModel(newFakeConn(), "m1")
	m.Init()

	m.apply(&protocol.Leaderboard{Type: protocol.TypeLeaderboard, MatchID: "m1", Tick: 1, Rows: []protocol.LeaderboardRow{
		{SeatID: "1", AgentName: "alice", Credits: 990},
		{SeatID: "2", AgentName: "bob", Credits: 1010, Target: 0.5, Note: "trend"},
		{SeatID: "3", AgentName: "carol", Credits: 990},
	}})

	require.Len(t, m.rows, 3)
	assert.Equal(t, "2", m.rows[0].SeatID)
	assert.Equal(t, "1", m.rows[1].SeatID)
	assert.Equal(t, "3", m.rows[2].SeatID)
	assert.Contains(t, m.View(), "bob")
}

func TestModel_FinishedAndNext(t *testing.T) {
	conn := newFakeConn()
	m := NewModel(conn, "")
	m.apply(status("m1", protocol.PhaseRunning))

	m.apply(&protocol.MatchFinished{
		Type: protocol.TypeMatchFinished, V: protocol.Version, MatchID: "m1", Tick: 60,
		FinalPrice: 101000, WinnerSeatID: "2", PayoutSeatID: "2", Pot: "0", Rake: "0", Payout: "0",
		Rows: []protocol.LeaderboardRow{{SeatID: "1", Credits: 900}, {SeatID: "2", Credits: 1100}},
	})
	assert.Equal(t, protocol.PhaseFinished, m.phase)
	assert.Contains(t, m.View(), "winner seat 2")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Nil(t, cmd)
	assert.Empty(t, m.matchID)
	assert.Contains(t, m.View(), "waiting for a match")
}

func TestModel_ServerMessagesKeepListening(t *testing.T) {
	conn := newFakeConn()
	m := NewModel(conn, "")

	conn.msgs <- &protocol.Queue{Type: protocol.TypeQueue, V: protocol.Version, QueueSize: 3}
	msg := m.listen()()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	assert.Equal(t, 3, m.queueSize)

	close(conn.msgs)
	_, _ = m.Update(m.listen()())
	assert.True(t, m.disconnected)
	assert.Contains(t, m.View(), "disconnected")
}

func TestModel_ErrorMessageShown(t *testing.T) {
	m := NewModel(newFakeConn(), "missing")
	m.apply(&protocol.ErrorMessage{Type: protocol.TypeError, V: protocol.Version, Code: protocol.CodeMatchNotFound, Message: "no such match"})
	assert.Contains(t, m.View(), "match_not_found")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(newFakeConn(), "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

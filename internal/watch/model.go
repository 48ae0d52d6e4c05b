package watch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

// serverMsg wraps one message read from the gateway
type serverMsg struct {
	msg protocol.Message
}

// disconnectedMsg is sent once the connection's message channel closes
type disconnectedMsg struct{}

// subscribeErrMsg reports a failed subscribe write
type subscribeErrMsg struct {
	err error
}

type keyMap struct {
	Quit key.Binding
	Next key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Next: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "follow next match")),
	}
}

// Model follows one match: the requested one, or the first announced
type Model struct {
	conn   Conn
	follow string
	keys   keyMap
	table  table.Model

	clientID     string
	queueSize    int
	matchID      string
	phase        string
	tick         int
	maxTicks     int
	price        float64
	prevPrice    float64
	rows         []protocol.LeaderboardRow
	finished     *protocol.MatchFinished
	lastErr      string
	disconnected bool
	width        int
}

// NewModel builds a spectator. An empty matchID follows the next match
// the server announces.
func NewModel(conn Conn, matchID string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Agent", Width: 16},
			{Title: "Seat", Width: 5},
			{Title: "Credits", Width: 12},
			{Title: "Target", Width: 8},
			{Title: "Note", Width: 22},
		}),
		table.WithHeight(8),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(accentColor)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return &Model{
		conn:   conn,
		follow: matchID,
		keys:   defaultKeyMap(),
		table:  t,
	}
}

// Init starts listening and, for an explicit match, subscribes to it
func (m *Model) Init() tea.Cmd {
	if m.follow == "" {
		return m.listen()
	}
	m.matchID = m.follow
	return tea.Batch(m.listen(), m.subscribe(m.follow))
}

// Update handles key presses and server messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			if m.follow == "" && m.finished != nil {
				m.reset()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case serverMsg:
		return m, tea.Batch(m.listen(), m.apply(msg.msg))

	case disconnectedMsg:
		m.disconnected = true

	case subscribeErrMsg:
		m.lastErr = msg.err.Error()
	}
	return m, nil
}

// apply folds one server message into the model
func (m *Model) apply(msg protocol.Message) tea.Cmd {
	switch msg := msg.(type) {
	case *protocol.Hello:
		m.clientID = msg.ClientID

	case *protocol.Queue:
		m.queueSize = msg.QueueSize

	case *protocol.MatchStatus:
		if m.matchID == "" {
			m.matchID = msg.MatchID
			m.status(msg)
			return m.subscribe(msg.MatchID)
		}
		if msg.MatchID == m.matchID {
			m.status(msg)
		}

	case *protocol.Tick:
		if msg.MatchID != m.matchID {
			return nil
		}
		if m.tick > 0 {
			m.prevPrice = m.price
		} else {
			m.prevPrice = msg.BtcPrice
		}
		m.tick = msg.Tick
		m.price = msg.BtcPrice

	case *protocol.Leaderboard:
		if msg.MatchID == m.matchID {
			m.setRows(msg.Rows)
		}

	case *protocol.MatchFinished:
		if msg.MatchID != m.matchID {
			return nil
		}
		finished := *msg
		m.finished = &finished
		m.phase = protocol.PhaseFinished
		m.tick = msg.Tick
		m.price = msg.FinalPrice
		m.setRows(msg.Rows)

	case *protocol.ErrorMessage:
		m.lastErr = fmt.Sprintf("%s: %s", msg.Code, msg.Message)
	}
	return nil
}

func (m *Model) status(msg *protocol.MatchStatus) {
	m.phase = msg.Phase
	m.tick = msg.Tick
	m.maxTicks = msg.MaxTicks
	if len(m.rows) == 0 {
		rows := make([]protocol.LeaderboardRow, len(msg.Seats))
		for i, s := range msg.Seats {
			rows[i] = protocol.LeaderboardRow{SeatID: s.SeatID, AgentName: s.AgentName, Credits: s.Credits, Target: s.Target}
		}
		m.setRows(rows)
	}
}

func (m *Model) setRows(rows []protocol.LeaderboardRow) {
	m.rows = rankedRows(rows)
	out := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			r.AgentName,
			r.SeatID,
			fmt.Sprintf("%.2f", r.Credits),
			fmt.Sprintf("%+.2f", r.Target),
			r.Note,
		}
	}
	m.table.SetRows(out)
}

func (m *Model) reset() {
	m.matchID = ""
	m.phase = ""
	m.tick = 0
	m.maxTicks = 0
	m.price = 0
	m.prevPrice = 0
	m.rows = nil
	m.finished = nil
	m.lastErr = ""
	m.table.SetRows(nil)
}

// rankedRows orders rows by credits, highest first, ties by seat id
func rankedRows(rows []protocol.LeaderboardRow) []protocol.LeaderboardRow {
	out := make([]protocol.LeaderboardRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits > out[j].Credits
		}
		return out[i].SeatID < out[j].SeatID
	})
	return out
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.conn.Messages()
		if !ok {
			return disconnectedMsg{}
		}
		return serverMsg{msg: msg}
	}
}

func (m *Model) subscribe(matchID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Subscribe(matchID); err != nil {
			return subscribeErrMsg{err: err}
		}
		return nil
	}
}

// View renders the header, price line and leaderboard
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("match arena"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("client ") + valueStyle.Render(orDash(m.clientID)))
	b.WriteString(labelStyle.Render("  queue ") + valueStyle.Render(fmt.Sprintf("%d", m.queueSize)))
	b.WriteString("\n\n")

	if m.matchID == "" {
		b.WriteString(labelStyle.Render("waiting for a match..."))
	} else {
		b.WriteString(panelStyle.Render(m.matchView()))
	}
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("error: " + m.lastErr))
		b.WriteString("\n")
	}
	if m.disconnected {
		b.WriteString(errorStyle.Render("disconnected"))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m *Model) matchView() string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("match ") + valueStyle.Render(m.matchID))
	b.WriteString(labelStyle.Render("  phase ") + valueStyle.Render(orDash(m.phase)))
	b.WriteString(labelStyle.Render("  tick ") + valueStyle.Render(fmt.Sprintf("%d/%d", m.tick, m.maxTicks)))
	b.WriteString("\n")

	price := fmt.Sprintf("%.2f", m.price)
	switch {
	case m.price > m.prevPrice:
		price = upStyle.Render(price + " ▲")
	case m.price < m.prevPrice:
		price = downStyle.Render(price + " ▼")
	default:
		price = valueStyle.Render(price)
	}
	b.WriteString(labelStyle.Render("price ") + price)
	b.WriteString("\n\n")
	b.WriteString(m.table.View())

	if f := m.finished; f != nil {
		b.WriteString("\n\n")
		b.WriteString(winnerStyle.Render(fmt.Sprintf("winner seat %s", f.WinnerSeatID)))
		b.WriteString(labelStyle.Render(fmt.Sprintf("  pot %s  rake %s  payout %s", f.Pot, f.Rake, f.Payout)))
	}
	return b.String()
}

func (m *Model) helpLine() string {
	parts := []string{fmt.Sprintf("%s %s", m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc)}
	if m.follow == "" && m.finished != nil {
		parts = append(parts, fmt.Sprintf("%s %s", m.keys.Next.Help().Key, m.keys.Next.Help().Desc))
	}
	return strings.Join(parts, " • ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

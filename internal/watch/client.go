// Package watch implements the terminal spectator for arena matches.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

const writeWait = 5 * time.Second

// Conn is the spectator's view of a server connection
type Conn interface {
	Messages() <-chan protocol.Message
	Subscribe(matchID string) error
}

// Client is a websocket connection to the arena gateway. Messages are
// decoded on a single reader goroutine and delivered in order.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger
	msgs   chan protocol.Message

	writeMu   sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// Dial connects to the gateway's websocket endpoint
func Dial(url string, logger *zap.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		msgs:    make(chan protocol.Message, 256),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Messages is closed when the connection ends
func (c *Client) Messages() <-chan protocol.Message {
	return c.msgs
}

// Subscribe asks the server for a match's event stream
func (c *Client) Subscribe(matchID string) error {
	return c.write(protocol.Subscribe{Type: protocol.TypeSubscribe, V: protocol.Version, MatchID: matchID})
}

// Close closes the connection and waits for the reader to exit
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.msgs)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("read loop ended", zap.Error(err))
			}
			return
		}

		m, err := protocol.DecodeServer(data)
		if err != nil {
			c.logger.Debug("skipping server message", zap.Error(err))
			continue
		}
		select {
		case c.msgs <- m:
		case <-c.closing:
			return
		}
	}
}

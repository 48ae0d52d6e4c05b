package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Engine is the part of the match engine clients can drive
type Engine interface {
	Join(identity, agentName, strategy string) (int, error)
	Leave(identity string) int
	Status(matchID string) (arena.MatchSnapshot, error)
}

// Server accepts websocket clients and routes their messages to the engine
type Server struct {
	engine   Engine
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewServer builds a Server around an engine and the hub the engine publishes to
func NewServer(engine Engine, hub *Hub, logger *zap.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		hub:      hub,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Routes serves /ws and /metrics
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	sub := s.hub.Register(clientID)
	logger := s.logger.With(zap.String("client_id", clientID))
	logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	s.hub.SendMessage(clientID, protocol.NewHello(clientID, s.now().UnixMilli()))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, sub)
	}()

	s.readLoop(conn, clientID, logger)

	s.engine.Leave(clientID)
	s.hub.Unregister(clientID)
	<-writerDone
	logger.Info("client disconnected")
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *Subscription) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case data, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// unblock the reader so the handler can clean up
				_ = conn.Close()
				s.drain(sub)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				s.drain(sub)
				return
			}
		}
	}
}

// drain discards queued messages until the hub closes the stream
func (s *Server) drain(sub *Subscription) {
	for range sub.C() {
	}
}

func (s *Server) readLoop(conn *websocket.Conn, clientID string, logger *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		s.handleMessage(clientID, data, logger)
	}
}

func (s *Server) handleMessage(clientID string, data []byte, logger *zap.Logger) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		s.replyError(clientID, err)
		return
	}

	switch m := msg.(type) {
	case protocol.Subscribe:
		snap, err := s.engine.Status(m.MatchID)
		if err != nil {
			s.replyError(clientID, err)
			return
		}
		s.hub.Subscribe(clientID, m.MatchID)
		s.hub.SendMessage(clientID, snap.StatusMessage())

	case protocol.JoinQueue:
		size, err := s.engine.Join(clientID, m.AgentName, m.Strategy)
		if err != nil {
			s.replyError(clientID, err)
			return
		}
		logger.Debug("client joined queue", zap.String("agent_name", m.AgentName), zap.Int("queue_size", size))

	case protocol.LeaveQueue:
		size := s.engine.Leave(clientID)
		logger.Debug("client left queue", zap.Int("queue_size", size))
	}
}

func (s *Server) replyError(clientID string, err error) {
	s.hub.SendMessage(clientID, toProtocolError(err).ToMessage())
}

func toProtocolError(err error) *protocol.Error {
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, arena.ErrMatchNotFound):
		return protocol.Errorf(protocol.CodeMatchNotFound, "%v", err)
	case errors.Is(err, arena.ErrEngineClosed):
		return protocol.Errorf(protocol.CodeEngineClosed, "%v", err)
	default:
		return protocol.Errorf(protocol.CodeInvalidField, "%v", err)
	}
}

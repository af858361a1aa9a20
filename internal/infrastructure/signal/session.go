package signal

import (
	"context"
	"sync"
	"time"

	"streamctl/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session is one control connection. Its auth state is private to the
// session and only changed from its read loop.
type Session struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	ctx         context.Context
	authLimiter *rate.Limiter
	logger      *zap.SugaredLogger

	mu            sync.RWMutex
	authenticated bool
	token         domain.Token

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) authenticate(tok domain.Token) {
	s.mu.Lock()
	s.authenticated = true
	s.token = tok
	s.mu.Unlock()
}

func (s *Session) deauthenticate() {
	s.mu.Lock()
	s.authenticated = false
	s.token = ""
	s.mu.Unlock()
}

func (s *Session) currentToken() domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// trySend queues data without blocking. A full buffer drops the frame.
func (s *Session) trySend(data []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		s.logger.Warnw("send buffer full, dropping frame", "size", len(data))
		return false
	}
}

func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *Session) sendFrame(typ string, payload interface{}) {
	data, err := encodeFrame(typ, payload)
	if err != nil {
		s.logger.Errorw("failed to marshal frame", "type", typ, "error", err)
		return
	}
	s.trySend(data)
}

func (s *Session) sendError(msg string) {
	s.sendFrame(TypeError, ErrorReply{Msg: msg})
}

func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	opts := s.hub.opts
	s.conn.SetReadLimit(opts.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	})

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnw("websocket read error", "error", err)
			} else {
				s.logger.Debugw("websocket closed", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		s.hub.handleFrame(s, message)
	}
}

func (s *Session) writePump() {
	opts := s.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debugw("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-bridge/pkg/bridgedto"
)

type SocketState int

const (
	SocketDisconnected SocketState = iota
	SocketConnected
	SocketFailed
)

const (
	socketDialTimeout  = 10 * time.Second
	socketWriteTimeout = 5 * time.Second
)

// Socket writes events as JSON frames over one WebSocket, dialing on first
// use and redialing once when a write fails.
type Socket struct {
	url    string
	logger *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state SocketState
}

func NewSocket(url string, logger *zap.Logger) *Socket {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Socket{url: url, logger: logger, state: SocketDisconnected}
}

func (s *Socket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) GameOver(ctx context.Context, ev bridgedto.GameOverEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := Envelope{Type: eventGameOver, Event: ev}
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := s.ensureConn(ctx); err != nil {
			return err
		}
		if lastErr = s.write(ctx, &frame); lastErr == nil {
			return nil
		}
		s.logger.Warn("notify_ws_write_failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		s.closeConn(websocket.StatusGoingAway, "write failure")
	}
	return fmt.Errorf("ws write: %w", lastErr)
}

func (s *Socket) ensureConn(ctx context.Context) error {
	if s.conn != nil && s.state == SocketConnected {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, socketDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.state = SocketFailed
		return fmt.Errorf("ws dial: %w", err)
	}
	s.conn = conn
	// Frames are write-only; CloseRead keeps control frames flowing.
	s.conn.CloseRead(context.Background())
	s.state = SocketConnected
	s.logger.Info("notify_ws_connected", zap.String("url", s.url))
	return nil
}

func (s *Socket) write(ctx context.Context, v any) error {
	wctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, socketWriteTimeout)
		defer cancel()
	}
	return wsjson.Write(wctx, s.conn, v)
}

func (s *Socket) closeConn(code websocket.StatusCode, reason string) {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close(code, reason)
	s.conn = nil
	s.state = SocketDisconnected
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConn(websocket.StatusNormalClosure, "close")
	return nil
}

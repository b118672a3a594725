// Package notify delivers game-over events to an external listener.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-bridge/pkg/bridgedto"
)

var ErrUnavailable = errors.New("notifier not available")

type Mode string

const (
	ModeLog  Mode = "log"
	ModeHTTP Mode = "http"
	ModeWS   Mode = "ws"
	ModeAuto Mode = "auto"
)

// ParseMode defaults to ModeLog for an empty value.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeLog, nil
	case ModeLog, ModeHTTP, ModeWS, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("unknown notify mode %q", raw)
	}
}

type Notifier interface {
	GameOver(ctx context.Context, ev bridgedto.GameOverEvent) error
}

// Envelope is the JSON body sent over HTTP and WebSocket.
type Envelope struct {
	Type  string                  `json:"type"`
	Event bridgedto.GameOverEvent `json:"event"`
}

const eventGameOver = "game_over"

type Options struct {
	Mode    Mode
	URL     string
	Timeout time.Duration
	Retry   int
	Logger  *zap.Logger
}

// New builds the notifier for opts.Mode. Auto tries the WebSocket first and
// falls back to HTTP once.
func New(opts Options) (Notifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" || opts.Mode == ModeLog {
		return &logNotifier{logger: logger}, nil
	}
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("notify mode %s requires a url", opts.Mode)
	}

	switch opts.Mode {
	case ModeHTTP:
		return NewWebhook(httpURL(opts.URL), WithTimeout(opts.Timeout), WithRetry(opts.Retry)), nil
	case ModeWS:
		return NewSocket(wsURL(opts.URL), logger), nil
	case ModeAuto:
		return &autoNotifier{
			ws:     NewSocket(wsURL(opts.URL), logger),
			http:   NewWebhook(httpURL(opts.URL), WithTimeout(opts.Timeout), WithRetry(opts.Retry)),
			logger: logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", opts.Mode)
	}
}

// logNotifier only records the event.
type logNotifier struct {
	logger *zap.Logger
}

func (l *logNotifier) GameOver(_ context.Context, ev bridgedto.GameOverEvent) error {
	l.logger.Info("game_over",
		zap.String("session_uuid", ev.SessionUUID),
		zap.String("winner", ev.Winner),
		zap.String("method", ev.Method),
		zap.Int("plies", len(ev.Moves)),
	)
	return nil
}

type autoNotifier struct {
	ws     *Socket
	http   *Webhook
	logger *zap.Logger
}

func (a *autoNotifier) GameOver(ctx context.Context, ev bridgedto.GameOverEvent) error {
	err := a.ws.GameOver(ctx, ev)
	if err == nil {
		return nil
	}
	a.logger.Warn("notify_fallback", zap.String("session_uuid", ev.SessionUUID), zap.Error(err))
	return a.http.GameOver(ctx, ev)
}

// Close releases a held WebSocket, if any.
func Close(n Notifier) error {
	switch v := n.(type) {
	case *Socket:
		return v.Close()
	case *autoNotifier:
		return v.ws.Close()
	}
	return nil
}

func wsURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	}
	return raw
}

func httpURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "ws://"):
		return "http://" + strings.TrimPrefix(raw, "ws://")
	case strings.HasPrefix(raw, "wss://"):
		return "https://" + strings.TrimPrefix(raw, "wss://")
	}
	return raw
}

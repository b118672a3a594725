// Package httpapi exposes the bridge controller over plain-text HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-bridge/internal/service/bridge"
	"github.com/park285/chess-bridge/pkg/bridgedto"
)

const (
	maxBodySize    = 8 << 10
	contentText    = "text/plain; charset=utf-8"
	contentJSON    = "application/json"
	contentPNG     = "image/png"
	defaultTimeout = 30 * time.Second
)

// Bridge is the controller surface the routes need.
type Bridge interface {
	Start(ctx context.Context, color string) bridge.Reply
	Submit(ctx context.Context, input string) bridge.Reply
	Status() bridgedto.Status
	RenderBoard(ctx context.Context) ([]byte, error)
	RecentGames(ctx context.Context, limit int) ([]bridgedto.Game, error)
}

type Server struct {
	bridge Bridge
	logger *zap.Logger
	srv    *fasthttp.Server
}

func New(b Bridge, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{bridge: b, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "chess-bridge",
		MaxRequestBodySize: maxBodySize,
		ReadTimeout:        defaultTimeout,
		WriteTimeout:       defaultTimeout,
	}
	return s
}

// Routes lists the endpoints for the startup banner.
func Routes() []string {
	return []string{
		"POST /start",
		"POST /move",
		"GET  /status",
		"GET  /board.png",
		"GET  /games",
		"GET  /healthz",
	}
}

func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	switch string(ctx.Path()) {
	case "/start":
		s.post(ctx, s.handleStart)
	case "/move":
		s.post(ctx, s.handleMove)
	case "/status":
		s.get(ctx, s.handleStatus)
	case "/board.png":
		s.get(ctx, s.handleBoard)
	case "/games":
		s.get(ctx, s.handleGames)
	case "/healthz":
		s.get(ctx, func(ctx *fasthttp.RequestCtx) { writeText(ctx, "ok") })
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
	s.logger.Debug("http_request",
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) post(ctx *fasthttp.RequestCtx, h fasthttp.RequestHandler) {
	if !ctx.IsPost() {
		ctx.Response.Header.Set(fasthttp.HeaderAllow, fasthttp.MethodPost)
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	h(ctx)
}

func (s *Server) get(ctx *fasthttp.RequestCtx, h fasthttp.RequestHandler) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Response.Header.Set(fasthttp.HeaderAllow, fasthttp.MethodGet)
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	h(ctx)
}

func (s *Server) handleStart(ctx *fasthttp.RequestCtx) {
	reply := s.bridge.Start(ctx, string(ctx.PostBody()))
	s.logger.Info("http_start",
		zap.String("reason", reply.Reason.String()),
		zap.String("reply", reply.Text()),
	)
	writeText(ctx, reply.Text())
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx) {
	reply := s.bridge.Submit(ctx, string(ctx.PostBody()))
	writeText(ctx, reply.Text())
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, s.bridge.Status())
}

func (s *Server) handleBoard(ctx *fasthttp.RequestCtx) {
	data, err := s.bridge.RenderBoard(ctx)
	if errors.Is(err, bridge.ErrNoSession) {
		ctx.Error("no session", fasthttp.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("http_render_failed", zap.Error(err))
		ctx.Error("render failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType(contentPNG)
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetBody(data)
}

func (s *Server) handleGames(ctx *fasthttp.RequestCtx) {
	limit := 0
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			ctx.Error("invalid limit", fasthttp.StatusBadRequest)
			return
		}
		limit = n
	}
	games, err := s.bridge.RecentGames(ctx, limit)
	if err != nil {
		s.logger.Error("http_games_failed", zap.Error(err))
		writeJSON(ctx, fasthttp.StatusInternalServerError, bridgedto.DomainError{Code: "archive_unavailable", Message: err.Error()})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, games)
}

// Serve blocks until ln is closed or Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func writeText(ctx *fasthttp.RequestCtx, body string) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentText)
	ctx.SetBodyString(body)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType(contentJSON)
	ctx.SetBody(body)
}

// Package chess drives the external UCI engine that answers the bridge's moves.
package chess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-bridge/internal/chess/uci"
)

var (
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrEngineTimeout     = errors.New("engine timed out")
	ErrBinaryNotFound    = errors.New("stockfish binary not found")
)

// Candidate locations probed when no binary path is configured.
var wellKnownBinaries = []string{"/usr/games/stockfish", "/usr/bin/stockfish"}

type Engine struct {
	pool   *uci.Pool
	logger *zap.Logger
}

func NewEngine(binaryPath string, poolSize int, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: binaryPath,
		Options:    SearchOptions(),
		Capacity:   poolSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool, logger: logger}, nil
}

// BestMove searches fen with the fixed full-strength configuration and
// returns the reply in coordinate notation, or "" when the position has no
// legal move.
func (e *Engine) BestMove(ctx context.Context, fen string) (string, error) {
	if e == nil || e.pool == nil {
		return "", ErrEngineUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, SearchTimeout())
	defer cancel()

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return "", mapEngineError(err)
	}
	var releaseErr error
	defer func() {
		e.pool.Release(session, releaseErr)
	}()

	start := time.Now()
	resp, err := session.Search(ctx, uci.SearchRequest{
		FEN:    fen,
		Limits: SearchLimits(),
	})
	if err != nil {
		releaseErr = err
		return "", mapEngineError(err)
	}

	var eval int
	if len(resp.Candidates) > 0 {
		eval = resp.Candidates[0].EvalCP
	}
	e.logger.Debug("engine_best_move",
		zap.String("fen", fen),
		zap.String("move_uci", resp.BestMove),
		zap.Int("eval_cp", eval),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.BestMove, nil
}

// Warm starts one engine process and runs the ucinewgame handshake so the
// first search does not pay for it.
func (e *Engine) Warm(ctx context.Context) error {
	if e == nil || e.pool == nil {
		return ErrEngineUnavailable
	}
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return mapEngineError(err)
	}
	err = session.NewGame(ctx)
	e.pool.Release(session, err)
	if err != nil {
		return mapEngineError(err)
	}
	return nil
}

func (e *Engine) Close() error {
	if e == nil || e.pool == nil {
		return nil
	}
	return e.pool.Close()
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrEngineTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
}

// FindBinary resolves the engine executable. An explicit path wins; otherwise
// well-known install locations are probed, then PATH.
func FindBinary(configured string) (string, error) {
	if p := strings.TrimSpace(configured); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, p, err)
		}
		return p, nil
	}
	for _, p := range wellKnownBinaries {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	if p, err := exec.LookPath("stockfish"); err == nil {
		return p, nil
	}
	return "", ErrBinaryNotFound
}

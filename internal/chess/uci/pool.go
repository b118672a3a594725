package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

const defaultPoolCapacity = 1

var (
	errPoolAtCapacity = errors.New("engine pool at capacity")
	ErrPoolClosed     = errors.New("engine pool closed")
)

type PoolConfig struct {
	BinaryPath string
	Options    Options
	Capacity   int
	Logger     *zap.Logger
}

// Pool keeps up to Capacity engine processes sharing one option set.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int
	logger     *zap.Logger

	mu       sync.Mutex
	total    int
	closed   bool
	idle     chan *Session
	sessions map[*Session]struct{}
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	if err := validateOptions(cfg.Options); err != nil {
		return nil, err
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultPoolCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        cfg.Options,
		capacity:   capacity,
		logger:     logger,
		idle:       make(chan *Session, capacity),
		sessions:   make(map[*Session]struct{}),
	}, nil
}

// Acquire returns an idle session that still answers isready, or starts a
// new one while below capacity, or waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case session := <-p.idle:
			if p.ready(ctx, session) {
				return session, nil
			}
			continue
		default:
		}

		session, err := p.create(ctx)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, errPoolAtCapacity) {
			return nil, err
		}

		select {
		case session := <-p.idle:
			if p.ready(ctx, session) {
				return session, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns session to the pool. A non-nil err discards it.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}
	p.mu.Lock()
	_, tracked := p.sessions[session]
	closed := p.closed
	p.mu.Unlock()

	if !tracked || closed || err != nil {
		if err != nil {
			p.logger.Warn("engine_session_discarded", zap.Error(err))
		}
		p.discard(session)
		return
	}
	select {
	case p.idle <- session:
	default:
		p.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := p.forget(session).Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) ready(ctx context.Context, session *Session) bool {
	if session == nil {
		return false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("engine_session_stale", zap.Error(err))
		p.discard(session)
		return false
	}
	return true
}

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errPoolAtCapacity
	}
	p.total++
	p.mu.Unlock()

	session, err := NewSession(ctx, p.binaryPath, p.opt, p.logger)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	p.sessions[session] = struct{}{}
	p.mu.Unlock()
	p.logger.Debug("engine_session_started", zap.String("binary", p.binaryPath))
	return session, nil
}

func (p *Pool) discard(session *Session) {
	_ = p.forget(session).Close()
}

func (p *Pool) forget(session *Session) *Session {
	p.mu.Lock()
	if _, ok := p.sessions[session]; ok {
		delete(p.sessions, session)
		if p.total > 0 {
			p.total--
		}
	}
	p.mu.Unlock()
	return session
}

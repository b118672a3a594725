// Package bridge reconciles moves and sensor snapshots from a physical board
// with the authoritative game and the engine opponent.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/domain"
	"github.com/park285/chess-bridge/internal/game"
	"github.com/park285/chess-bridge/internal/occupancy"
	"github.com/park285/chess-bridge/pkg/bridgedto"
)

const (
	defaultGameOverDelay = 8 * time.Second
	defaultEngineTimeout = 5 * time.Second
	defaultStoreTimeout  = 3 * time.Second
	defaultNotifyTimeout = 5 * time.Second
	defaultHistoryLimit  = 10
	maxHistoryLimit      = 50
)

var ErrNoSession = errors.New("no chess session started")

// Engine answers a position with a move in coordinate notation, or "" when
// the side to move has none.
type Engine interface {
	BestMove(ctx context.Context, fen string) (string, error)
}

// Notifier delivers the delayed game-over signal.
type Notifier interface {
	GameOver(ctx context.Context, ev bridgedto.GameOverEvent) error
}

type Config struct {
	GameOverDelay time.Duration
	EngineTimeout time.Duration
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.GameOverDelay <= 0 {
		c.GameOverDelay = defaultGameOverDelay
	}
	if c.EngineTimeout <= 0 {
		c.EngineTimeout = defaultEngineTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = defaultNotifyTimeout
	}
	return c
}

// Controller owns the single live session. Every operation holds mu for its
// whole duration, engine query included.
type Controller struct {
	mu       sync.Mutex
	session  *game.Session
	started  bool
	sensor   occupancy.Snapshot
	timer    *time.Timer
	engine   Engine
	journal  Journal
	repo     Repository
	notifier Notifier
	renderer BoardRenderer
	cfg      Config
	logger   *zap.Logger

	generation atomic.Uint64

	now   func() time.Time
	newID func() string
}

// NewController wires a controller. journal, repo and notifier may be nil.
func NewController(engine Engine, journal Journal, repo Repository, notifier Notifier, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session:  game.NewSession(game.NewChessRules()),
		engine:   engine,
		journal:  journal,
		repo:     repo,
		notifier: notifier,
		renderer: NewSVGBoardRenderer(),
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Start resets the game with the engine playing colorText. When the engine
// is white its first move is returned.
func (c *Controller) Start(ctx context.Context, colorText string) Reply {
	color, ok := game.ParseColor(colorText)
	if !ok {
		c.logger.Info("bridge_start_rejected", zap.String("color", colorText))
		return invalid(ReasonInvalidColor)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimer()
	gen := c.generation.Add(1)
	c.session.Reset(c.newID(), color, c.now())
	c.sensor = c.session.Last
	c.started = true
	c.logger.Info("bridge_session_start",
		zap.String("session_uuid", c.session.UUID),
		zap.String("engine_color", color.String()),
		zap.Uint64("generation", gen),
	)

	reply := empty(ReasonAwaitingOpponent)
	if c.session.EngineToMove() {
		reply = c.respond(ctx, ReasonOpening)
	}
	c.persist(ctx)
	return reply
}

// Submit takes a coordinate move or an occupancy snapshot.
func (c *Controller) Submit(ctx context.Context, input string) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active {
		return Reply{Kind: KindGameOver, Reason: ReasonInactive}
	}

	text := strings.ToLower(strings.TrimSpace(input))
	var reply Reply
	if board.IsCoordinateMove(text) {
		reply = c.submitMove(ctx, text)
	} else {
		reply = c.submitSnapshot(ctx, input)
	}
	c.logger.Debug("bridge_submit",
		zap.String("session_uuid", c.session.UUID),
		zap.String("reason", reply.Reason.String()),
		zap.String("applied", reply.Applied),
		zap.String("reply", reply.Move),
	)
	return reply
}

func (c *Controller) submitMove(ctx context.Context, text string) Reply {
	mv, err := board.ParseMove(text)
	if err != nil || !c.session.Legal(mv) {
		return invalid(ReasonIllegal)
	}
	return c.applyExternal(ctx, mv, ReasonFastPath)
}

func (c *Controller) submitSnapshot(ctx context.Context, input string) Reply {
	snap, err := occupancy.Parse(input)
	if err != nil {
		return empty(ReasonParseFailure)
	}
	if snap.Empty() {
		return empty(ReasonNoInformation)
	}
	c.sensor = snap

	current := c.session.Snapshot()
	if snap.Equal(current) {
		return empty(ReasonNoChange)
	}
	mv, err := occupancy.Infer(snap, current)
	if err != nil {
		d := occupancy.Diff(snap, current)
		c.logger.Debug("bridge_snapshot_rejected",
			zap.String("session_uuid", c.session.UUID),
			zap.String("white_added", d.WhiteAdded.String()),
			zap.String("white_removed", d.WhiteRemoved.String()),
			zap.String("black_added", d.BlackAdded.String()),
			zap.String("black_removed", d.BlackRemoved.String()),
		)
		return empty(ReasonRejected)
	}
	if !c.session.Legal(mv) {
		return empty(ReasonIllegal)
	}
	return c.applyExternal(ctx, mv, ReasonMoveInferred)
}

// applyExternal plays a move from the board side and, unless it ends the
// game, lets the engine answer.
func (c *Controller) applyExternal(ctx context.Context, mv board.Move, reason Reason) Reply {
	if err := c.session.Apply(mv); err != nil {
		return invalid(ReasonIllegal)
	}
	c.logger.Info("bridge_move_applied",
		zap.String("session_uuid", c.session.UUID),
		zap.String("move_uci", mv.String()),
		zap.String("reason", reason.String()),
	)

	var reply Reply
	if c.session.Checkmated() {
		c.finish(ctx)
		reply = empty(ReasonCheckmate)
	} else {
		reply = c.respond(ctx, reason)
	}
	reply.Applied = mv.String()
	c.persist(ctx)
	return reply
}

// respond asks the engine for a move in the current position and applies it.
func (c *Controller) respond(ctx context.Context, reason Reason) Reply {
	if c.engine == nil {
		return empty(ReasonEngineUnavailable)
	}

	ectx, cancel := context.WithTimeout(ctx, c.cfg.EngineTimeout)
	defer cancel()
	text, err := c.engine.BestMove(ectx, c.session.FEN())
	if err != nil {
		c.logger.Warn("bridge_engine_failed",
			zap.String("session_uuid", c.session.UUID),
			zap.Error(err),
		)
		return empty(ReasonEngineUnavailable)
	}
	if text == "" {
		return empty(ReasonEngineUnavailable)
	}
	mv, err := board.ParseMove(strings.ToLower(strings.TrimSpace(text)))
	if err == nil {
		err = c.session.Apply(mv)
	}
	if err != nil {
		c.logger.Warn("bridge_engine_move_rejected",
			zap.String("session_uuid", c.session.UUID),
			zap.String("move_uci", text),
			zap.Error(err),
		)
		return empty(ReasonEngineUnavailable)
	}
	c.logger.Info("bridge_engine_move",
		zap.String("session_uuid", c.session.UUID),
		zap.String("move_uci", mv.String()),
	)

	if c.session.Checkmated() {
		c.finish(ctx)
	}
	return Reply{Kind: KindMove, Reason: reason, Move: mv.String()}
}

// finish deactivates a checkmated session, archives it and schedules the
// game-over notification.
func (c *Controller) finish(ctx context.Context) {
	c.session.Active = false
	endedAt := c.now()
	rec := buildRecord(c.session, endedAt)
	c.logger.Info("bridge_checkmate",
		zap.String("session_uuid", c.session.UUID),
		zap.String("winner", rec.Result),
		zap.Int("plies", len(rec.MovesUCI)),
	)
	c.archive(ctx, rec)
	c.scheduleGameOver(c.generation.Load(), bridgedto.GameOverEvent{
		SessionUUID: rec.SessionUUID,
		Winner:      rec.Result,
		Method:      rec.Method,
		EngineColor: rec.EngineColor,
		Moves:       append([]string(nil), rec.MovesUCI...),
		FEN:         c.session.FEN(),
		EndedAt:     endedAt,
	})
}

func (c *Controller) archive(ctx context.Context, rec *domain.GameRecord) {
	if c.repo == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
	defer cancel()
	id, err := c.repo.InsertGame(actx, rec)
	if err != nil {
		c.logger.Error("bridge_archive_failed",
			zap.String("session_uuid", rec.SessionUUID),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("bridge_archived",
		zap.String("session_uuid", rec.SessionUUID),
		zap.Int64("game_id", id),
	)
}

// scheduleGameOver fires after the configured delay unless a newer session
// has started by then. The callback never touches session state.
func (c *Controller) scheduleGameOver(gen uint64, ev bridgedto.GameOverEvent) {
	c.stopTimer()
	notifier := c.notifier
	logger := c.logger
	timeout := c.cfg.NotifyTimeout
	c.timer = time.AfterFunc(c.cfg.GameOverDelay, func() {
		if current := c.generation.Load(); current != gen {
			logger.Debug("bridge_game_over_stale",
				zap.String("session_uuid", ev.SessionUUID),
				zap.Uint64("generation", gen),
				zap.Uint64("current_generation", current),
			)
			return
		}
		if notifier == nil {
			logger.Warn("Game Over",
				zap.String("session_uuid", ev.SessionUUID),
				zap.String("winner", ev.Winner),
			)
			return
		}
		nctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := notifier.GameOver(nctx, ev); err != nil {
			logger.Warn("bridge_notify_failed",
				zap.String("session_uuid", ev.SessionUUID),
				zap.Error(err),
			)
		}
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) record() *JournalRecord {
	return &JournalRecord{
		SessionUUID: c.session.UUID,
		EngineColor: c.session.Color.String(),
		Moves:       append([]string(nil), c.session.Moves...),
		Active:      c.session.Active,
		Generation:  c.generation.Load(),
		Snapshot:    c.sensor.String(),
		StartedAt:   c.session.StartedAt,
		UpdatedAt:   c.now(),
	}
}

func (c *Controller) persist(ctx context.Context) {
	if c.journal == nil || !c.started {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
	defer cancel()
	if err := c.journal.Save(jctx, c.record()); err != nil {
		c.logger.Warn("bridge_journal_failed",
			zap.String("session_uuid", c.session.UUID),
			zap.Error(err),
		)
	}
}

// Restore rebuilds the session from the journal. It reports whether a
// session was found.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	if c.journal == nil {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.journal.Load(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	color, ok := game.ParseColor(rec.EngineColor)
	if !ok {
		return false, fmt.Errorf("journal engine color %q", rec.EngineColor)
	}
	c.session.Reset(rec.SessionUUID, color, rec.StartedAt)
	if err := c.session.Replay(rec.Moves); err != nil {
		c.session.Active = false
		return false, fmt.Errorf("replay journal: %w", err)
	}
	c.session.Active = rec.Active && !c.session.Checkmated()
	c.sensor = c.session.Last
	if rec.Snapshot != "" {
		if snap, err := occupancy.Parse(rec.Snapshot); err == nil && !snap.Empty() {
			c.sensor = snap
		}
	}
	c.generation.Store(rec.Generation)
	c.started = true
	c.logger.Info("bridge_session_restored",
		zap.String("session_uuid", rec.SessionUUID),
		zap.Int("plies", len(rec.Moves)),
		zap.Bool("active", c.session.Active),
	)
	return true, nil
}

func (c *Controller) Status() bridgedto.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := bridgedto.Status{
		Active:     c.session.Active,
		Generation: c.generation.Load(),
		Moves:      []string{},
	}
	if !c.started {
		return st
	}
	st.SessionUUID = c.session.UUID
	st.EngineColor = c.session.Color.String()
	st.Turn = c.session.Turn().String()
	st.FEN = c.session.FEN()
	st.Moves = append(st.Moves, c.session.Moves...)
	st.LastSnapshot = toDTO(c.session.Last)
	st.StartedAt = c.session.StartedAt

	d := occupancy.Diff(c.sensor, c.session.Snapshot())
	st.SensorDiff = bridgedto.Snapshot{
		White: d.WhiteAdded.Union(d.WhiteRemoved).Strings(),
		Black: d.BlackAdded.Union(d.BlackRemoved).Strings(),
	}
	return st
}

// RenderBoard draws the current position with the last sensor snapshot.
func (c *Controller) RenderBoard(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, ErrNoSession
	}
	opts := RenderOptions{}
	sensor := c.sensor
	opts.Sensor = &sensor
	if n := len(c.session.Moves); n > 0 {
		opts.LastMove = c.session.Moves[n-1]
	}
	return c.renderer.RenderPNG(ctx, c.session.FEN(), opts)
}

// RecentGames lists archived games, newest first.
func (c *Controller) RecentGames(ctx context.Context, limit int) ([]bridgedto.Game, error) {
	if c.repo == nil {
		return []bridgedto.Game{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	games, err := c.repo.GetRecentGames(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]bridgedto.Game, 0, len(games))
	for _, g := range games {
		out = append(out, bridgedto.Game{
			ID:          g.ID,
			SessionUUID: g.SessionUUID,
			EngineColor: g.EngineColor,
			Result:      g.Result,
			Method:      g.Method,
			MovesUCI:    g.MovesUCI,
			MovesSAN:    g.MovesSAN,
			PGN:         g.PGN,
			StartedAt:   g.StartedAt,
			EndedAt:     g.EndedAt,
			DurationMS:  g.Duration.Milliseconds(),
		})
	}
	return out, nil
}

// Close stops a pending game-over timer.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTimer()
	c.mu.Unlock()
}

func toDTO(s occupancy.Snapshot) bridgedto.Snapshot {
	return bridgedto.Snapshot{White: s.White.Strings(), Black: s.Black.Strings()}
}

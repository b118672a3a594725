// Package bridgebuilder wires the bridge controller from configuration.
package bridgebuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	corechess "github.com/park285/chess-bridge/internal/chess"
	"github.com/park285/chess-bridge/internal/config"
	"github.com/park285/chess-bridge/internal/notify"
	"github.com/park285/chess-bridge/internal/service/bridge"
)

type Deps struct {
	Controller *bridge.Controller
	Engine     *corechess.Engine
	Notifier   notify.Notifier
	Redis      *redis.Client
	DB         *sql.DB
	EnginePath string
	Restored   bool

	logger *zap.Logger
}

// New builds every collaborator. Redis and Postgres are optional: without
// them the session is not journaled and games are archived in memory.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Deps{logger: logger}

	path, err := corechess.FindBinary(cfg.StockfishPath)
	if err != nil {
		return nil, err
	}
	deps.EnginePath = path
	engine, err := corechess.NewEngine(path, cfg.EnginePoolSize, logger.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	deps.Engine = engine
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := engine.Warm(wctx); err != nil {
		logger.Warn("engine_warm_failed", zap.String("path", path), zap.Error(err))
	}
	cancel()

	var journal bridge.Journal
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		deps.Redis = redis.NewClient(opts)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = deps.Redis.Ping(pctx).Err()
		cancel()
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		journal = bridge.NewRedisJournal(deps.Redis, cfg.JournalKey, cfg.SessionTTL)
	} else {
		logger.Info("journal_disabled")
	}

	repo, err := deps.openRepository(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	mode, err := notify.ParseMode(cfg.NotifyMode)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Notifier, err = notify.New(notify.Options{
		Mode:    mode,
		URL:     cfg.NotifyURL,
		Timeout: cfg.NotifyTimeout,
		Retry:   cfg.NotifyRetry,
		Logger:  logger.Named("notify"),
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	deps.Controller = bridge.NewController(engine, journal, repo, deps.Notifier, bridge.Config{
		NotifyTimeout: cfg.NotifyTimeout,
	}, logger.Named("bridge"))

	restored, err := deps.Controller.Restore(ctx)
	if err != nil {
		logger.Warn("journal_restore_failed", zap.Error(err))
	}
	deps.Restored = restored
	return deps, nil
}

func (d *Deps) openRepository(ctx context.Context, cfg *config.AppConfig) (bridge.Repository, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		d.logger.Info("archive_in_memory")
		return bridge.NewMemoryRepository(), nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	d.DB = db

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := bridge.EnsureSchema(pctx, db); err != nil {
		return nil, err
	}
	return bridge.NewRepository(db), nil
}

// Close releases whatever New managed to open.
func (d *Deps) Close() error {
	var errs []error
	if d.Controller != nil {
		d.Controller.Close()
	}
	if d.Notifier != nil {
		errs = append(errs, notify.Close(d.Notifier))
	}
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}

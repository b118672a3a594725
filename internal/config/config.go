package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	StockfishPath  string `yaml:"stockfish_path"`
	EnginePoolSize int    `yaml:"engine_pool_size"`

	RedisURL   string        `yaml:"redis_url"`
	JournalKey string        `yaml:"journal_key"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	DatabaseURL string `yaml:"database_url"`

	NotifyMode    string        `yaml:"notify_mode"`
	NotifyURL     string        `yaml:"notify_url"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	NotifyRetry   int           `yaml:"notify_retry"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:     ":5000",
		EnginePoolSize: 1,
		JournalKey:     "bridge:session:current",
		SessionTTL:     24 * time.Hour,
		NotifyMode:     "log",
		NotifyTimeout:  5 * time.Second,
		NotifyRetry:    3,
	}
}

// Load applies defaults, then CONFIG_FILE when set, then the environment.
func Load() (*AppConfig, error) {
	return load(os.Getenv, os.ReadFile)
}

func load(getenv func(string) string, readFile func(string) ([]byte, error)) (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(getenv("CONFIG_FILE")); path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	env := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if v := env("PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := env("STOCKFISH_PATH"); v != "" {
		cfg.StockfishPath = v
	}
	if v := env("ENGINE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnginePoolSize = n
		}
	}
	if v := env("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := env("JOURNAL_KEY"); v != "" {
		cfg.JournalKey = v
	}
	if v := env("SESSION_TTL"); v != "" { // seconds or a duration such as 12h
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("NOTIFY_MODE"); v != "" {
		cfg.NotifyMode = strings.ToLower(v)
	}
	if v := env("NOTIFY_URL"); v != "" {
		cfg.NotifyURL = v
	}
	if v := env("NOTIFY_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NOTIFY_TIMEOUT: %w", err)
		}
		cfg.NotifyTimeout = d
	}
	if v := env("NOTIFY_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NotifyRetry = n
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	if c.EnginePoolSize <= 0 {
		return errors.New("ENGINE_POOL_SIZE must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	switch c.NotifyMode {
	case "log":
	case "http", "ws", "auto":
		if strings.TrimSpace(c.NotifyURL) == "" {
			return fmt.Errorf("NOTIFY_URL is required for notify mode %s", c.NotifyMode)
		}
	default:
		return fmt.Errorf("unknown NOTIFY_MODE %q", c.NotifyMode)
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive: %q", v)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive: %q", v)
	}
	return d, nil
}

package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func noFile(string) ([]byte, error) { return nil, os.ErrNotExist }

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envOf(nil), noFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":5000" || cfg.EnginePoolSize != 1 || cfg.NotifyMode != "log" || cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"LISTEN_ADDR":      " :8080 ",
		"STOCKFISH_PATH":   "/opt/sf",
		"ENGINE_POOL_SIZE": "2",
		"REDIS_URL":        "redis://localhost:6379/0",
		"SESSION_TTL":      "90",
		"NOTIFY_MODE":      "HTTP",
		"NOTIFY_URL":       "http://hooks.local/game",
		"NOTIFY_TIMEOUT":   "2s",
	}), noFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.StockfishPath != "/opt/sf" || cfg.EnginePoolSize != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SessionTTL != 90*time.Second || cfg.NotifyMode != "http" || cfg.NotifyTimeout != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadPortFallback(t *testing.T) {
	cfg, err := load(envOf(map[string]string{"PORT": "7000"}), noFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	file := []byte(`
listen_addr: ":6000"
stockfish_path: /usr/local/bin/stockfish
session_ttl: 2h
notify_mode: ws
notify_url: ws://listener.local/events
`)
	read := func(path string) ([]byte, error) {
		if path != "bridge.yaml" {
			return nil, errors.New("unexpected path " + path)
		}
		return file, nil
	}
	cfg, err := load(envOf(map[string]string{
		"CONFIG_FILE":    "bridge.yaml",
		"STOCKFISH_PATH": "/env/stockfish",
	}), read)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":6000" || cfg.SessionTTL != 2*time.Hour || cfg.NotifyMode != "ws" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.StockfishPath != "/env/stockfish" {
		t.Fatalf("env should override file, got %q", cfg.StockfishPath)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing file", map[string]string{"CONFIG_FILE": "nope.yaml"}, "read config file"},
		{"bad ttl", map[string]string{"SESSION_TTL": "soon"}, "SESSION_TTL"},
		{"zero ttl", map[string]string{"SESSION_TTL": "0"}, "SESSION_TTL"},
		{"notify without url", map[string]string{"NOTIFY_MODE": "auto"}, "NOTIFY_URL"},
		{"unknown mode", map[string]string{"NOTIFY_MODE": "pager"}, "NOTIFY_MODE"},
	}
	for _, tc := range cases {
		_, err := load(envOf(tc.env), noFile)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

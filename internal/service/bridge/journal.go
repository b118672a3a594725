package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultJournalKey = "bridge:session:current"
	defaultJournalTTL = 24 * time.Hour
)

// JournalRecord is the persisted form of the live session.
type JournalRecord struct {
	SessionUUID string    `json:"session_uuid"`
	EngineColor string    `json:"engine_color"`
	Moves       []string  `json:"moves"`
	Active      bool      `json:"active"`
	Generation  uint64    `json:"generation"`
	Snapshot    string    `json:"snapshot,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Journal interface {
	Save(ctx context.Context, rec *JournalRecord) error
	Load(ctx context.Context) (*JournalRecord, error)
}

// RedisJournal keeps the single live session under one key.
type RedisJournal struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisJournal(rdb *redis.Client, key string, ttl time.Duration) *RedisJournal {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultJournalKey
	}
	if ttl <= 0 {
		ttl = defaultJournalTTL
	}
	return &RedisJournal{rdb: rdb, key: key, ttl: ttl}
}

func (j *RedisJournal) Save(ctx context.Context, rec *JournalRecord) error {
	if rec == nil {
		return fmt.Errorf("nil journal record")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if err := j.rdb.Set(ctx, j.key, raw, j.ttl).Err(); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Load returns nil without error when nothing is journaled.
func (j *RedisJournal) Load(ctx context.Context) (*JournalRecord, error) {
	raw, err := j.rdb.Get(ctx, j.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var rec JournalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal journal record: %w", err)
	}
	return &rec, nil
}

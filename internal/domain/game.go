package domain

import "time"

// GameRecord is a finished game as stored in the archive.
type GameRecord struct {
	ID          int64
	SessionUUID string
	EngineColor string
	Result      string
	Method      string
	MovesUCI    []string
	MovesSAN    []string
	PGN         string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
}

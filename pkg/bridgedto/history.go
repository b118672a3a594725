package bridgedto

import "time"

type Game struct {
	ID          int64     `json:"id"`
	SessionUUID string    `json:"session_uuid"`
	EngineColor string    `json:"engine_color"`
	Result      string    `json:"result"`
	Method      string    `json:"method"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationMS  int64     `json:"duration_ms"`
}

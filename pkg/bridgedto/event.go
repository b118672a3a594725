package bridgedto

import "time"

// GameOverEvent is delivered a fixed delay after a checkmate.
type GameOverEvent struct {
	SessionUUID string    `json:"session_uuid"`
	Winner      string    `json:"winner"`
	Method      string    `json:"method"`
	EngineColor string    `json:"engine_color"`
	Moves       []string  `json:"moves"`
	FEN         string    `json:"fen"`
	EndedAt     time.Time `json:"ended_at"`
}

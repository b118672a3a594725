package bridgedto

import "time"

// Snapshot lists occupied squares per color in canonical order.
type Snapshot struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Status struct {
	SessionUUID  string    `json:"session_uuid"`
	EngineColor  string    `json:"engine_color"`
	Turn         string    `json:"turn"`
	Active       bool      `json:"active"`
	FEN          string    `json:"fen"`
	Moves        []string  `json:"moves"`
	LastSnapshot Snapshot  `json:"last_snapshot"`
	SensorDiff   Snapshot  `json:"sensor_mismatch"`
	Generation   uint64    `json:"generation"`
	StartedAt    time.Time `json:"started_at"`
}

package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-bridge/internal/domain"
	"github.com/park285/chess-bridge/internal/game"
)

const methodCheckmate = "checkmate"

// buildRecord captures a checkmated session. The side that just moved won.
func buildRecord(s *game.Session, endedAt time.Time) *domain.GameRecord {
	winner := s.Turn().Other()
	rec := &domain.GameRecord{
		SessionUUID: s.UUID,
		EngineColor: s.Color.String(),
		Result:      winner.String(),
		Method:      methodCheckmate,
		MovesUCI:    append([]string(nil), s.Moves...),
		StartedAt:   s.StartedAt,
		EndedAt:     endedAt,
	}
	if n, ok := s.Rules().(game.Notated); ok {
		rec.MovesSAN = n.SAN()
	}
	if d := endedAt.Sub(s.StartedAt); d > 0 {
		rec.Duration = d
	}
	rec.PGN = buildPGN(rec)
	return rec
}

func pgnResult(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(rec *domain.GameRecord) string {
	if rec == nil {
		return ""
	}
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	white, black := "Board", "Engine"
	if rec.EngineColor == game.White.String() {
		white, black = "Engine", "Board"
	}
	result := pgnResult(rec.Result)

	var b strings.Builder
	b.WriteString("[Event \"Chess Bridge\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", white))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", black))
	if rec.Method != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(rec.Method)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	moves := rec.MovesSAN
	if len(moves) == 0 {
		moves = rec.MovesUCI
	}
	for i := 0; i < len(moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(moves[i])))
		if i+1 < len(moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/occupancy"
)

// Session is the single live game. It is not safe for concurrent use; the
// controller serializes access.
type Session struct {
	UUID      string
	Color     Color
	Active    bool
	Moves     []string
	Last      occupancy.Snapshot
	StartedAt time.Time

	rules Rules
}

func NewSession(rules Rules) *Session {
	if rules == nil {
		rules = NewChessRules()
	}
	return &Session{rules: rules}
}

func (s *Session) Rules() Rules { return s.rules }

// Reset starts a fresh game with the automated side playing color.
func (s *Session) Reset(id string, color Color, now time.Time) {
	s.rules.Reset()
	s.UUID = id
	s.Color = color
	s.Active = true
	s.Moves = nil
	s.StartedAt = now
	s.Last = s.rules.Occupancy()
}

// Snapshot is the occupancy implied by the authoritative position.
func (s *Session) Snapshot() occupancy.Snapshot { return s.rules.Occupancy() }

func (s *Session) FEN() string { return s.rules.FEN() }

func (s *Session) Turn() Color { return s.rules.Turn() }

// EngineToMove reports whether the automated side is on move.
func (s *Session) EngineToMove() bool { return s.Active && s.rules.Turn() == s.Color }

func (s *Session) Legal(mv board.Move) bool { return s.rules.Legal(mv) }

// Apply plays mv and refreshes the stored snapshot.
func (s *Session) Apply(mv board.Move) error {
	if err := s.rules.Apply(mv); err != nil {
		return err
	}
	s.Moves = append(s.Moves, mv.String())
	s.Last = s.rules.Occupancy()
	return nil
}

func (s *Session) Checkmated() bool { return s.rules.IsCheckmate() }

// Replay rebuilds the position from a recorded move list.
func (s *Session) Replay(moves []string) error {
	s.rules.Reset()
	s.Moves = nil
	for _, raw := range moves {
		mv, err := board.ParseMove(normalize(raw))
		if err != nil {
			return fmt.Errorf("replay move %q: %w", raw, err)
		}
		if err := s.Apply(mv); err != nil {
			return fmt.Errorf("replay move %q: %w", raw, err)
		}
	}
	s.Last = s.rules.Occupancy()
	return nil
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

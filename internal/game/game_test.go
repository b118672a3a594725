package game

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/occupancy"
)

func mustMove(t *testing.T, s string) board.Move {
	t.Helper()
	mv, err := board.ParseMove(s)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", s, err)
	}
	return mv
}

func TestParseColor(t *testing.T) {
	if c, ok := ParseColor("  White "); !ok || c != White {
		t.Fatalf("white = %v %v", c, ok)
	}
	if c, ok := ParseColor("BLACK"); !ok || c != Black {
		t.Fatalf("black = %v %v", c, ok)
	}
	if _, ok := ParseColor("red"); ok {
		t.Fatalf("red accepted")
	}
}

func TestChessRulesStartingOccupancy(t *testing.T) {
	r := NewChessRules()
	snap := r.Occupancy()
	want, err := occupancy.Parse("white:a1,b1,c1,d1,e1,f1,g1,h1,a2,b2,c2,d2,e2,f2,g2,h2;" +
		"black:a7,b7,c7,d7,e7,f7,g7,h7,a8,b8,c8,d8,e8,f8,g8,h8")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !snap.Equal(want) {
		t.Fatalf("start occupancy = %s", snap)
	}
	if r.Turn() != White {
		t.Fatalf("turn = %v", r.Turn())
	}
}

func TestChessRulesApply(t *testing.T) {
	r := NewChessRules()
	if err := r.Apply(mustMove(t, "e2e5")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("e2e5 err = %v", err)
	}
	if err := r.Apply(mustMove(t, "e2e4")); err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if r.Turn() != Black {
		t.Fatalf("turn after e2e4 = %v", r.Turn())
	}
	if !strings.Contains(r.FEN(), "4P3") {
		t.Fatalf("FEN = %s", r.FEN())
	}
	if got := r.SAN(); len(got) != 1 || got[0] != "e4" {
		t.Fatalf("SAN = %v", got)
	}
}

func TestChessRulesCastlingAndCheckmate(t *testing.T) {
	s := NewSession(nil)
	s.Reset("g1", Black, time.Now())
	for _, mv := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6"} {
		if err := s.Apply(mustMove(t, mv)); err != nil {
			t.Fatalf("%s: %v", mv, err)
		}
	}
	if !s.Legal(mustMove(t, "e1g1")) {
		t.Fatalf("short castle should be legal")
	}
	if err := s.Apply(mustMove(t, "e1g1")); err != nil {
		t.Fatalf("e1g1: %v", err)
	}
	if !s.Last.White.Has(sqOf(t, "g1")) || !s.Last.White.Has(sqOf(t, "f1")) {
		t.Fatalf("snapshot after castle = %s", s.Last)
	}

	mate := NewSession(nil)
	mate.Reset("g2", White, time.Now())
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if err := mate.Apply(mustMove(t, mv)); err != nil {
			t.Fatalf("%s: %v", mv, err)
		}
	}
	if !mate.Checkmated() {
		t.Fatalf("fool's mate not detected")
	}
}

func TestSessionReplay(t *testing.T) {
	s := NewSession(nil)
	s.Reset("r1", White, time.Now())
	if err := s.Replay([]string{"e2e4", " E7E5 "}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(s.Moves) != 2 || s.Moves[1] != "e7e5" {
		t.Fatalf("moves = %v", s.Moves)
	}
	if !s.Last.Equal(s.Snapshot()) {
		t.Fatalf("last snapshot not refreshed")
	}
	if err := s.Replay([]string{"e2e4", "e2e4"}); err == nil {
		t.Fatalf("illegal replay accepted")
	}
}

func TestSessionEngineToMove(t *testing.T) {
	s := NewSession(nil)
	s.Reset("t1", Black, time.Now())
	if s.EngineToMove() {
		t.Fatalf("engine plays black, white to move")
	}
	_ = s.Apply(mustMove(t, "d2d4"))
	if !s.EngineToMove() {
		t.Fatalf("engine should be on move")
	}
	s.Active = false
	if s.EngineToMove() {
		t.Fatalf("inactive session never asks the engine")
	}
}

type stubRules struct {
	legal map[string]bool
}

func (r *stubRules) Reset()                        {}
func (r *stubRules) FEN() string                   { return "" }
func (r *stubRules) Turn() Color                   { return White }
func (r *stubRules) Legal(mv board.Move) bool      { return r.legal[mv.String()] }
func (r *stubRules) Apply(board.Move) error        { return nil }
func (r *stubRules) IsCheckmate() bool             { return false }
func (r *stubRules) Occupancy() occupancy.Snapshot { return occupancy.Snapshot{} }

func TestSessionLegalNeedsPromotionPiece(t *testing.T) {
	s := NewSession(&stubRules{legal: map[string]bool{"e7e8q": true, "e7e8n": true, "a2a3": true}})

	if s.Legal(mustMove(t, "e7e8")) {
		t.Fatalf("bare promotion accepted")
	}
	for _, in := range []string{"e7e8q", "e7e8n", "a2a3"} {
		if !s.Legal(mustMove(t, in)) {
			t.Fatalf("Legal(%s) = false", in)
		}
	}
	if s.Legal(mustMove(t, "h2h5")) {
		t.Fatalf("illegal move accepted")
	}
}

func sqOf(t *testing.T, s string) board.Square {
	t.Helper()
	sq, ok := board.ParseSquare(s)
	if !ok {
		t.Fatalf("bad square %q", s)
	}
	return sq
}

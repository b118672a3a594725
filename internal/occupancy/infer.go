package occupancy

import (
	"errors"

	"github.com/park285/chess-bridge/internal/board"
)

var ErrRejected = errors.New("snapshot delta rejected")

// Delta is the per-color difference between a new snapshot and the current one.
type Delta struct {
	WhiteAdded   board.SquareSet
	WhiteRemoved board.SquareSet
	BlackAdded   board.SquareSet
	BlackRemoved board.SquareSet
}

func (d Delta) Added() int   { return d.WhiteAdded.Len() + d.BlackAdded.Len() }
func (d Delta) Removed() int { return d.WhiteRemoved.Len() + d.BlackRemoved.Len() }

func Diff(next, current Snapshot) Delta {
	return Delta{
		WhiteAdded:   next.White.Minus(current.White),
		WhiteRemoved: current.White.Minus(next.White),
		BlackAdded:   next.Black.Minus(current.Black),
		BlackRemoved: current.Black.Minus(next.Black),
	}
}

// Drastic reports deltas too large or too ambiguous to be one ply.
func Drastic(next, current Snapshot) bool {
	d := Diff(next, current)
	if d.Removed() == 1 && d.Added() == 2 {
		return true
	}
	diff := next.Count() - current.Count()
	if diff < 0 {
		diff = -diff
	}
	return diff > 2
}

type castlePattern struct {
	removed board.SquareSet
	added   board.SquareSet
	move    string
}

var (
	whiteCastles = []castlePattern{
		castle("e1", "h1", "g1", "f1", "e1g1"),
		castle("e1", "a1", "c1", "d1", "e1c1"),
	}
	blackCastles = []castlePattern{
		castle("e8", "h8", "g8", "f8", "e8g8"),
		castle("e8", "a8", "c8", "d8", "e8c8"),
	}
)

func castle(king, rook, kingTo, rookTo, uci string) castlePattern {
	sq := func(s string) board.Square {
		v, _ := board.ParseSquare(s)
		return v
	}
	return castlePattern{
		removed: board.SetOf(sq(king), sq(rook)),
		added:   board.SetOf(sq(kingTo), sq(rookTo)),
		move:    uci,
	}
}

// Infer reconstructs the move that turns current into next. Castling is
// tried first, then a quiet move, then a capture; white before black.
func Infer(next, current Snapshot) (board.Move, error) {
	if Drastic(next, current) {
		return board.Move{}, ErrRejected
	}
	d := Diff(next, current)

	for _, p := range whiteCastles {
		if d.WhiteRemoved == p.removed && d.WhiteAdded == p.added {
			return board.ParseMove(p.move)
		}
	}
	for _, p := range blackCastles {
		if d.BlackRemoved == p.removed && d.BlackAdded == p.added {
			return board.ParseMove(p.move)
		}
	}

	if mv, ok := quiet(d.WhiteRemoved, d.WhiteAdded, d.BlackRemoved, d.BlackAdded); ok {
		return mv, nil
	}
	if mv, ok := quiet(d.BlackRemoved, d.BlackAdded, d.WhiteRemoved, d.WhiteAdded); ok {
		return mv, nil
	}
	if mv, ok := capture(d.WhiteRemoved, d.WhiteAdded, d.BlackRemoved, d.BlackAdded); ok {
		return mv, nil
	}
	if mv, ok := capture(d.BlackRemoved, d.BlackAdded, d.WhiteRemoved, d.WhiteAdded); ok {
		return mv, nil
	}
	return board.Move{}, ErrRejected
}

func quiet(removed, added, otherRemoved, otherAdded board.SquareSet) (board.Move, bool) {
	if !otherRemoved.Empty() || !otherAdded.Empty() {
		return board.Move{}, false
	}
	from, ok1 := removed.Only()
	to, ok2 := added.Only()
	if !ok1 || !ok2 {
		return board.Move{}, false
	}
	return board.Move{From: from, To: to}, true
}

func capture(removed, added, otherRemoved, otherAdded board.SquareSet) (board.Move, bool) {
	if !otherAdded.Empty() {
		return board.Move{}, false
	}
	from, ok1 := removed.Only()
	to, ok2 := added.Only()
	taken, ok3 := otherRemoved.Only()
	if !ok1 || !ok2 || !ok3 || to != taken {
		return board.Move{}, false
	}
	return board.Move{From: from, To: to}, true
}

// Package game holds the authoritative game state behind the bridge.
package game

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/occupancy"
)

var ErrIllegalMove = errors.New("illegal move")

type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Other() Color { return 1 - c }

// ParseColor accepts "white" or "black" in any case with surrounding space.
func ParseColor(raw string) (Color, bool) {
	switch normalize(raw) {
	case "white":
		return White, true
	case "black":
		return Black, true
	}
	return White, false
}

// Rules is the chess rules capability the session depends on.
type Rules interface {
	Reset()
	FEN() string
	Turn() Color
	Legal(mv board.Move) bool
	Apply(mv board.Move) error
	IsCheckmate() bool
	Occupancy() occupancy.Snapshot
}

// Notated is implemented by rules that can render the move list in SAN.
type Notated interface {
	SAN() []string
}

// ChessRules implements Rules on a corentings game.
type ChessRules struct {
	game *nchess.Game
}

func NewChessRules() *ChessRules {
	return &ChessRules{game: nchess.NewGame()}
}

func (r *ChessRules) Reset() { r.game = nchess.NewGame() }

func (r *ChessRules) FEN() string { return r.game.FEN() }

func (r *ChessRules) Turn() Color {
	if r.game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

func (r *ChessRules) Legal(mv board.Move) bool {
	from, to := toSquare(mv.From), toSquare(mv.To)
	promo := toPromo(mv.Promo)
	for _, valid := range r.game.Position().ValidMoves() {
		if valid.S1() == from && valid.S2() == to && valid.Promo() == promo {
			return true
		}
	}
	return false
}

func (r *ChessRules) Apply(mv board.Move) error {
	if !r.Legal(mv) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	if err := r.game.PushNotationMove(mv.String(), nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	return nil
}

func (r *ChessRules) IsCheckmate() bool {
	return r.game.Method() == nchess.Checkmate
}

func (r *ChessRules) Occupancy() occupancy.Snapshot {
	var snap occupancy.Snapshot
	b := r.game.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := b.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			sq := board.NewSquare(int(file), int(rank))
			if piece.Color() == nchess.White {
				snap.White = snap.White.Add(sq)
			} else {
				snap.Black = snap.Black.Add(sq)
			}
		}
	}
	return snap
}

func (r *ChessRules) SAN() []string {
	moves := r.game.Moves()
	positions := r.game.Positions()
	out := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, notation.Encode(positions[i], mv))
	}
	return out
}

func toSquare(sq board.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File()), nchess.Rank(sq.Rank()))
}

func toPromo(letter byte) nchess.PieceType {
	switch letter {
	case 'q':
		return nchess.Queen
	case 'r':
		return nchess.Rook
	case 'b':
		return nchess.Bishop
	case 'n':
		return nchess.Knight
	}
	return nchess.NoPieceType
}

package board

import (
	"math/bits"
	"strings"
)

// Square indexes the 64 board coordinates file-major (a1=0, a2=1, ... h8=63),
// so ascending index order equals lexical order of the coordinate text.
type Square uint8

const NoSquare Square = 64

const (
	files = "abcdefgh"
	ranks = "12345678"
)

func NewSquare(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(file*8 + rank)
}

// ParseSquare accepts exactly two characters, file then rank.
func ParseSquare(s string) (Square, bool) {
	if len(s) != 2 {
		return NoSquare, false
	}
	f := strings.IndexByte(files, s[0])
	r := strings.IndexByte(ranks, s[1])
	if f < 0 || r < 0 {
		return NoSquare, false
	}
	return NewSquare(f, r), true
}

func (sq Square) File() int { return int(sq) / 8 }
func (sq Square) Rank() int { return int(sq) % 8 }

func (sq Square) Valid() bool { return sq < NoSquare }

func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string([]byte{files[sq.File()], ranks[sq.Rank()]})
}

// SquareSet is a bitboard over Square indexes.
type SquareSet uint64

func SetOf(squares ...Square) SquareSet {
	var s SquareSet
	for _, sq := range squares {
		s = s.Add(sq)
	}
	return s
}

func (s SquareSet) Add(sq Square) SquareSet {
	if !sq.Valid() {
		return s
	}
	return s | 1<<sq
}

func (s SquareSet) Has(sq Square) bool {
	return sq.Valid() && s&(1<<sq) != 0
}

func (s SquareSet) Minus(o SquareSet) SquareSet { return s &^ o }
func (s SquareSet) Union(o SquareSet) SquareSet { return s | o }
func (s SquareSet) Len() int                    { return bits.OnesCount64(uint64(s)) }
func (s SquareSet) Empty() bool                 { return s == 0 }

// Squares lists members in canonical order.
func (s SquareSet) Squares() []Square {
	out := make([]Square, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, Square(bits.TrailingZeros64(v)))
	}
	return out
}

// Only returns the single member of a one-element set.
func (s SquareSet) Only() (Square, bool) {
	if s.Len() != 1 {
		return NoSquare, false
	}
	return Square(bits.TrailingZeros64(uint64(s))), true
}

func (s SquareSet) Strings() []string {
	sqs := s.Squares()
	out := make([]string, len(sqs))
	for i, sq := range sqs {
		out[i] = sq.String()
	}
	return out
}

func (s SquareSet) String() string {
	return strings.Join(s.Strings(), ",")
}

package board

import (
	"errors"
	"strings"
)

var ErrNotCoordinate = errors.New("not a coordinate move")

// Promotion letters accepted in coordinate notation.
const promotionLetters = "qrbn"

// Move is a coordinate-notation move. Promo is 0 when absent.
type Move struct {
	From  Square
	To    Square
	Promo byte
}

// IsCoordinateMove reports whether text has the e2e4 / e7e8q shape.
// Input is expected to be trimmed and lower-cased already.
func IsCoordinateMove(text string) bool {
	_, err := ParseMove(text)
	return err == nil
}

func ParseMove(text string) (Move, error) {
	if len(text) != 4 && len(text) != 5 {
		return Move{}, ErrNotCoordinate
	}
	from, ok := ParseSquare(text[0:2])
	if !ok {
		return Move{}, ErrNotCoordinate
	}
	to, ok := ParseSquare(text[2:4])
	if !ok {
		return Move{}, ErrNotCoordinate
	}
	mv := Move{From: from, To: to}
	if len(text) == 5 {
		if strings.IndexByte(promotionLetters, text[4]) < 0 {
			return Move{}, ErrNotCoordinate
		}
		mv.Promo = text[4]
	}
	return mv, nil
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promo != 0 {
		s += string(m.Promo)
	}
	return s
}

// Package occupancy parses sensor board snapshots and reconstructs the move
// that turned one snapshot into another.
package occupancy

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/park285/chess-bridge/internal/board"
)

const maxSnapshotBytes = 4096

var ErrParseFailure = errors.New("snapshot parse failure")

// Snapshot lists the occupied squares per color, without piece identity.
type Snapshot struct {
	White board.SquareSet
	Black board.SquareSet
}

func (s Snapshot) Empty() bool { return s.White.Empty() && s.Black.Empty() }

func (s Snapshot) Count() int { return s.White.Len() + s.Black.Len() }

func (s Snapshot) Equal(o Snapshot) bool { return s.White == o.White && s.Black == o.Black }

// String renders the snapshot in the same form Parse accepts.
func (s Snapshot) String() string {
	return "white:" + s.White.String() + ";black:" + s.Black.String()
}

// Parse reads text such as "white:e1,e2;black:e8" or the same tokens separated
// by whitespace. A later token for a color replaces an earlier one. Unknown
// tokens and invalid squares are dropped.
func Parse(text string) (Snapshot, error) {
	if len(text) > maxSnapshotBytes {
		return Snapshot{}, ErrParseFailure
	}
	if !utf8.ValidString(text) {
		return Snapshot{}, ErrParseFailure
	}
	text = strings.ToLower(strings.TrimSpace(text))

	var parts []string
	if strings.Contains(text, ";") {
		parts = strings.Split(text, ";")
	} else {
		parts = strings.Fields(text)
	}

	var snap Snapshot
	for _, part := range parts {
		part = strings.TrimSpace(part)
		var target *board.SquareSet
		var body string
		switch {
		case strings.HasPrefix(part, "white:"):
			target, body = &snap.White, part[len("white:"):]
		case strings.HasPrefix(part, "black:"):
			target, body = &snap.Black, part[len("black:"):]
		default:
			continue
		}
		if strings.Contains(body, ":") {
			return Snapshot{}, ErrParseFailure
		}
		*target = parseSquares(body)
	}
	return snap, nil
}

func parseSquares(body string) board.SquareSet {
	var set board.SquareSet
	for _, raw := range strings.Split(body, ",") {
		if sq, ok := board.ParseSquare(strings.TrimSpace(raw)); ok {
			set = set.Add(sq)
		}
	}
	return set
}

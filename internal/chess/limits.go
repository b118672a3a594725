package chess

import (
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-bridge/internal/chess/uci"
)

// Search configuration. These are fixed: the bridge always plays at full
// strength.
const (
	SearchDepth       = 20
	SearchThreads     = 4
	SearchHashMB      = 2048
	SearchSkillLevel  = 20
	SearchMoveTime    = 2000 * time.Millisecond
	searchReplyBuffer = 3 * time.Second
)

func SearchOptions() uci.Options {
	return uci.Options{
		Threads:       SearchThreads,
		HashMB:        SearchHashMB,
		SkillLevel:    SearchSkillLevel,
		LimitStrength: false,
	}
}

func SearchLimits() uci.Limits {
	return uci.Limits{
		Depth:          SearchDepth,
		MoveTimeMillis: int(SearchMoveTime / time.Millisecond),
	}
}

// SearchTimeout bounds one BestMove call including pool acquisition.
func SearchTimeout() time.Duration {
	return SearchMoveTime + searchReplyBuffer
}

// GoCommand renders the go line sent for every search.
func GoCommand() string {
	l := SearchLimits()
	return strings.Join([]string{
		"go",
		"depth", strconv.Itoa(l.Depth),
		"movetime", strconv.Itoa(l.MoveTimeMillis),
	}, " ")
}

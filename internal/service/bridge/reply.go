package bridge

// Kind selects the wire text of a reply.
type Kind int

const (
	KindEmpty Kind = iota
	KindMove
	KindInvalid
	KindGameOver
)

// Reason records which branch produced a reply. It never reaches the wire.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFastPath
	ReasonMoveInferred
	ReasonOpening
	ReasonAwaitingOpponent
	ReasonCheckmate
	ReasonEngineUnavailable
	ReasonParseFailure
	ReasonNoInformation
	ReasonNoChange
	ReasonRejected
	ReasonIllegal
	ReasonInvalidColor
	ReasonInactive
)

var reasonNames = map[Reason]string{
	ReasonNone:              "none",
	ReasonFastPath:          "fast_path",
	ReasonMoveInferred:      "move_inferred",
	ReasonOpening:           "opening",
	ReasonAwaitingOpponent:  "awaiting_opponent",
	ReasonCheckmate:         "checkmate",
	ReasonEngineUnavailable: "engine_unavailable",
	ReasonParseFailure:      "parse_failure",
	ReasonNoInformation:     "no_information",
	ReasonNoChange:          "no_change",
	ReasonRejected:          "rejected",
	ReasonIllegal:           "illegal",
	ReasonInvalidColor:      "invalid_color",
	ReasonInactive:          "inactive",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Reply is the outcome of Start or Submit.
type Reply struct {
	Kind   Kind
	Reason Reason
	// Move is the engine's reply in coordinate notation when Kind is KindMove.
	Move string
	// Applied is the external move that was played, if any.
	Applied string
}

// Text renders the reply as the plain-text wire response.
func (r Reply) Text() string {
	switch r.Kind {
	case KindMove:
		return r.Move
	case KindInvalid:
		return "Invalid"
	case KindGameOver:
		return "Game Over"
	default:
		return ""
	}
}

func empty(reason Reason) Reply   { return Reply{Kind: KindEmpty, Reason: reason} }
func invalid(reason Reason) Reply { return Reply{Kind: KindInvalid, Reason: reason} }

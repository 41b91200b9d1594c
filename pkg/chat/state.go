package chat

import "fmt"

// TurnState is the position of a session within its current turn.
type TurnState int

const (
	Idle TurnState = iota
	AwaitingFirstReply
	ExtractingDirective
	AwaitingDispatch
	AwaitingFormattedReply
)

func (s TurnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstReply:
		return "awaiting_first_reply"
	case ExtractingDirective:
		return "extracting_directive"
	case AwaitingDispatch:
		return "awaiting_dispatch"
	case AwaitingFormattedReply:
		return "awaiting_formatted_reply"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s TurnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *TurnState) UnmarshalText(text []byte) error {
	for candidate := Idle; candidate <= AwaitingFormattedReply; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown turn state %q", text)
}

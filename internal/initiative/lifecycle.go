package initiative

import (
	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
)

// State is where a campaign's combat stands.
type State string

const (
	StateNone   State = "none"
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Event drives a State transition.
type Event string

const (
	EventStart  Event = "start"
	EventEnd    Event = "end"
	EventMutate Event = "mutate"
)

// transitions lists the allowed moves. Starting from ended creates a new
// session; the ended one is never reopened.
var transitions = map[State]map[Event]State{
	StateNone: {
		EventStart: StateActive,
	},
	StateActive: {
		EventEnd:    StateEnded,
		EventMutate: StateActive,
	},
	StateEnded: {
		EventStart: StateActive,
	},
}

// StateOf reports the state represented by a stored session. A nil session
// means the campaign has no session.
func StateOf(session *models.InitiativeSession) State {
	switch {
	case session == nil:
		return StateNone
	case session.IsActive:
		return StateActive
	default:
		return StateEnded
	}
}

// Transition returns the state after ev, or the coded state error that
// tells the caller why ev is not allowed now.
func Transition(from State, ev Event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}

	switch {
	case from == StateActive && ev == EventStart:
		return from, apperrors.New(apperrors.ErrSessionAlreadyActive, "Initiative session is already active.")
	case from == StateEnded && ev == EventMutate:
		return from, apperrors.New(apperrors.ErrSessionNotActive, "Initiative session not found or not active.")
	default:
		return from, apperrors.New(apperrors.ErrNoActiveSession, "No active initiative session.")
	}
}

package loop

import (
	"time"

	"github.com/google/uuid"

	"github.com/KainAber/md2do/internal/gateway"
)

// State is a dispatch loop state.
type State int

const (
	StateAwaitingInput State = iota
	StateModelCall
	StateFunctionPending
	StateFunctionCall
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateModelCall:
		return "model_call"
	case StateFunctionPending:
		return "function_pending"
	case StateFunctionCall:
		return "function_call"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// Session is the conversation state of one interactive run. It is created at
// session start and only grows: a command's turns are appended once the
// command resolves successfully.
type Session struct {
	ID       string
	Started  time.Time
	State    State
	Commands int

	// history holds user, assistant and function turns. The system turn is
	// rebuilt before every model call and never stored.
	history []gateway.Message
}

// NewSession starts a session with a fresh random id.
func NewSession() *Session {
	return &Session{
		ID:      uuid.NewString(),
		Started: time.Now().UTC(),
		State:   StateAwaitingInput,
	}
}

// History returns a copy of the stored turns.
func (s *Session) History() []gateway.Message {
	return append([]gateway.Message(nil), s.history...)
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	return len(s.history)
}

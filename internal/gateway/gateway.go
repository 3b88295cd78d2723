// Package gateway talks to the chat model that turns commands into
// function calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

var (
	ErrRateLimited       = errors.New("model rate limited")
	ErrUpstream          = errors.New("model upstream failure")
	ErrRequest           = errors.New("model request rejected")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrMissingAPIKey     = errors.New("missing API key")
)

// FunctionCall is a structured invocation requested by the model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one conversation turn. Name is set on function turns.
type Message struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// IsCall reports whether the message requests a function call.
func (m Message) IsCall() bool {
	return m.FunctionCall != nil
}

// Function declares a callable function to the model.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Gateway returns the model's next turn: either a function call or a final
// message.
type Gateway interface {
	Complete(ctx context.Context, messages []Message, functions []Function) (Message, error)
}

package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Step is one scripted reply.
type Step struct {
	Reply Message
	Err   error
}

// Reply is a final assistant message step.
func Reply(content string) Step {
	return Step{Reply: Message{Role: RoleAssistant, Content: content}}
}

// Call is a function call step.
func Call(name, arguments string) Step {
	return Step{Reply: Message{Role: RoleAssistant, FunctionCall: &FunctionCall{Name: name, Arguments: arguments}}}
}

// Fail is an error step.
func Fail(err error) Step {
	return Step{Err: err}
}

// Scripted replays a fixed sequence of steps and records every request.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests [][]Message
}

// NewScripted returns a gateway that replays steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Complete returns the next step. Running out of steps is an error.
func (s *Scripted) Complete(ctx context.Context, messages []Message, _ []Function) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]Message(nil), messages...))
	if len(s.steps) == 0 {
		return Message{}, fmt.Errorf("%w: script exhausted", ErrUpstream)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return Message{}, step.Err
	}
	return step.Reply, nil
}

// Requests returns copies of the conversations sent so far.
func (s *Scripted) Requests() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Message(nil), s.requests...)
}

// Remaining returns the number of unused steps.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

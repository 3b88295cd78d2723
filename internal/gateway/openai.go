package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"
)

// Options configures the OpenAI client.
type Options struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// DefaultOptions returns deterministic generation settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0,
		TopP:        1,
		MaxTokens:   512,
		Timeout:     60 * time.Second,
		MaxRetries:  2,
	}
}

func (o *Options) defaults() {
	d := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.Model == "" {
		o.Model = d.Model
	}
	if o.TopP <= 0 {
		o.TopP = d.TopP
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
}

// OpenAI calls the chat completions endpoint with legacy function calling.
type OpenAI struct {
	url    string
	opts   Options
	do     func(*http.Request) (*http.Response, error)
	policy func() backoff.BackOff
}

// NewOpenAI builds a client from opts.
func NewOpenAI(opts Options) (*OpenAI, error) {
	opts.defaults()
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	hc := &http.Client{Timeout: opts.Timeout}
	return &OpenAI{
		url:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		opts:   opts,
		do:     hc.Do,
		policy: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}, nil
}

// Model returns the configured model name.
func (c *OpenAI) Model() string {
	return c.opts.Model
}

type wireMessage struct {
	Role         string        `json:"role"`
	Content      *string       `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

type wireRequest struct {
	Model        string        `json:"model"`
	Messages     []wireMessage `json:"messages"`
	Functions    []Function    `json:"functions,omitempty"`
	FunctionCall string        `json:"function_call,omitempty"`
	Temperature  float64       `json:"temperature"`
	TopP         float64       `json:"top_p"`
	MaxTokens    int           `json:"max_tokens"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Role         string        `json:"role"`
			Content      *string       `json:"content"`
			FunctionCall *FunctionCall `json:"function_call"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAI) encode(messages []Message, functions []Function) ([]byte, error) {
	req := wireRequest{
		Model:       c.opts.Model,
		Messages:    make([]wireMessage, 0, len(messages)),
		Functions:   functions,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		MaxTokens:   c.opts.MaxTokens,
	}
	if len(functions) > 0 {
		req.FunctionCall = "auto"
	}
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, Name: m.Name, FunctionCall: m.FunctionCall}
		if m.FunctionCall == nil || m.Content != "" {
			content := m.Content
			wm.Content = &content
		}
		req.Messages = append(req.Messages, wm)
	}
	return json.Marshal(&req)
}

// Complete sends the conversation and returns the model's reply. Rate limits
// and upstream failures are retried with exponential backoff.
func (c *OpenAI) Complete(ctx context.Context, messages []Message, functions []Function) (Message, error) {
	body, err := c.encode(messages, functions)
	if err != nil {
		return Message{}, fmt.Errorf("encode request: %w", err)
	}

	logger := log.FromContext(ctx)
	var reply Message
	op := func() error {
		msg, err := c.once(ctx, body)
		if err != nil {
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstream) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = msg
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.policy(), uint64(c.opts.MaxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		logger.Debug("model call retry", "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, err
	}
	return reply, nil
}

func (c *OpenAI) once(ctx context.Context, body []byte) (Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
		}
		return Message{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Message{}, ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(slurp))
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5 {
			return Message{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
		}
		return Message{}, fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode, msg)
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return Message{}, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	if len(wr.Choices) == 0 {
		return Message{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	m := wr.Choices[0].Message
	out := Message{Role: RoleAssistant}
	if m.Content != nil {
		out.Content = *m.Content
	}
	if m.FunctionCall != nil {
		if strings.TrimSpace(m.FunctionCall.Name) == "" {
			return Message{}, fmt.Errorf("%w: function call without name", ErrMalformedResponse)
		}
		out.FunctionCall = m.FunctionCall
		return out, nil
	}
	if strings.TrimSpace(out.Content) == "" {
		return Message{}, fmt.Errorf("%w: empty message", ErrMalformedResponse)
	}
	return out, nil
}

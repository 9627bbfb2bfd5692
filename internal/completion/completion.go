package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"parley/internal/chat"
)

// Result is a generated assistant reply.
type Result struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Tokens   int    `json:"tokens"`
}

// Client generates an assistant reply from conversation history.
// Implementations return errors rather than panicking; callers substitute
// the fallback on failure.
type Client interface {
	Generate(ctx context.Context, history []chat.Message) (Result, error)
}

// ErrGeneration signals the provider call failed.
var ErrGeneration = errors.New("completion generation failed")

// FallbackContent is the deterministic substitute reply used when the
// provider is unavailable.
const FallbackContent = "I'm having trouble generating a response right now. Please try again in a moment."

// Fallback returns the deterministic substitute result.
func Fallback() Result {
	return Result{
		Content:  FallbackContent,
		Provider: "fallback",
		Tokens:   0,
	}
}

// HTTPClient calls a completion provider over HTTP.
type HTTPClient struct {
	url    string
	model  string
	client *http.Client
}

// NewHTTPClient constructs a client posting to the given provider URL.
func NewHTTPClient(url, model string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{url: url, model: model, client: client}
}

type generateRequest struct {
	Model    string            `json:"model,omitempty"`
	Messages []generateMessage `json:"messages"`
}

type generateMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate posts the history to the provider and decodes the reply.
func (c *HTTPClient) Generate(ctx context.Context, history []chat.Message) (Result, error) {
	payload := generateRequest{Model: c.model}
	for _, msg := range history {
		payload.Messages = append(payload.Messages, generateMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode request: %v", ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: provider returned %d", ErrGeneration, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	if result.Content == "" {
		return Result{}, fmt.Errorf("%w: empty content", ErrGeneration)
	}
	return result, nil
}

// NewStaticClient constructs a client that always returns the given result.
func NewStaticClient(result Result, err error) *StaticClient {
	return &StaticClient{result: result, err: err}
}

// StaticClient returns a fixed result (dev and testing).
type StaticClient struct {
	result Result
	err    error
}

func (c *StaticClient) Generate(ctx context.Context, _ []chat.Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return c.result, c.err
}

// Package llm defines the chat completion contract used by the order bot.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider answers a chat transcript with one assistant message.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// Config holds the sampling and transport settings shared by providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// APIError is returned when the backend answers with a non-200 status.
// Message is taken from the backend's error envelope when it has one,
// otherwise it holds the raw body.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Message)
}

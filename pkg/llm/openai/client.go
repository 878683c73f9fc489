// Package openai talks to OpenAI-compatible chat completion endpoints.
package openai

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

	"github.com/user/orderbot/pkg/llm"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client implements llm.Provider.
type Client struct {
	cfg        llm.Config
	endpoint   string
	httpClient *http.Client
}

// New creates a client. A zero Timeout uses one minute.
func New(cfg *llm.Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        *cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete posts the transcript and returns the first choice.
// Temperature is always sent so that 0 keeps replies deterministic.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   max(c.cfg.MaxTokens, 0),
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("completion has no choices")
	}

	first := parsed.Choices[0]
	return &llm.Response{
		Content:      first.Message.Content,
		Truncated:    first.FinishReason == "length",
		PromptTokens: parsed.Usage.PromptTokens,
		ReplyTokens:  parsed.Usage.CompletionTokens,
	}, nil
}

func apiError(status int, raw []byte) *llm.APIError {
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		return &llm.APIError{StatusCode: status, Type: env.Error.Type, Message: env.Error.Message}
	}
	return &llm.APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
}

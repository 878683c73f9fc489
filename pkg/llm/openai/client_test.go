package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/orderbot/pkg/llm"
)

func TestOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "test response",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := &llm.Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-3.5-turbo",
	}
	client := New(config)

	ctx := context.Background()
	messages := []llm.Message{
		{Role: "user", Content: "hello"},
	}

	resp, err := client.Complete(ctx, messages)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "test response" {
		t.Errorf("expected 'test response', got %s", resp.Content)
	}
	if resp.Truncated {
		t.Error("finish_reason stop must not be truncated")
	}
	if resp.PromptTokens != 10 || resp.ReplyTokens != 5 {
		t.Errorf("unexpected usage %d/%d", resp.PromptTokens, resp.ReplyTokens)
	}
}

func TestOpenAIClientTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Seu pedido"},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	resp, err := New(&llm.Config{BaseURL: server.URL, Model: "gpt-3.5-turbo"}).
		Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "oi"}})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Truncated || resp.Content != "Seu pedido" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestOpenAIClientRequestFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify the request path: base_url includes /v1, client appends /chat/completions
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path '/v1/chat/completions', got %q", r.URL.Path)
		}

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var reqBody map[string]any
		json.Unmarshal(body, &reqBody)

		if reqBody["model"] != "gpt-3.5-turbo" {
			t.Errorf("expected model 'gpt-3.5-turbo', got %v", reqBody["model"])
		}
		if reqBody["max_tokens"] != float64(256) {
			t.Errorf("expected max_tokens 256, got %v", reqBody["max_tokens"])
		}
		// A zero temperature must still be sent.
		temp, ok := reqBody["temperature"]
		if !ok || temp != float64(0) {
			t.Errorf("expected temperature 0 to be sent, got %v (present=%v)", temp, ok)
		}

		messages, ok := reqBody["messages"].([]any)
		if !ok || len(messages) != 2 {
			t.Fatalf("expected 2 messages, got %v", reqBody["messages"])
		}
		first := messages[0].(map[string]any)
		if first["role"] != "system" || first["content"] != "be nice" {
			t.Errorf("unexpected first message %v", first)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := &llm.Config{
		BaseURL:   server.URL + "/v1/",
		APIKey:    "key",
		Model:     "gpt-3.5-turbo",
		MaxTokens: 256,
	}
	client := New(config)

	_, err := client.Complete(context.Background(), []llm.Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "test"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	config := &llm.Config{
		BaseURL: server.URL,
		APIKey:  "bad-key",
		Model:   "gpt-3.5-turbo",
	}
	client := New(config)

	_, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError with status 401, got %v", err)
	}
	if apiErr.Message != "invalid api key" || apiErr.Type != "invalid_request_error" {
		t.Errorf("unexpected envelope %+v", apiErr)
	}
}

func TestOpenAIClientPlainErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(&llm.Config{BaseURL: server.URL}).Complete(context.Background(), nil)
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
		t.Errorf("expected raw body as message, got %v", err)
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "gpt-3.5-turbo"})
	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, Model: "gpt-3.5-turbo", Timeout: 50 * time.Millisecond})
	start := time.Now()
	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("client did not honour its timeout")
	}
}

var _ llm.Provider = (*Client)(nil)

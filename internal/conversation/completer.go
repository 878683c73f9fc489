package conversation

import (
	"context"
	"log/slog"

	"github.com/user/orderbot/internal/prompt"
	"github.com/user/orderbot/internal/types"
	"github.com/user/orderbot/pkg/llm"
)

// LLMCompleter adapts an llm.Provider to types.Completer, fitting each
// transcript into the model's context window first.
type LLMCompleter struct {
	provider llm.Provider
	engine   *prompt.Engine
}

// NewLLMCompleter creates a completer. engine may be nil to send the
// transcript as is.
func NewLLMCompleter(provider llm.Provider, engine *prompt.Engine) *LLMCompleter {
	return &LLMCompleter{provider: provider, engine: engine}
}

// Complete returns the content of the provider's reply.
func (c *LLMCompleter) Complete(ctx context.Context, transcript []types.Turn) (string, error) {
	turns := transcript
	if c.engine != nil {
		turns = c.engine.Fit(transcript)
	}

	messages := make([]llm.Message, len(turns))
	for i, turn := range turns {
		messages[i] = llm.Message{Role: string(turn.Role), Content: turn.Content}
	}

	resp, err := c.provider.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp.Truncated {
		slog.Warn("completion hit max_tokens", "messages", len(messages), "reply_tokens", resp.ReplyTokens)
	} else {
		slog.Debug("completion", "prompt_tokens", resp.PromptTokens, "reply_tokens", resp.ReplyTokens)
	}
	return resp.Content, nil
}

// Package prompt builds the instruction that opens a chat session and fits
// transcripts into the model's context window.
package prompt

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/orderbot/internal/types"
)

// Per-message overhead of the chat format (role and separators).
const messageOverhead = 4

// Engine assembles token-budgeted requests for the LLM.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates an engine with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "gpt-3.5-turbo").
// maxTokens is the model's context window size; 0 disables trimming.
// reserve is the number of tokens to reserve for the model's response.
//
// When no tokenizer can be loaded (the BPE files are fetched on first use)
// the engine falls back to an estimate of four bytes per token.
func New(model string, maxTokens, reserve int) *Engine {
	if maxTokens <= 0 {
		return &Engine{}
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer unavailable, estimating token counts", "model", model, "error", err)
			enc = nil
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	if e.tokenizer == nil {
		return (len(text) + 3) / 4
	}
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Count returns the token count of a transcript including per-message
// overhead.
func (e *Engine) Count(turns []types.Turn) int {
	total := 0
	for _, turn := range turns {
		total += e.countTokens(turn.Content) + messageOverhead
	}
	return total
}

// Fit returns the turns to send for a transcript. When the transcript is
// over budget the oldest turns after the system instruction are dropped;
// the system turn and the latest turn are always kept. The input slice is
// never modified.
func (e *Engine) Fit(turns []types.Turn) []types.Turn {
	if e.maxTokens <= 0 || len(turns) <= 2 {
		return turns
	}
	budget := e.maxTokens - e.reserve

	sizes := make([]int, len(turns))
	total := 0
	for i, turn := range turns {
		sizes[i] = e.countTokens(turn.Content) + messageOverhead
		total += sizes[i]
	}
	if total <= budget {
		return turns
	}

	// Drop from index 1 forward until the rest fits.
	start := 1
	for start < len(turns)-1 && total > budget {
		total -= sizes[start]
		start++
	}

	fitted := make([]types.Turn, 0, 1+len(turns)-start)
	fitted = append(fitted, turns[0])
	fitted = append(fitted, turns[start:]...)
	slog.Debug("transcript trimmed to fit context window",
		"dropped_turns", start-1,
		"tokens", total,
		"budget", budget,
	)
	return fitted
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
)

// scriptedCompleter returns replies in order and records every transcript
// it was called with.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]types.Turn
	block   bool
}

func (c *scriptedCompleter) Complete(ctx context.Context, transcript []types.Turn) (string, error) {
	c.mu.Lock()
	i := len(c.calls)
	c.calls = append(c.calls, transcript)
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "ok", nil
}

func (c *scriptedCompleter) Calls() [][]types.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]types.Turn(nil), c.calls...)
}

type sentMessage struct {
	Recipient string
	Text      string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{Recipient: recipient, Text: text})
	return nil
}

func (s *recordingSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type staticPrompts struct{}

func (staticPrompts) InitialPrompt(storeName, orderCode string) string {
	return fmt.Sprintf("Atendente da %s. Código do pedido: %s", storeName, orderCode)
}

// countingStore wraps a MemoryStore, counting writes and optionally failing.
type countingStore struct {
	*state.MemoryStore
	mu     sync.Mutex
	sets   int
	getErr error
	setErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: state.NewMemoryStore()}
}

func (s *countingStore) Get(ctx context.Context, key types.SessionKey) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key types.SessionKey, data []byte) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, data)
}

func (s *countingStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

var errBoom = errors.New("boom")

// sequentialCodes hands out #sk-00001, #sk-00002, ...
func sequentialCodes() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("#sk-%05d", n)
	}
}

// failingOrderLog rejects every record.
type failingOrderLog struct{}

func (failingOrderLog) Record(context.Context, *types.OrderRecord) error {
	return errBoom
}

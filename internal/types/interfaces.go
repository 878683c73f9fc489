package types

import "context"

// SessionStore is a key-value store of serialized sessions. Get returns
// ErrNotFound when nothing is stored under the key.
type SessionStore interface {
	Get(ctx context.Context, key SessionKey) ([]byte, error)
	Set(ctx context.Context, key SessionKey, data []byte) error
}

// Completer produces the next reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, transcript []Turn) (string, error)
}

// Sender delivers a text message to a channel address.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// PromptBuilder renders the system instruction that opens a session.
type PromptBuilder interface {
	InitialPrompt(storeName, orderCode string) string
}

// OrderRecorder receives every order whose session closed.
type OrderRecorder interface {
	Record(ctx context.Context, order *OrderRecord) error
}

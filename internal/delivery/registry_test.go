package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/user/orderbot/internal/types"
)

var _ types.Sender = (*Registry)(nil)

func TestRegistrySend(t *testing.T) {
	reg := NewRegistry()

	var gotAddr, gotMsg string
	reg.Register("test:", func(_ context.Context, address, message string) error {
		gotAddr = address
		gotMsg = message
		return nil
	})

	err := reg.Send(context.Background(), "test:123", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "test:123" {
		t.Errorf("expected address %q, got %q", "test:123", gotAddr)
	}
	if gotMsg != "hello" {
		t.Errorf("expected message %q, got %q", "hello", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Send(context.Background(), "unknown:123", "hello")
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var telegramCalls, whatsappCalls int
	reg.Register("telegram:", func(_ context.Context, _, _ string) error {
		telegramCalls++
		return nil
	})
	reg.Register("whatsapp:", func(_ context.Context, _, _ string) error {
		whatsappCalls++
		return nil
	})

	reg.Send(context.Background(), "telegram:1", "a")
	reg.Send(context.Background(), "whatsapp:5511@c.us", "b")
	reg.Send(context.Background(), "whatsapp:5512@c.us", "c")

	if telegramCalls != 1 {
		t.Errorf("expected 1 telegram call, got %d", telegramCalls)
	}
	if whatsappCalls != 2 {
		t.Errorf("expected 2 whatsapp calls, got %d", whatsappCalls)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()

	var got string
	reg.Register("whatsapp:", func(_ context.Context, _, _ string) error {
		got = "generic"
		return nil
	})
	reg.Register("whatsapp:55", func(_ context.Context, _, _ string) error {
		got = "brazil"
		return nil
	})

	reg.Send(context.Background(), "whatsapp:5511@c.us", "x")
	if got != "brazil" {
		t.Errorf("expected longest prefix handler, got %q", got)
	}
}

func TestRegistryFallbackAndErrors(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")

	var fallbackAddr string
	reg.SetFallback(func(_ context.Context, address, _ string) error {
		fallbackAddr = address
		return boom
	})

	err := reg.Send(context.Background(), "+551199990000", "oi")
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
	if fallbackAddr != "+551199990000" {
		t.Errorf("expected fallback to receive the address, got %q", fallbackAddr)
	}
}

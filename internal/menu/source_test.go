package menu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"
)

func TestSourceUnconfigured(t *testing.T) {
	s := NewSource("", "")
	if s.Configured() {
		t.Error("expected unconfigured source")
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Text() != "" {
		t.Errorf("expected empty text, got %q", s.Text())
	}
}

func TestSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.md")
	os.WriteFile(path, []byte("- Calabresa: R$ 45\n- Mussarela: R$ 40\n"), 0o644)

	s := NewSource(path, "")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.Text(), "Calabresa") {
		t.Errorf("expected menu text, got %q", s.Text())
	}
	if s.LoadedAt().IsZero() {
		t.Error("expected load time to be set")
	}
}

func TestSourceHTMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.html")
	os.WriteFile(path, []byte(`<html><body><h1>Pizzas</h1><ul><li>Calabresa</li></ul></body></html>`), 0o644)

	s := NewSource(path, "")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(s.Text(), "<li>") {
		t.Errorf("expected HTML converted to markdown, got %q", s.Text())
	}
	if !strings.Contains(s.Text(), "Pizzas") || !strings.Contains(s.Text(), "Calabresa") {
		t.Errorf("expected menu content, got %q", s.Text())
	}
}

func TestSourceURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h2>Bebidas</h2><p>Refrigerante 2L</p></body></html>`))
	}))
	defer server.Close()

	s := NewSource("", server.URL)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.Text(), "Bebidas") || !strings.Contains(s.Text(), "Refrigerante 2L") {
		t.Errorf("expected converted menu, got %q", s.Text())
	}
}

func TestSourceKeepsLastGoodCopy(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Calabresa"))
	}))
	defer server.Close()

	s := NewSource("", server.URL)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	fail.Store(true)
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error on 500")
	}
	if s.Text() != "Calabresa" {
		t.Errorf("expected last good copy, got %q", s.Text())
	}
}

func TestSourceTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.txt")
	os.WriteFile(path, []byte(strings.Repeat("x", maxMenuBytes+100)), 0o644)

	s := NewSource(path, "")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(s.Text(), "[Cardápio truncado]") {
		t.Error("expected truncation marker")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "ã" is two bytes; the limit lands on its second byte.
	text := strings.Repeat("a", 9) + "ãbc"
	got := truncate(text, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("split rune in %q", got)
	}
	if want := strings.Repeat("a", 9) + "\n\n[Cardápio truncado]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if truncate("Pão de alho", 100) != "Pão de alho" {
		t.Error("short text must pass unchanged")
	}
}

func TestSourceURLBodyIsCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("ç", maxBodyBytes)))
	}))
	defer server.Close()

	s := NewSource("", server.URL)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	text := s.Text()
	if !utf8.ValidString(text) {
		t.Error("menu text is not valid UTF-8")
	}
	if len(text) > maxMenuBytes+len("\n\n[Cardápio truncado]") {
		t.Errorf("menu not capped: %d bytes", len(text))
	}
}

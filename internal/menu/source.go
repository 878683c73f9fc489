// Package menu loads the storefront menu that is embedded in the opening
// instruction of every session.
package menu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	// maxMenuBytes caps the menu text placed in the instruction.
	maxMenuBytes = 20000
	// maxBodyBytes caps the downloaded page before conversion.
	maxBodyBytes = 2 << 20
)

// Source holds the current menu text, loaded from a local file or a URL.
// HTML content is converted to markdown. A failed refresh keeps the last
// good copy.
type Source struct {
	path   string
	url    string
	client *http.Client

	mu       sync.RWMutex
	text     string
	loadedAt time.Time
}

// NewSource creates a Source for a file path or URL; path wins when both
// are set. With neither, Text always returns "".
func NewSource(path, url string) *Source {
	return &Source{
		path:   path,
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether the source has a location to load from.
func (s *Source) Configured() bool {
	return s.path != "" || s.url != ""
}

// Text returns the last loaded menu.
func (s *Source) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// LoadedAt returns when the menu was last loaded successfully.
func (s *Source) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Refresh reloads the menu.
func (s *Source) Refresh(ctx context.Context) error {
	if !s.Configured() {
		return nil
	}

	var (
		text string
		err  error
	)
	if s.path != "" {
		text, err = s.readFile()
	} else {
		text, err = s.fetch(ctx)
	}
	if err != nil {
		return err
	}

	text = truncate(text, maxMenuBytes)

	s.mu.Lock()
	s.text = text
	s.loadedAt = time.Now()
	s.mu.Unlock()

	slog.Info("menu loaded", "chars", len(text))
	return nil
}

func (s *Source) readFile() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read menu file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".html", ".htm":
		return toMarkdown(string(data))
	default:
		return string(data), nil
	}
}

func (s *Source) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Orderbot/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch menu: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch menu: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return toMarkdown(string(body))
	}
	return string(body), nil
}

// truncate cuts text to at most limit bytes without splitting a rune and
// marks the cut.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n\n[Cardápio truncado]"
}

func toMarkdown(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return md, nil
}

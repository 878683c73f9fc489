package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AddressPrefix starts every address delivered through the HTTP bridge.
const AddressPrefix = "whatsapp:"

const defaultClientTimeout = 15 * time.Second

// Client posts outbound replies to the messaging bridge.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewClient creates a Client for the bridge at url. secret, when set, is
// sent in SecretHeader.
func NewClient(url, secret string) *Client {
	return &Client{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

type outboundMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Send posts text to a "whatsapp:<id>" address.
func (c *Client) Send(ctx context.Context, address, text string) error {
	to, ok := strings.CutPrefix(address, AddressPrefix)
	if !ok || to == "" {
		return fmt.Errorf("not a whatsapp address: %s", address)
	}

	body, err := json.Marshal(outboundMessage{To: to, Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

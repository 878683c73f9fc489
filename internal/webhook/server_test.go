package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
)

type mockInbound struct {
	mu   sync.Mutex
	msgs []*types.InboundMessage
	err  error
}

func (m *mockInbound) HandleInbound(_ context.Context, msg *types.InboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func setupServer(t *testing.T, in *mockInbound, secret string) (*Server, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	return NewServer(in, store, state.NewMemoryOrderLog(), secret), store
}

func do(srv http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &mockInbound{}, "")

	w := do(srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestWebhookMessage(t *testing.T) {
	in := &mockInbound{}
	srv, _ := setupServer(t, in, "")

	body := `{"from":"5511999990000@c.us","name":"Maria","body":"quero uma pizza","is_group":false,"type":"chat"}`
	w := do(srv, http.MethodPost, "/webhook/messages", body, nil)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(in.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(in.msgs))
	}
	msg := in.msgs[0]
	if msg.Sender != "whatsapp:5511999990000@c.us" {
		t.Errorf("unexpected sender %q", msg.Sender)
	}
	if types.NormalizePhone(msg.Sender) != "+5511999990000" {
		t.Errorf("unexpected normalized phone %q", types.NormalizePhone(msg.Sender))
	}
	if msg.SenderName != "Maria" || msg.Text != "quero uma pizza" || msg.IsGroup {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestWebhookMessageGroupFlag(t *testing.T) {
	in := &mockInbound{}
	srv, _ := setupServer(t, in, "")

	w := do(srv, http.MethodPost, "/webhook/messages", `{"from":"123@g.us","body":"oi","is_group":true}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}
	if len(in.msgs) != 1 || !in.msgs[0].IsGroup {
		t.Fatalf("expected group message to be forwarded with flag, got %+v", in.msgs)
	}
}

func TestWebhookIgnoresMedia(t *testing.T) {
	in := &mockInbound{}
	srv, _ := setupServer(t, in, "")

	w := do(srv, http.MethodPost, "/webhook/messages", `{"from":"5511","body":"","type":"image"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(in.msgs) != 0 {
		t.Errorf("media should not be forwarded")
	}
}

func TestWebhookBadRequests(t *testing.T) {
	srv, _ := setupServer(t, &mockInbound{}, "")

	if w := do(srv, http.MethodPost, "/webhook/messages", `not json`, nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: expected 400, got %d", w.Code)
	}
	if w := do(srv, http.MethodPost, "/webhook/messages", `{"body":"oi"}`, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing from: expected 400, got %d", w.Code)
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	in := &mockInbound{}
	srv, _ := setupServer(t, in, "")

	body := `{"from":"5511999990000@c.us","body":"` + strings.Repeat("a", maxMessageBytes) + `"}`
	w := do(srv, http.MethodPost, "/webhook/messages", body, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", w.Code)
	}
	if len(in.msgs) != 0 {
		t.Error("oversized message must not be forwarded")
	}
}

func TestWebhookSecret(t *testing.T) {
	in := &mockInbound{}
	srv, _ := setupServer(t, in, "s3cret")
	body := `{"from":"5511","body":"oi"}`

	if w := do(srv, http.MethodPost, "/webhook/messages", body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: expected 401, got %d", w.Code)
	}
	if w := do(srv, http.MethodPost, "/webhook/messages", body, map[string]string{SecretHeader: "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", w.Code)
	}
	if w := do(srv, http.MethodPost, "/webhook/messages", body, map[string]string{SecretHeader: "s3cret"}); w.Code != http.StatusAccepted {
		t.Errorf("right secret: expected 202, got %d", w.Code)
	}
	if len(in.msgs) != 1 {
		t.Errorf("expected exactly 1 forwarded message, got %d", len(in.msgs))
	}
}

func TestWebhookGatewayStopped(t *testing.T) {
	srv, _ := setupServer(t, &mockInbound{err: errors.New("stopped")}, "")

	w := do(srv, http.MethodPost, "/webhook/messages", `{"from":"5511","body":"oi"}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
}

func storeSession(t *testing.T, store *state.MemoryStore, phone string) *types.Session {
	t.Helper()
	sess := types.NewSession("#sk-01234", types.Customer{Name: "Maria", Phone: phone}, "instrução", time.Unix(0, 0).UTC())
	sess.Append(types.RoleUser, "oi")
	data, err := types.MarshalSession(sess)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(context.Background(), types.CustomerKey(phone), data); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestAPISession(t *testing.T) {
	srv, store := setupServer(t, &mockInbound{}, "")
	storeSession(t, store, "+5511999990000")

	w := do(srv, http.MethodGet, "/api/sessions/5511999990000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got types.Session
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.OrderCode != "#sk-01234" || got.Status != types.StatusOpen || len(got.Transcript) != 2 {
		t.Errorf("unexpected session %+v", got)
	}

	if w := do(srv, http.MethodGet, "/api/sessions/5500000000000", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown phone: expected 404, got %d", w.Code)
	}
	if w := do(srv, http.MethodGet, "/api/sessions/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid phone: expected 400, got %d", w.Code)
	}
}

func TestAPISessionCorrupt(t *testing.T) {
	srv, store := setupServer(t, &mockInbound{}, "")
	if err := store.Set(context.Background(), types.CustomerKey("+5511"), []byte("{broken")); err != nil {
		t.Fatal(err)
	}

	if w := do(srv, http.MethodGet, "/api/sessions/5511", "", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestAPISessions(t *testing.T) {
	srv, store := setupServer(t, &mockInbound{}, "")
	storeSession(t, store, "+5511999990000")
	storeSession(t, store, "+5511888880000")

	w := do(srv, http.MethodGet, "/api/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got []sessionSummary
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].Turns != 2 || got[0].Status != "open" {
		t.Errorf("unexpected summary %+v", got[0])
	}
}

func TestAPIOrders(t *testing.T) {
	store := state.NewMemoryStore()
	orders := state.NewMemoryOrderLog()
	srv := NewServer(&mockInbound{}, store, orders, "")

	w := do(srv, http.MethodGet, "/api/orders", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}

	for _, code := range []string{"#sk-00001", "#sk-00002", "#sk-00003"} {
		if err := orders.Record(context.Background(), &types.OrderRecord{OrderCode: code, Summary: "pizza"}); err != nil {
			t.Fatal(err)
		}
	}

	w = do(srv, http.MethodGet, "/api/orders?limit=2", "", nil)
	var got []types.OrderRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].OrderCode != "#sk-00003" {
		t.Errorf("unexpected orders %+v", got)
	}
}

func TestAPIOrdersNotConfigured(t *testing.T) {
	srv := NewServer(&mockInbound{}, state.NewMemoryStore(), nil, "")
	if w := do(srv, http.MethodGet, "/api/orders", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

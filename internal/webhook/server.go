package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
)

// SecretHeader carries the shared secret of the messaging bridge.
const SecretHeader = "X-Orderbot-Secret"

// Inbound accepts messages for processing.
type Inbound interface {
	HandleInbound(ctx context.Context, msg *types.InboundMessage) error
}

// Server is a lightweight HTTP handler for the messaging bridge and the
// session debug API.
type Server struct {
	inbound  Inbound
	sessions types.SessionStore
	orders   state.OrderLog
	secret   string
	mux      *http.ServeMux
}

// NewServer creates a webhook Server. orders may be nil. An empty secret
// disables the header check.
func NewServer(inbound Inbound, sessions types.SessionStore, orders state.OrderLog, secret string) *Server {
	s := &Server{
		inbound:  inbound,
		sessions: sessions,
		orders:   orders,
		secret:   secret,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook/messages", s.handleMessage)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/{phone}", s.handleAPISession)
	s.mux.HandleFunc("GET /api/orders", s.handleAPIOrders)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const maxMessageBytes = 1 << 20

// messageRequest is the JSON body for POST /webhook/messages, shaped after
// what WhatsApp web bridges emit.
type messageRequest struct {
	From    string `json:"from"`
	Name    string `json:"name"`
	Body    string `json:"body"`
	IsGroup bool   `json:"is_group"`
	Type    string `json:"type"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	var req messageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.From == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}

	// Media, reactions and status updates are acknowledged and dropped.
	if req.Type != "" && req.Type != "chat" && req.Type != "text" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	msg := &types.InboundMessage{
		Source:     "whatsapp",
		Sender:     AddressPrefix + req.From,
		SenderName: req.Name,
		Text:       req.Body,
		IsGroup:    req.IsGroup,
	}
	if err := s.inbound.HandleInbound(r.Context(), msg); err != nil {
		slog.Error("webhook inbound failed", "from", req.From, "error", err)
		writeError(w, http.StatusServiceUnavailable, "not accepting messages")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) == 1
}

type sessionSummary struct {
	Key       string `json:"key"`
	Status    string `json:"status"`
	OrderCode string `json:"order_code"`
	Customer  string `json:"customer"`
	Turns     int    `json:"turns"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	lister, ok := s.sessions.(state.Lister)
	if !ok {
		writeError(w, http.StatusNotImplemented, "store cannot list sessions")
		return
	}

	ctx := r.Context()
	keys, err := lister.List(ctx)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result := make([]sessionSummary, 0, len(keys))
	for _, key := range keys {
		sess, err := state.LoadSession(ctx, s.sessions, key)
		if err != nil {
			slog.Warn("skip unreadable session", "key", key, "error", err)
			continue
		}
		result = append(result, sessionSummary{
			Key:       string(key),
			Status:    string(sess.Status),
			OrderCode: sess.OrderCode,
			Customer:  sess.Customer.Name,
			Turns:     len(sess.Transcript),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	phone := types.NormalizePhone(r.PathValue("phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid phone")
		return
	}

	sess, err := state.LoadSession(r.Context(), s.sessions, types.CustomerKey(phone))
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, types.ErrSessionCorrupt):
		writeError(w, http.StatusUnprocessableEntity, "session is corrupt")
	case err != nil:
		slog.Error("load session failed", "phone", phone, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleAPIOrders(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	if s.orders == nil {
		writeError(w, http.StatusServiceUnavailable, "order log not configured")
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := s.orders.Tail(r.Context(), limit)
	if err != nil {
		slog.Error("tail orders failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if orders == nil {
		orders = []*types.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}


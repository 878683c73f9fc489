// Package conversation runs the chat session of each customer: it decides
// whether an inbound message continues an open session or starts a new
// one, asks the completion service for the reply, and closes the session
// once the assistant echoes the order code.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/user/orderbot/internal/types"
)

const (
	// FallbackReply replaces a failed or empty completion.
	FallbackReply = "Não entendi..."

	// SummaryRequest is appended as a user turn once the order is complete.
	SummaryRequest = "Gere um resumo de pedido para registro no sistema da pizzaria, quem está solicitando é um robô."

	// DefaultCallTimeout bounds each store, completion and send call.
	DefaultCallTimeout = 30 * time.Second
)

// Manager applies the session state machine to inbound messages. It holds
// no per-customer state; everything lives in the session store. Two
// messages of the same customer handled at once both read the stored
// session and the last write wins.
type Manager struct {
	store     types.SessionStore
	completer types.Completer
	sender    types.Sender
	prompts   types.PromptBuilder
	storeName string

	orders types.OrderRecorder

	callTimeout  time.Duration
	now          func() time.Time
	newOrderCode func() string

	sends sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithCallTimeout bounds every external call. Non-positive values keep the
// default.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.callTimeout = d
		}
	}
}

// WithClock sets the time source used for session start times.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOrderCodes sets the generator of order codes for new sessions.
func WithOrderCodes(gen func() string) Option {
	return func(m *Manager) { m.newOrderCode = gen }
}

// WithOrderLog records every completed order in log.
func WithOrderLog(log types.OrderRecorder) Option {
	return func(m *Manager) { m.orders = log }
}

// NewManager creates a Manager for the storefront named storeName.
func NewManager(
	store types.SessionStore,
	completer types.Completer,
	sender types.Sender,
	prompts types.PromptBuilder,
	storeName string,
	opts ...Option,
) *Manager {
	m := &Manager{
		store:        store,
		completer:    completer,
		sender:       sender,
		prompts:      prompts,
		storeName:    storeName,
		callTimeout:  DefaultCallTimeout,
		now:          time.Now,
		newOrderCode: types.NewOrderCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleInbound processes one inbound message and returns the session as
// persisted, or nil when the message was ignored. Ignored messages are a
// body that is empty or only whitespace, a group chat, and a sender without
// a phone number. Failures of the store, the
// completion service or the send are logged and never stop processing.
func (m *Manager) HandleInbound(ctx context.Context, msg *types.InboundMessage) *types.Session {
	if msg == nil || strings.TrimSpace(msg.Text) == "" || msg.IsGroup {
		return nil
	}
	phone := types.NormalizePhone(msg.Sender)
	if phone == "" {
		slog.Warn("ignoring message from sender without phone", "source", msg.Source, "sender", msg.Sender)
		return nil
	}

	key := types.CustomerKey(phone)
	log := slog.With("customer_key", string(key))

	session := m.load(ctx, key, log)
	if !session.IsOpen() {
		session = m.start(phone, msg.SenderName)
		log.Info("session started", "order_code", session.OrderCode)
	}
	log.Debug("message", "direction", "inbound", "text", msg.Text)

	session.Append(types.RoleUser, msg.Text)
	reply := m.complete(ctx, session.Transcript, log)
	session.Append(types.RoleAssistant, reply)
	log.Debug("message", "direction", "reply", "text", reply)

	m.sendAsync(ctx, msg.Sender, reply, log)

	if session.IsOpen() && strings.Contains(reply, session.OrderCode) {
		session.Append(types.RoleUser, SummaryRequest)
		summary := m.complete(ctx, session.Transcript, log)
		session.Close(summary)
		log.Info("order completed", "order_code", session.OrderCode)
		log.Debug("message", "direction", "summary", "text", summary)
		m.record(ctx, session, log)
	}

	m.save(ctx, key, session, log)
	return session
}

// Wait blocks until every reply handed to the sender has finished.
func (m *Manager) Wait() {
	m.sends.Wait()
}

func (m *Manager) start(phone, name string) *types.Session {
	code := m.newOrderCode()
	instruction := m.prompts.InitialPrompt(m.storeName, code)
	return types.NewSession(code, types.Customer{Name: name, Phone: phone}, instruction, m.now())
}

// load returns the stored session, or nil when there is none. Unreadable
// blobs and store failures are treated as no session.
func (m *Manager) load(ctx context.Context, key types.SessionKey, log *slog.Logger) *types.Session {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	data, err := m.store.Get(callCtx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			log.Error("load session failed", "error", types.NewCallError(types.CollaboratorStoreGet, err))
		}
		return nil
	}

	session, err := types.UnmarshalSession(data)
	if err != nil {
		log.Warn("discarding unreadable session", "error", err)
		return nil
	}
	return session
}

// complete asks for the next reply. The completer gets its own copy of the
// transcript.
func (m *Manager) complete(ctx context.Context, transcript []types.Turn, log *slog.Logger) string {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	reply, err := m.completer.Complete(callCtx, slices.Clone(transcript))
	if err != nil {
		log.Error("completion failed", "error", types.NewCallError(types.CollaboratorCompletion, err))
		return FallbackReply
	}
	if strings.TrimSpace(reply) == "" {
		log.Warn("completion returned empty reply")
		return FallbackReply
	}
	return reply
}

// sendAsync delivers the reply in the background. The send outlives the
// caller's context so that returning from HandleInbound does not abort it.
func (m *Manager) sendAsync(ctx context.Context, recipient, text string, log *slog.Logger) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.callTimeout)
	m.sends.Add(1)
	go func() {
		defer m.sends.Done()
		defer cancel()
		if err := m.sender.Send(sendCtx, recipient, text); err != nil {
			log.Error("send reply failed", "error", types.NewCallError(types.CollaboratorSend, err))
			return
		}
		log.Debug("reply sent", "recipient", recipient)
	}()
}

func (m *Manager) record(ctx context.Context, session *types.Session, log *slog.Logger) {
	if m.orders == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	if err := m.orders.Record(callCtx, types.NewOrderRecord(session, m.now())); err != nil {
		log.Error("record order failed", "error", types.NewCallError(types.CollaboratorOrderLog, err))
	}
}

func (m *Manager) save(ctx context.Context, key types.SessionKey, session *types.Session, log *slog.Logger) {
	data, err := types.MarshalSession(session)
	if err != nil {
		log.Error("encode session failed", "error", err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	if err := m.store.Set(callCtx, key, data); err != nil {
		log.Error("save session failed", "error", types.NewCallError(types.CollaboratorStoreSet, err))
	}
}

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status of a chat session. The zero value means there is no session.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Turn is one message of a session transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Customer is the identity snapshot taken when a session starts.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Session is the persisted chat state of one customer. The JSON field
// names match the blobs already stored under customer keys.
type Session struct {
	Status       Status    `json:"status,omitempty"`
	OrderCode    string    `json:"orderCode"`
	StartedAt    time.Time `json:"chatAt"`
	Customer     Customer  `json:"customer"`
	Transcript   []Turn    `json:"messages"`
	OrderSummary string    `json:"orderSummary,omitempty"`
}

// NewSession starts an open session whose transcript holds only the
// system instruction.
func NewSession(orderCode string, customer Customer, instruction string, now time.Time) *Session {
	return &Session{
		Status:     StatusOpen,
		OrderCode:  orderCode,
		StartedAt:  now,
		Customer:   customer,
		Transcript: []Turn{{Role: RoleSystem, Content: instruction}},
	}
}

func (s *Session) IsOpen() bool {
	return s != nil && s.Status == StatusOpen
}

// Append adds a turn to the end of the transcript.
func (s *Session) Append(role Role, content string) {
	s.Transcript = append(s.Transcript, Turn{Role: role, Content: content})
}

// Close records the order summary and marks the session closed. Closing
// a session that is not open is a no-op.
func (s *Session) Close(summary string) {
	if !s.IsOpen() {
		return
	}
	s.OrderSummary = summary
	s.Status = StatusClosed
}

// Validate reports whether the session has an order code and a transcript
// that starts with exactly one system turn.
func (s *Session) Validate() error {
	if s.OrderCode == "" {
		return fmt.Errorf("%w: missing order code", ErrSessionCorrupt)
	}
	if len(s.Transcript) == 0 || s.Transcript[0].Role != RoleSystem {
		return fmt.Errorf("%w: transcript does not start with a system turn", ErrSessionCorrupt)
	}
	for _, turn := range s.Transcript[1:] {
		if turn.Role == RoleSystem {
			return fmt.Errorf("%w: more than one system turn", ErrSessionCorrupt)
		}
	}
	return nil
}

// MarshalSession encodes a session into its stored form.
func MarshalSession(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

// UnmarshalSession decodes a stored blob. Any decoding problem, including a
// broken transcript, is reported as ErrSessionCorrupt.
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	// An empty object carries no status and means no session.
	if s.Status == "" {
		return &s, nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// InboundMessage is a text message delivered by a messaging channel.
type InboundMessage struct {
	Source     string `json:"source"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	IsGroup    bool   `json:"is_group"`
}

// OrderRecord is the entry written to the order log when a session closes.
type OrderRecord struct {
	Seq       int64     `json:"seq"`
	OrderCode string    `json:"orderCode"`
	Customer  Customer  `json:"customer"`
	Summary   string    `json:"orderSummary"`
	StartedAt time.Time `json:"chatAt"`
	ClosedAt  time.Time `json:"closedAt"`
}

// NewOrderRecord captures a closed session for the order log.
func NewOrderRecord(s *Session, closedAt time.Time) *OrderRecord {
	return &OrderRecord{
		OrderCode: s.OrderCode,
		Customer:  s.Customer,
		Summary:   s.OrderSummary,
		StartedAt: s.StartedAt,
		ClosedAt:  closedAt,
	}
}

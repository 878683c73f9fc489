package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type SessionKey string

func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}

// CustomerKey returns the store key holding the chat session of the
// customer with the given normalized phone.
func CustomerKey(phone string) SessionKey {
	return NewSessionKey("customer", phone, "chat")
}

// channelPrefixes are the address schemes the delivery registry routes on.
var channelPrefixes = []string{"whatsapp:", "telegram:", "console:"}

// NormalizePhone turns a raw channel address into a "+<digits>" phone.
// A channel prefix, a WhatsApp JID domain ("@c.us", "@s.whatsapp.net")
// and a multi-device suffix ("5511999900001:12@s.whatsapp.net") are
// dropped. Returns "" when the address carries no digits.
func NormalizePhone(address string) string {
	for _, prefix := range channelPrefixes {
		if rest, ok := strings.CutPrefix(address, prefix); ok {
			address = rest
			break
		}
	}
	user, _, _ := strings.Cut(address, "@")
	user, _, _ = strings.Cut(user, ":")

	var b strings.Builder
	for _, r := range user {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

const orderCodePrefix = "#sk-"

// NewOrderCode returns a short code such as "#sk-04217". The digits come
// from a random v4 UUID.
func NewOrderCode() string {
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[:4]) % 100000
	return fmt.Sprintf("%s%05d", orderCodePrefix, n)
}

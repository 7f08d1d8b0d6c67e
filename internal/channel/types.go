// Package channel defines the unified inbound message form shared by all
// messaging transports, and the identity rules mapping transport addresses
// to stable user ids.
package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChannelType identifies a messaging transport. The set is closed: every
// switch over it handles exactly these values.
type ChannelType string

const (
	TypeTwilio   ChannelType = "twilio"
	TypeUltraMsg ChannelType = "ultramsg"
	TypeWeb      ChannelType = "web"
)

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// ErrNoMessage means the payload parsed but carried nothing to process.
// The webhook must still be acknowledged.
var ErrNoMessage = errors.New("channel: payload contains no message")

// ErrUnsupportedPayload means the request body is structurally not a
// supported webhook encoding.
var ErrUnsupportedPayload = errors.New("channel: unsupported payload")

// InboundMessage is the canonical form every transport webhook normalizes to.
type InboundMessage struct {
	Channel    ChannelType
	UserID     string // canonical id: digits-only phone, or web session id
	Text       string
	MessageID  string
	Address    string // raw transport address, used for the reply
	MediaURL   string // inbound voice note, when present
	Voice      bool
	ReceivedAt time.Time
}

// CanonicalUserID derives a digits-only user id from a phone-style transport
// address, so the same human maps to the same profile across formatting
// variants: "whatsapp:+961 70-123456" and "96170123456@c.us" both yield
// "96170123456". Routing suffixes after "@" are dropped first.
func CanonicalUserID(address string) string {
	address = strings.TrimSpace(address)
	if at := strings.IndexByte(address, '@'); at >= 0 {
		address = address[:at]
	}
	var b strings.Builder
	for _, r := range address {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FallbackMessageID synthesizes an id when the transport provides none.
// This forfeits idempotency for that single delivery: a retry of the same
// message gets a new id. Accepted degradation, preferred over dropping it.
func FallbackMessageID(userID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", userID, at.UnixNano())
}

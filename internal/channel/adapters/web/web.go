// Package web normalizes chat-widget requests. The web channel replies
// inline: the HTTP response body is the reply envelope.
package web

import (
	"strings"
	"time"

	"github.com/hakimhealth/hakim/internal/channel"
)

// ChatRequest is the widget's message payload. The session id comes from the
// anonymous-identity mechanism owned by the web client; it is the user id.
// The client may supply its own message id to keep retries idempotent.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required,min=8,max=128"`
	MessageID string `json:"message_id,omitempty" validate:"omitempty,max=128"`
	Text      string `json:"text" validate:"required,max=4096"`
}

// ChatResponse is the inline reply envelope.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Normalize converts a validated widget request into the canonical form.
func Normalize(req ChatRequest) (channel.InboundMessage, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	text := strings.TrimSpace(req.Text)
	if sessionID == "" || text == "" {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}

	now := time.Now()
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		messageID = channel.FallbackMessageID(sessionID, now)
	}

	return channel.InboundMessage{
		Channel:    channel.TypeWeb,
		UserID:     sessionID,
		Text:       text,
		MessageID:  messageID,
		Address:    sessionID,
		ReceivedAt: now,
	}, nil
}

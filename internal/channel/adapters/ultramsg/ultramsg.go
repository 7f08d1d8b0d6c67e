// Package ultramsg normalizes UltraMsg WhatsApp webhook deliveries and sends
// outbound messages through the UltraMsg REST API. Unlike Twilio, replies are
// not inline: the webhook is acknowledged and the reply is a separate call.
package ultramsg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hakimhealth/hakim/internal/channel"
	"github.com/hakimhealth/hakim/internal/config"
)

const maxBodyBytes = 1 << 20

// webhookPayload is the UltraMsg event envelope.
type webhookPayload struct {
	EventType string `json:"event_type"`
	Data      struct {
		ID       string `json:"id"`
		From     string `json:"from"`
		Type     string `json:"type"`
		Body     string `json:"body"`
		Media    string `json:"media"`
		FromMe   bool   `json:"fromMe"`
		Pushname string `json:"pushname"`
	} `json:"data"`
}

// ParseWebhook normalizes an UltraMsg webhook request. UltraMsg posts JSON;
// any other declared content type is unsupported.
func ParseWebhook(r *http.Request) (channel.InboundMessage, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return channel.InboundMessage{}, fmt.Errorf("%w: content type %q", channel.ErrUnsupportedPayload, r.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return channel.InboundMessage{}, fmt.Errorf("read body: %w", channel.ErrNoMessage)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return channel.InboundMessage{}, fmt.Errorf("decode payload: %w", channel.ErrNoMessage)
	}

	// Echoes of our own outbound sends and non-message events are skipped.
	if payload.EventType != "message_received" || payload.Data.FromMe {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}

	from := strings.TrimSpace(payload.Data.From)
	userID := channel.CanonicalUserID(from)
	if userID == "" {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}

	voice := payload.Data.Type == "audio" || payload.Data.Type == "ppt"
	text := strings.TrimSpace(payload.Data.Body)
	mediaURL := strings.TrimSpace(payload.Data.Media)
	if text == "" && mediaURL == "" {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}
	if voice {
		// For voice notes the body field repeats the media reference.
		text = ""
	}

	now := time.Now()
	messageID := strings.TrimSpace(payload.Data.ID)
	if messageID == "" {
		messageID = channel.FallbackMessageID(userID, now)
	}

	return channel.InboundMessage{
		Channel:    channel.TypeUltraMsg,
		UserID:     userID,
		Text:       text,
		MessageID:  messageID,
		Address:    from,
		MediaURL:   mediaURL,
		Voice:      voice,
		ReceivedAt: now,
	}, nil
}

// Client sends outbound messages via the UltraMsg instance API.
type Client struct {
	baseURL  string
	instance string
	token    string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates an UltraMsg API client. The handle is created once at
// startup and reused for every send.
func NewClient(log *slog.Logger, cfg config.UltraMsgConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		instance: cfg.Instance,
		token:    cfg.Token,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   log.With(slog.String("adapter", "ultramsg")),
	}
}

// SendText delivers a text message to the given transport address.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	return c.post(ctx, "/messages/chat", url.Values{
		"token": {c.token},
		"to":    {to},
		"body":  {text},
	})
}

// SendAudio delivers an audio message referenced by a fetchable URL.
func (c *Client) SendAudio(ctx context.Context, to, audioURL string) error {
	return c.post(ctx, "/messages/audio", url.Values{
		"token": {c.token},
		"to":    {to},
		"audio": {audioURL},
	})
}

func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	if c.instance == "" || c.token == "" {
		return fmt.Errorf("ultramsg: instance and token are required")
	}
	endpoint := fmt.Sprintf("%s/%s%s", c.baseURL, c.instance, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send via ultramsg: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ultramsg returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hakimhealth/hakim/internal/channel"
	"github.com/hakimhealth/hakim/internal/channel/adapters/twilio"
	"github.com/hakimhealth/hakim/internal/channel/adapters/ultramsg"
	"github.com/hakimhealth/hakim/internal/chat"
	"github.com/hakimhealth/hakim/internal/config"
	"github.com/hakimhealth/hakim/internal/inbound"
)

// Processor is the inbound pipeline boundary used by webhook handlers.
type Processor interface {
	Process(ctx context.Context, msg channel.InboundMessage) (inbound.Outcome, error)
}

// UltraMsgSender delivers UltraMsg replies after the webhook is acknowledged.
type UltraMsgSender interface {
	SendText(ctx context.Context, to, text string) error
	SendAudio(ctx context.Context, to, audioURL string) error
}

// Synthesizer turns reply text into audio for voice conversations.
type Synthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioPublisher makes synthesized audio fetchable by URL for the duration
// of one send attempt.
type AudioPublisher interface {
	PutForSend(ctx context.Context, audio []byte, contentType string) (string, func(), error)
}

// TwilioWebhookHandler receives Twilio WhatsApp deliveries. The reply rides
// inline in the response body as TwiML; webhooks are acknowledged even on
// internal failure so Twilio does not retry-storm. With credentials
// configured, deliveries must carry a valid request signature and the
// configured account sid; forged requests are rejected outright.
type TwilioWebhookHandler struct {
	logger     *slog.Logger
	processor  Processor
	accountSID string
	authToken  string
}

func NewTwilioWebhookHandler(log *slog.Logger, processor Processor, cfg config.TwilioConfig) *TwilioWebhookHandler {
	return &TwilioWebhookHandler{
		logger:     log.With(slog.String("handler", "twilio_webhook")),
		processor:  processor,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
	}
}

func (h *TwilioWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/twilio", h.Handle)
}

func (h *TwilioWebhookHandler) Handle(c echo.Context) error {
	msg, err := twilio.ParseWebhook(c.Request())
	if err != nil {
		if errors.Is(err, channel.ErrUnsupportedPayload) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// Nothing to process; acknowledge with an empty envelope.
		return c.Blob(http.StatusOK, "text/xml", []byte(twilio.TwiML("")))
	}

	if h.authToken != "" && !twilio.ValidateSignature(c.Request(), h.authToken) {
		h.logger.Warn("webhook signature rejected", slog.String("user_id", msg.UserID))
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}
	if h.accountSID != "" && c.Request().FormValue("AccountSid") != h.accountSID {
		h.logger.Warn("webhook account rejected", slog.String("user_id", msg.UserID))
		return echo.NewHTTPError(http.StatusForbidden, "unknown account")
	}

	outcome, err := h.processor.Process(c.Request().Context(), msg)
	if err != nil {
		h.logger.Error("process delivery failed",
			slog.String("user_id", msg.UserID),
			slog.Any("error", err))
		apology := chat.Apology(chat.DetectLanguage(msg.Text))
		return c.Blob(http.StatusOK, "text/xml", []byte(twilio.TwiML(apology)))
	}

	return c.Blob(http.StatusOK, "text/xml", []byte(twilio.TwiML(outcome.ReplyText)))
}

// UltraMsgWebhookHandler receives UltraMsg deliveries. Replies go out as a
// separate API call; the webhook response only acknowledges receipt.
type UltraMsgWebhookHandler struct {
	logger      *slog.Logger
	processor   Processor
	sender      UltraMsgSender
	synthesizer Synthesizer
	audio       AudioPublisher
}

func NewUltraMsgWebhookHandler(log *slog.Logger, processor Processor, sender UltraMsgSender, synthesizer Synthesizer, audio AudioPublisher) *UltraMsgWebhookHandler {
	return &UltraMsgWebhookHandler{
		logger:      log.With(slog.String("handler", "ultramsg_webhook")),
		processor:   processor,
		sender:      sender,
		synthesizer: synthesizer,
		audio:       audio,
	}
}

func (h *UltraMsgWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/ultramsg", h.Handle)
}

func (h *UltraMsgWebhookHandler) Handle(c echo.Context) error {
	msg, err := ultramsg.ParseWebhook(c.Request())
	if err != nil {
		if errors.Is(err, channel.ErrUnsupportedPayload) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	ctx := c.Request().Context()
	outcome, err := h.processor.Process(ctx, msg)
	if err != nil {
		h.logger.Error("process delivery failed",
			slog.String("user_id", msg.UserID),
			slog.Any("error", err))
		outcome = inbound.Outcome{
			ReplyText: chat.Apology(chat.DetectLanguage(msg.Text)),
			Voice:     false,
		}
	}

	h.deliver(ctx, msg.Address, outcome)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// deliver sends the reply, spoken when the inbound was a voice note and a
// synthesis backend is available, falling back to text on any failure.
func (h *UltraMsgWebhookHandler) deliver(ctx context.Context, to string, outcome inbound.Outcome) {
	if outcome.ReplyText == "" {
		return
	}

	if outcome.Voice && h.synthesizer != nil && h.synthesizer.Enabled() && h.audio != nil {
		if h.deliverVoice(ctx, to, outcome.ReplyText) {
			return
		}
	}

	if err := h.sender.SendText(ctx, to, outcome.ReplyText); err != nil {
		h.logger.Error("send text reply failed", slog.String("to", to), slog.Any("error", err))
	}
}

func (h *UltraMsgWebhookHandler) deliverVoice(ctx context.Context, to, text string) bool {
	audio, err := h.synthesizer.Synthesize(ctx, text)
	if err != nil {
		h.logger.Warn("speech synthesis failed, falling back to text", slog.Any("error", err))
		return false
	}

	signedURL, release, err := h.audio.PutForSend(ctx, audio, "audio/mpeg")
	if err != nil {
		h.logger.Warn("publish audio failed, falling back to text", slog.Any("error", err))
		return false
	}
	defer release()

	if err := h.sender.SendAudio(ctx, to, signedURL); err != nil {
		h.logger.Warn("send audio reply failed, falling back to text", slog.Any("error", err))
		return false
	}
	return true
}

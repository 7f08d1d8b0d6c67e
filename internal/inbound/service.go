// Package inbound runs the per-delivery pipeline: record the normalized
// message, advance onboarding or route to free conversation, and record the
// paired reply. Each webhook delivery is one independent unit of work; the
// conversation store is the only shared state and the sole ordering
// authority.
package inbound

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hakimhealth/hakim/internal/channel"
	"github.com/hakimhealth/hakim/internal/chat"
	"github.com/hakimhealth/hakim/internal/conversation"
	"github.com/hakimhealth/hakim/internal/onboarding"
)

// Store is the conversation persistence boundary used by the pipeline.
type Store interface {
	Get(ctx context.Context, userID string) (conversation.Document, error)
	UpsertMessage(ctx context.Context, userID string, msg conversation.Message) (conversation.Document, error)
	UpdateProfile(ctx context.Context, userID string, patch conversation.ProfilePatch) (conversation.Document, error)
}

// Replier produces the free-conversation reply once onboarding is done.
type Replier interface {
	Route(ctx context.Context, inboundText string, history []conversation.Message) string
}

// Transcriber converts inbound voice notes to text.
type Transcriber interface {
	Enabled() bool
	TranscribeURL(ctx context.Context, mediaURL, languageHint string) (string, error)
}

// Outcome is what the transport-facing handler needs to deliver the reply.
type Outcome struct {
	ReplyText string
	// Voice marks that the inbound was a voice note, so the reply should be
	// spoken where the transport supports it.
	Voice bool
}

// Service is the transport-agnostic inbound pipeline.
type Service struct {
	store       Store
	router      Replier
	transcriber Transcriber
	logger      *slog.Logger
}

// NewService creates the inbound pipeline. transcriber may be nil when no
// voice backend is configured.
func NewService(log *slog.Logger, store Store, router Replier, transcriber Transcriber) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		router:      router,
		transcriber: transcriber,
		logger:      log.With(slog.String("service", "inbound")),
	}
}

// Process handles one normalized inbound message end to end and returns the
// reply to deliver. Store failures are returned to the caller; collaborator
// failures are already contained as apology text inside.
func (s *Service) Process(ctx context.Context, msg channel.InboundMessage) (Outcome, error) {
	// The profile step read here drives both the transcript kind and the
	// reply decision for this delivery. Concurrent deliveries may read the
	// same step; the store's versioned write decides which advance survives.
	doc, err := s.store.Get(ctx, msg.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load conversation: %w", err)
	}

	// A provider retry re-delivers a message that was already answered.
	// Replay the stored reply: no transcription, routing, or completion
	// call happens twice for one message id.
	if prior, ok := doc.Message(conversation.ReplyID(msg.MessageID)); ok {
		s.logger.Debug("replaying stored reply for re-delivered message",
			slog.String("user_id", msg.UserID),
			slog.String("message_id", msg.MessageID))
		return Outcome{ReplyText: prior.Text, Voice: msg.Voice}, nil
	}

	if msg.Voice && msg.Text == "" {
		text, ok := s.transcribe(ctx, msg)
		if !ok {
			return Outcome{ReplyText: chat.ApologyBilingual, Voice: true}, nil
		}
		msg.Text = text
	}

	step := doc.Profile.OnboardingStep

	kind := conversation.KindOnboarding
	if step == conversation.StepDone {
		kind = conversation.KindChat
	}

	doc, err = s.store.UpsertMessage(ctx, msg.UserID, conversation.Message{
		ID:        msg.MessageID,
		Role:      conversation.RoleUser,
		Text:      msg.Text,
		Kind:      kind,
		Transport: msg.Channel.String(),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record inbound: %w", err)
	}

	var reply string
	if step != conversation.StepDone {
		decision := onboarding.Advance(step, msg.Text)
		if decision.Advanced() {
			if _, err := s.store.UpdateProfile(ctx, msg.UserID, decision.Patch); err != nil {
				return Outcome{}, fmt.Errorf("advance onboarding: %w", err)
			}
		}
		reply = decision.Reply
	} else {
		reply = s.router.Route(ctx, msg.Text, doc.RecentChat(chat.ContextWindow))
	}

	if _, err := s.store.UpsertMessage(ctx, msg.UserID, conversation.Message{
		ID:        conversation.ReplyID(msg.MessageID),
		Role:      conversation.RoleAssistant,
		Text:      reply,
		Kind:      kind,
		Transport: msg.Channel.String(),
	}); err != nil {
		return Outcome{}, fmt.Errorf("record reply: %w", err)
	}

	return Outcome{ReplyText: reply, Voice: msg.Voice}, nil
}

func (s *Service) transcribe(ctx context.Context, msg channel.InboundMessage) (string, bool) {
	if s.transcriber == nil || !s.transcriber.Enabled() || msg.MediaURL == "" {
		return "", false
	}
	text, err := s.transcriber.TranscribeURL(ctx, msg.MediaURL, "")
	if err != nil {
		s.logger.Warn("transcription failed",
			slog.String("user_id", msg.UserID),
			slog.Any("error", err))
		return "", false
	}
	if text == "" {
		return "", false
	}
	return text, true
}

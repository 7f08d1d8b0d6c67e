package inbound_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakimhealth/hakim/internal/channel"
	"github.com/hakimhealth/hakim/internal/chat"
	"github.com/hakimhealth/hakim/internal/conversation"
	"github.com/hakimhealth/hakim/internal/inbound"
	"github.com/hakimhealth/hakim/internal/onboarding"
)

// memStore is an in-memory stand-in honoring the store's merge semantics.
type memStore struct {
	docs map[string]conversation.Document
	err  error
	next int64
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]conversation.Document)}
}

func (m *memStore) get(userID string) conversation.Document {
	doc, ok := m.docs[userID]
	if !ok {
		doc = conversation.NewDocument(userID, time.Now())
		m.docs[userID] = doc
	}
	return doc
}

func (m *memStore) Get(_ context.Context, userID string) (conversation.Document, error) {
	if m.err != nil {
		return conversation.Document{}, m.err
	}
	return m.get(userID), nil
}

func (m *memStore) UpsertMessage(_ context.Context, userID string, msg conversation.Message) (conversation.Document, error) {
	if m.err != nil {
		return conversation.Document{}, m.err
	}
	doc := m.get(userID)
	replaced := false
	for i, existing := range doc.Messages {
		if existing.ID == msg.ID {
			if msg.Timestamp == 0 {
				msg.Timestamp = existing.Timestamp
			}
			doc.Messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		if msg.Timestamp == 0 {
			m.next++
			msg.Timestamp = m.next
		}
		doc.Messages = append(doc.Messages, msg)
	}
	sort.SliceStable(doc.Messages, func(i, j int) bool {
		return doc.Messages[i].Timestamp < doc.Messages[j].Timestamp
	})
	m.docs[userID] = doc
	return doc, nil
}

func (m *memStore) UpdateProfile(_ context.Context, userID string, patch conversation.ProfilePatch) (conversation.Document, error) {
	if m.err != nil {
		return conversation.Document{}, m.err
	}
	doc := m.get(userID)
	if patch.Step != "" && doc.Profile.OnboardingStep.Before(patch.Step) {
		doc.Profile.OnboardingStep = patch.Step
	}
	if patch.Gender != "" {
		doc.Profile.Gender = patch.Gender
	}
	if patch.Location != "" {
		doc.Profile.Location = patch.Location
	}
	if patch.Age != 0 {
		doc.Profile.Age = patch.Age
	}
	m.docs[userID] = doc
	return doc, nil
}

type fakeRouter struct {
	reply   string
	calls   int
	history []conversation.Message
	text    string
}

func (f *fakeRouter) Route(_ context.Context, inboundText string, history []conversation.Message) string {
	f.calls++
	f.text = inboundText
	f.history = history
	return f.reply
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Enabled() bool { return true }
func (f *fakeTranscriber) TranscribeURL(context.Context, string, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func inboundText(userID, id, text string) channel.InboundMessage {
	return channel.InboundMessage{
		Channel:   channel.TypeUltraMsg,
		UserID:    userID,
		Text:      text,
		MessageID: id,
		Address:   userID + "@c.us",
	}
}

func TestProcess_FreshUserGetsGenderPrompt(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	router := &fakeRouter{reply: "unused"}
	svc := inbound.NewService(nil, store, router, nil)

	out, err := svc.Process(context.Background(), inboundText("96170123456", "m1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, onboarding.GenderPrompt, out.ReplyText)
	assert.Zero(t, router.calls)

	doc := store.docs["96170123456"]
	assert.Equal(t, conversation.StepGender, doc.Profile.OnboardingStep)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "m1", doc.Messages[0].ID)
	assert.Equal(t, conversation.RoleUser, doc.Messages[0].Role)
	assert.Equal(t, "re-m1", doc.Messages[1].ID)
	assert.Equal(t, conversation.RoleAssistant, doc.Messages[1].Role)
	assert.Equal(t, conversation.KindOnboarding, doc.Messages[0].Kind)
}

func TestProcess_LocationStepAdvances(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	doc := conversation.NewDocument("96170123456", time.Now())
	doc.Profile.OnboardingStep = conversation.StepLocation
	doc.Profile.Gender = "female"
	store.docs["96170123456"] = doc
	svc := inbound.NewService(nil, store, &fakeRouter{}, nil)

	out, err := svc.Process(context.Background(), inboundText("96170123456", "m2", "3"))
	require.NoError(t, err)
	assert.Equal(t, onboarding.AgePrompt, out.ReplyText)

	got := store.docs["96170123456"].Profile
	assert.Equal(t, "akkar", got.Location)
	assert.Equal(t, conversation.StepAge, got.OnboardingStep)
}

func TestProcess_InvalidInputSelfLoops(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	svc := inbound.NewService(nil, store, &fakeRouter{}, nil)

	for i, id := range []string{"a", "b", "c"} {
		out, err := svc.Process(context.Background(), inboundText("961", id, "nonsense"))
		require.NoError(t, err)
		assert.Equal(t, onboarding.GenderPrompt, out.ReplyText, "attempt %d", i)
	}
	assert.Equal(t, conversation.StepGender, store.docs["961"].Profile.OnboardingStep)
	assert.Len(t, store.docs["961"].Messages, 6)
}

func TestProcess_DoneUserRoutedToChat(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	doc := conversation.NewDocument("961", time.Now())
	doc.Profile.OnboardingStep = conversation.StepDone
	store.docs["961"] = doc
	router := &fakeRouter{reply: "drink water."}
	svc := inbound.NewService(nil, store, router, nil)

	out, err := svc.Process(context.Background(), inboundText("961", "m9", "how much water"))
	require.NoError(t, err)
	assert.Equal(t, "drink water.", out.ReplyText)
	assert.Equal(t, 1, router.calls)
	assert.Equal(t, "how much water", router.text)

	msgs := store.docs["961"].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.KindChat, msgs[0].Kind)
	assert.Equal(t, conversation.KindChat, msgs[1].Kind)
}

func TestProcess_OnboardingExcludedFromRouterHistory(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	router := &fakeRouter{reply: "ok."}
	svc := inbound.NewService(nil, store, router, nil)

	// Walk a user through onboarding, then chat.
	user := "96170123456"
	for _, step := range []struct{ id, text string }{
		{"m1", "hi"}, {"m2", "1"}, {"m3", "3"}, {"m4", "25"},
	} {
		_, err := svc.Process(context.Background(), inboundText(user, step.id, step.text))
		require.NoError(t, err)
	}
	require.Equal(t, conversation.StepDone, store.docs[user].Profile.OnboardingStep)

	_, err := svc.Process(context.Background(), inboundText(user, "m5", "what is diabetes"))
	require.NoError(t, err)

	// Only the chat-kind inbound itself is in the window; the eight
	// onboarding entries never reach the router.
	require.Len(t, router.history, 1)
	assert.Equal(t, "m5", router.history[0].ID)
}

func TestProcess_DuplicateDeliveryIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	doc := conversation.NewDocument("961", time.Now())
	doc.Profile.OnboardingStep = conversation.StepDone
	store.docs["961"] = doc
	router := &fakeRouter{reply: "answer."}
	svc := inbound.NewService(nil, store, router, nil)

	msg := inboundText("961", "dup-1", "question")
	first, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)

	msgs := store.docs["961"].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "dup-1", msgs[0].ID)
	assert.Equal(t, "re-dup-1", msgs[1].ID)

	// The retry replays the stored reply; generation runs once.
	assert.Equal(t, 1, router.calls)
	assert.Equal(t, first.ReplyText, second.ReplyText)
}

func TestProcess_DuplicateVoiceDeliveryNotRetranscribed(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	doc := conversation.NewDocument("961", time.Now())
	doc.Profile.OnboardingStep = conversation.StepDone
	store.docs["961"] = doc
	router := &fakeRouter{reply: "spoken answer."}
	transcriber := &fakeTranscriber{text: "what is asthma"}
	svc := inbound.NewService(nil, store, router, transcriber)

	msg := channel.InboundMessage{
		Channel:   channel.TypeUltraMsg,
		UserID:    "961",
		MessageID: "v3",
		MediaURL:  "https://media.example/a.ogg",
		Voice:     true,
	}
	_, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)
	out, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "spoken answer.", out.ReplyText)
	assert.True(t, out.Voice)
	assert.Equal(t, 1, transcriber.calls)
	assert.Equal(t, 1, router.calls)
}

func TestProcess_DuplicateOnboardingDeliveryReplaysPrompt(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	router := &fakeRouter{}
	svc := inbound.NewService(nil, store, router, nil)

	msg := inboundText("961", "g1", "1")
	_, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, conversation.StepLocation, store.docs["961"].Profile.OnboardingStep)

	out, err := svc.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, onboarding.LocationPrompt, out.ReplyText)
	assert.Equal(t, conversation.StepLocation, store.docs["961"].Profile.OnboardingStep)
	assert.Len(t, store.docs["961"].Messages, 2)
}

func TestProcess_VoiceNoteTranscribed(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	doc := conversation.NewDocument("961", time.Now())
	doc.Profile.OnboardingStep = conversation.StepDone
	store.docs["961"] = doc
	router := &fakeRouter{reply: "spoken answer."}
	svc := inbound.NewService(nil, store, router, &fakeTranscriber{text: "what is asthma"})

	out, err := svc.Process(context.Background(), channel.InboundMessage{
		Channel:   channel.TypeUltraMsg,
		UserID:    "961",
		MessageID: "v1",
		MediaURL:  "https://media.example/a.ogg",
		Voice:     true,
	})
	require.NoError(t, err)
	assert.True(t, out.Voice)
	assert.Equal(t, "spoken answer.", out.ReplyText)
	assert.Equal(t, "what is asthma", router.text)
	assert.Equal(t, "what is asthma", store.docs["961"].Messages[0].Text)
}

func TestProcess_TranscriptionFailureYieldsApology(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	svc := inbound.NewService(nil, store, &fakeRouter{}, &fakeTranscriber{err: errors.New("down")})

	out, err := svc.Process(context.Background(), channel.InboundMessage{
		Channel:   channel.TypeUltraMsg,
		UserID:    "961",
		MessageID: "v2",
		MediaURL:  "https://media.example/a.ogg",
		Voice:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, chat.ApologyBilingual, out.ReplyText)
	assert.Empty(t, store.docs["961"].Messages)
}

func TestProcess_StoreErrorSurfaces(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.err = errors.New("store unreachable")
	svc := inbound.NewService(nil, store, &fakeRouter{}, nil)

	_, err := svc.Process(context.Background(), inboundText("961", "m1", "hi"))
	require.Error(t, err)
}

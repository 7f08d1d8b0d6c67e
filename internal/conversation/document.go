package conversation

import (
	"sort"
	"time"
)

// MaxMessages caps the transcript length; eviction drops the oldest entries.
const MaxMessages = 500

// NewDocument creates an empty document for a user at the first onboarding step.
func NewDocument(userID string, now time.Time) Document {
	return Document{
		Profile: Profile{
			UserID:         userID,
			OnboardingStep: StepGender,
			CreatedAt:      now.UTC(),
			UpdatedAt:      now.UTC(),
		},
	}
}

// applyUpsert merges msg into the transcript: an entry with the same id is
// replaced in place, keeping its original timestamp when the incoming write
// carries none; otherwise the message is appended with a timestamp strictly
// greater than every existing one. The transcript is re-sorted and capped.
func applyUpsert(doc *Document, msg Message, now time.Time) {
	for i, existing := range doc.Messages {
		if existing.ID == msg.ID {
			if msg.Timestamp == 0 {
				msg.Timestamp = existing.Timestamp
			}
			doc.Messages[i] = msg
			sortAndCap(doc)
			return
		}
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = nextTimestamp(doc.Messages, now)
	}
	doc.Messages = append(doc.Messages, msg)
	sortAndCap(doc)
}

// applyPatch merges non-zero patch fields into the profile. Intake answers
// are written once; a later patch never overwrites a set value. The step
// only moves forward: a stale patch computed from an old read cannot drag
// the progression back.
func applyPatch(doc *Document, patch ProfilePatch, now time.Time) {
	if patch.Step != "" && doc.Profile.OnboardingStep.Before(patch.Step) {
		doc.Profile.OnboardingStep = patch.Step
	}
	if patch.Gender != "" && doc.Profile.Gender == "" {
		doc.Profile.Gender = patch.Gender
	}
	if patch.Location != "" && doc.Profile.Location == "" {
		doc.Profile.Location = patch.Location
	}
	if patch.Age != 0 && doc.Profile.Age == 0 {
		doc.Profile.Age = patch.Age
	}
	doc.Profile.UpdatedAt = now.UTC()
}

func nextTimestamp(messages []Message, now time.Time) int64 {
	ts := now.UnixMilli()
	for _, m := range messages {
		if m.Timestamp >= ts {
			ts = m.Timestamp + 1
		}
	}
	return ts
}

func sortAndCap(doc *Document) {
	sort.SliceStable(doc.Messages, func(i, j int) bool {
		return doc.Messages[i].Timestamp < doc.Messages[j].Timestamp
	})
	if len(doc.Messages) > MaxMessages {
		doc.Messages = doc.Messages[len(doc.Messages)-MaxMessages:]
	}
}

// Message returns the transcript entry with the given id.
func (d Document) Message(id string) (Message, bool) {
	for _, m := range d.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// RecentChat returns the most recent chat-kind entries, oldest first,
// skipping onboarding exchanges.
func (d Document) RecentChat(limit int) []Message {
	chat := make([]Message, 0, limit)
	for _, m := range d.Messages {
		if m.Kind == KindChat {
			chat = append(chat, m)
		}
	}
	if limit > 0 && len(chat) > limit {
		chat = chat[len(chat)-limit:]
	}
	return chat
}

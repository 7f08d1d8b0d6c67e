package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestApplyUpsert_AppendAssignsMonotonicTimestamps(t *testing.T) {
	t.Parallel()
	doc := NewDocument("96170123456", testNow)

	applyUpsert(&doc, Message{ID: "m1", Role: RoleUser, Text: "hello", Kind: KindChat}, testNow)
	applyUpsert(&doc, Message{ID: "m2", Role: RoleAssistant, Text: "hi", Kind: KindChat}, testNow)

	require.Len(t, doc.Messages, 2)
	assert.Less(t, doc.Messages[0].Timestamp, doc.Messages[1].Timestamp)
	assert.Equal(t, "m1", doc.Messages[0].ID)
	assert.Equal(t, "m2", doc.Messages[1].ID)
}

func TestApplyUpsert_Idempotent(t *testing.T) {
	t.Parallel()
	doc := NewDocument("96170123456", testNow)

	applyUpsert(&doc, Message{ID: "m1", Role: RoleUser, Text: "first", Kind: KindChat}, testNow)
	originalTS := doc.Messages[0].Timestamp

	// Re-delivery with the same id replaces in place, keeps the timestamp,
	// and reflects the last write's content.
	applyUpsert(&doc, Message{ID: "m1", Role: RoleUser, Text: "retried", Kind: KindChat}, testNow.Add(time.Minute))

	require.Len(t, doc.Messages, 1)
	assert.Equal(t, "retried", doc.Messages[0].Text)
	assert.Equal(t, originalTS, doc.Messages[0].Timestamp)
}

func TestApplyUpsert_ReplaceWithExplicitTimestampResorts(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	applyUpsert(&doc, Message{ID: "a", Timestamp: 100, Role: RoleUser, Kind: KindChat}, testNow)
	applyUpsert(&doc, Message{ID: "b", Timestamp: 200, Role: RoleUser, Kind: KindChat}, testNow)

	applyUpsert(&doc, Message{ID: "a", Timestamp: 300, Role: RoleUser, Kind: KindChat}, testNow)

	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "b", doc.Messages[0].ID)
	assert.Equal(t, "a", doc.Messages[1].ID)
}

func TestApplyUpsert_CapEvictsOldest(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	for i := 0; i < MaxMessages+10; i++ {
		applyUpsert(&doc, Message{
			ID:        fmt.Sprintf("m%d", i),
			Timestamp: int64(i + 1),
			Role:      RoleUser,
			Kind:      KindChat,
		}, testNow)
	}

	require.Len(t, doc.Messages, MaxMessages)
	assert.Equal(t, "m10", doc.Messages[0].ID)
	assert.Equal(t, fmt.Sprintf("m%d", MaxMessages+9), doc.Messages[MaxMessages-1].ID)
}

func TestApplyPatch_SetOnce(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)

	applyPatch(&doc, ProfilePatch{Step: StepLocation, Gender: "female"}, testNow)
	assert.Equal(t, StepLocation, doc.Profile.OnboardingStep)
	assert.Equal(t, "female", doc.Profile.Gender)

	// A later patch never overwrites an intake answer already set.
	applyPatch(&doc, ProfilePatch{Gender: "male"}, testNow)
	assert.Equal(t, "female", doc.Profile.Gender)
}

func TestApplyPatch_StepNeverRegresses(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	doc.Profile.OnboardingStep = StepAge

	// A stale writer that read an old step cannot drag the progression back.
	applyPatch(&doc, ProfilePatch{Step: StepLocation, Location: "beirut"}, testNow)
	assert.Equal(t, StepAge, doc.Profile.OnboardingStep)
	assert.Equal(t, "beirut", doc.Profile.Location)

	applyPatch(&doc, ProfilePatch{Step: StepDone, Age: 25}, testNow)
	assert.Equal(t, StepDone, doc.Profile.OnboardingStep)

	// Done is terminal.
	applyPatch(&doc, ProfilePatch{Step: StepGender}, testNow)
	assert.Equal(t, StepDone, doc.Profile.OnboardingStep)
}

func TestDocumentMessage_Lookup(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	applyUpsert(&doc, Message{ID: "m1", Role: RoleUser, Text: "q", Kind: KindChat}, testNow)
	applyUpsert(&doc, Message{ID: ReplyID("m1"), Role: RoleAssistant, Text: "a", Kind: KindChat}, testNow)

	reply, ok := doc.Message(ReplyID("m1"))
	require.True(t, ok)
	assert.Equal(t, "a", reply.Text)

	_, ok = doc.Message("missing")
	assert.False(t, ok)
}

func TestRecentChat_ExcludesOnboarding(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	applyUpsert(&doc, Message{ID: "o1", Timestamp: 1, Role: RoleUser, Text: "1", Kind: KindOnboarding}, testNow)
	applyUpsert(&doc, Message{ID: "o2", Timestamp: 2, Role: RoleAssistant, Text: "prompt", Kind: KindOnboarding}, testNow)
	applyUpsert(&doc, Message{ID: "c1", Timestamp: 3, Role: RoleUser, Text: "question", Kind: KindChat}, testNow)
	applyUpsert(&doc, Message{ID: "c2", Timestamp: 4, Role: RoleAssistant, Text: "answer", Kind: KindChat}, testNow)

	chat := doc.RecentChat(10)
	require.Len(t, chat, 2)
	assert.Equal(t, "c1", chat[0].ID)
	assert.Equal(t, "c2", chat[1].ID)
}

func TestRecentChat_LimitKeepsNewest(t *testing.T) {
	t.Parallel()
	doc := NewDocument("u", testNow)
	for i := 0; i < 30; i++ {
		applyUpsert(&doc, Message{
			ID:        fmt.Sprintf("c%d", i),
			Timestamp: int64(i + 1),
			Role:      RoleUser,
			Kind:      KindChat,
		}, testNow)
	}

	chat := doc.RecentChat(20)
	require.Len(t, chat, 20)
	assert.Equal(t, "c10", chat[0].ID)
	assert.Equal(t, "c29", chat[19].ID)
}

func TestReplyID_Deterministic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "re-SM123", ReplyID("SM123"))
	assert.Equal(t, ReplyID("x"), ReplyID("x"))
}

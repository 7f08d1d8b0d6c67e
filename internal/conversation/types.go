// Package conversation defines the per-user conversation document and its
// transactional store: one profile plus an ordered, deduplicated transcript.
package conversation

import "time"

// Step is an onboarding progress marker. Progression is forward-only:
// gender -> location -> age -> done. Done is terminal.
type Step string

const (
	StepGender   Step = "gender"
	StepLocation Step = "location"
	StepAge      Step = "age"
	StepDone     Step = "done"
)

// stepOrder fixes each step's position in the progression.
var stepOrder = map[Step]int{
	StepGender:   0,
	StepLocation: 1,
	StepAge:      2,
	StepDone:     3,
}

// Before reports whether s comes strictly earlier than other in the
// onboarding progression.
func (s Step) Before(other Step) bool {
	return stepOrder[s] < stepOrder[other]
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind classifies a transcript entry. Onboarding entries are excluded from
// the context window handed to text generation.
type Kind string

const (
	KindOnboarding Kind = "onboarding"
	KindChat       Kind = "chat"
)

// Profile holds the per-user intake answers and onboarding progress.
type Profile struct {
	UserID         string    `json:"user_id"`
	OnboardingStep Step      `json:"onboarding_step"`
	Gender         string    `json:"gender,omitempty"`
	Location       string    `json:"location,omitempty"`
	Age            int       `json:"age,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfilePatch carries profile fields to merge. Zero values are skipped.
type ProfilePatch struct {
	Step     Step   `json:"step,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
	Age      int    `json:"age,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p ProfilePatch) IsZero() bool {
	return p.Step == "" && p.Gender == "" && p.Location == "" && p.Age == 0
}

// Message is a single transcript entry. Timestamp is a logical ordering key
// in unix milliseconds, assigned by the store at write time when zero.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Kind      Kind   `json:"kind"`
	Transport string `json:"transport,omitempty"`
}

// Document is the full persisted state for one user.
type Document struct {
	Profile  Profile   `json:"profile"`
	Messages []Message `json:"messages"`
}

// ReplyID derives the transcript id for the assistant reply paired with an
// inbound message, so reprocessing the same delivery targets the same entry.
func ReplyID(inboundID string) string {
	return "re-" + inboundID
}

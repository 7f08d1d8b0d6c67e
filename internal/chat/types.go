// Package chat produces free-conversation replies: a canned greeting for
// small talk, or a bounded-context call to an OpenAI-compatible completion
// service for everything else.
package chat

import "context"

// Message is a single role-tagged message sent to the completion service.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request carries one stateless completion call. All conversational memory
// is supplied explicitly through Messages.
type Request struct {
	System   string
	Language string
	Messages []Message
}

// Completer is the text-generation collaborator boundary.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

package chat

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/hakimhealth/hakim/internal/conversation"
)

const (
	// ContextWindow bounds how many chat-kind transcript entries are handed
	// to the completion service.
	ContextWindow = 20

	// maxSentences bounds reply length unless the user asked to elaborate.
	maxSentences = 4
)

// greetingPhrases short-circuit to the canned greeting. Single words match
// exactly; multi-word phrases also match as substrings.
var greetingPhrases = []string{
	"hi", "hello", "hey", "good morning", "good evening",
	"مرحبا", "مرحباً", "اهلا", "أهلا", "أهلاً", "هاي", "سلام", "السلام عليكم",
}

// elaborationKeywords disable truncation when present in the inbound text.
var elaborationKeywords = []string{
	"explain", "elaborate", "detail", "details", "more information", "tell me more",
	"اشرح", "إشرح", "تفاصيل", "بالتفصيل", "وضح", "أكثر", "اكثر",
}

// formattingReplacer strips characters reserved for rich-text rendering.
var formattingReplacer = strings.NewReplacer("*", "", "_", "", "~", "", "`", "", "#", "")

// Router decides the free-conversation reply once onboarding is complete.
// It never writes to the store; the caller persists both sides.
type Router struct {
	completer Completer
	logger    *slog.Logger
}

// NewRouter creates a reply router over the given completion collaborator.
func NewRouter(log *slog.Logger, completer Completer) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		completer: completer,
		logger:    log.With(slog.String("service", "router")),
	}
}

// Route returns the reply for inboundText given the recent chat history
// (oldest first, chat-kind only). Collaborator failure is contained here:
// the user gets a fixed apology in their detected language, never an error.
func (r *Router) Route(ctx context.Context, inboundText string, history []conversation.Message) string {
	if IsGreeting(inboundText) {
		return GreetingReply
	}

	lang := DetectLanguage(inboundText)

	if len(history) > ContextWindow {
		history = history[len(history)-ContextWindow:]
	}
	messages := make([]Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, Message{Role: string(m.Role), Content: m.Text})
	}
	// Appended even if already in the window; duplication is safe, omission is not.
	messages = append(messages, Message{Role: "user", Content: inboundText})

	text, err := r.completer.Complete(ctx, Request{
		System:   SystemPrompt,
		Language: LanguageDirective(lang),
		Messages: messages,
	})
	if err != nil {
		r.logger.Warn("completion failed, sending apology", slog.Any("error", err))
		return Apology(lang)
	}

	text = formattingReplacer.Replace(text)
	if !wantsElaboration(inboundText) {
		text = TruncateSentences(text, maxSentences)
	}
	return strings.TrimSpace(text)
}

// IsGreeting reports whether text is trivial small talk.
func IsGreeting(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimFunc(normalized, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if normalized == "" {
		return false
	}
	for _, phrase := range greetingPhrases {
		if normalized == phrase {
			return true
		}
		if strings.Contains(phrase, " ") && strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func wantsElaboration(text string) bool {
	normalized := strings.ToLower(text)
	for _, kw := range elaborationKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// TruncateSentences keeps the first max sentences. A sentence ends at '.',
// '!', or the Arabic question mark followed by whitespace or end of text.
func TruncateSentences(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '؟' {
			continue
		}
		atEnd := i == len(runes)-1
		if !atEnd && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		count++
		if count == max && !atEnd {
			return strings.TrimSpace(string(runes[:i+1]))
		}
	}
	return text
}

package chat

// SystemPrompt frames the assistant for the completion service. The service
// is asked to avoid rich-text markers; the router strips them anyway.
const SystemPrompt = `You are a friendly health-information assistant serving users in Lebanon over WhatsApp and a web chat.

Your scope: general health information only - nutrition, medication basics, chronic conditions, maternal and child health, mental wellbeing, and where to find local health services.

Guidelines:
- Keep answers short and simple, suitable for a phone screen.
- Use plain text only. Never use formatting characters such as *, _, ~, backticks, or #.
- You are not a doctor. For anything urgent or serious, advise seeing a health professional.
- Never invent facts. If unsure, say so.`

// LanguageDirective returns the system instruction pinning the reply language.
func LanguageDirective(lang string) string {
	if lang == LangArabic {
		return "Respond in Arabic."
	}
	return "Respond in English."
}

// GreetingReply is the canned answer for small-talk openers. It restates the
// supported topics so trivial greetings never cost a completion call.
const GreetingReply = `Hello! I am your health assistant. You can ask me about nutrition, medication, chronic conditions, mental wellbeing, and local health services.

أهلاً! أنا مساعدك الصحي. يمكنك سؤالي عن التغذية، الأدوية، الأمراض المزمنة، الصحة النفسية، والخدمات الصحية المحلية.`

// ApologyBilingual is the fallback when the user's language is unknown,
// for example when a voice note could not be transcribed.
const ApologyBilingual = `Sorry, something went wrong. Please try again in a moment.

عذراً، حدث خطأ ما. الرجاء المحاولة مرة أخرى بعد قليل.`

// Apology returns the fixed fallback sent when a collaborator fails.
func Apology(lang string) string {
	if lang == LangArabic {
		return "عذراً، حدث خطأ ما. الرجاء المحاولة مرة أخرى بعد قليل."
	}
	return "Sorry, something went wrong. Please try again in a moment."
}

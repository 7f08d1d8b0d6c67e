package chat

// Language codes used for directives and fallback replies.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// DetectLanguage classifies text as Arabic when it contains any rune from
// the Arabic block, English otherwise. Mixed input leans Arabic so the reply
// matches the script the user typed in.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return LangArabic
		}
	}
	return LangEnglish
}

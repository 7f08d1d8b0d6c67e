package onboarding

// Intake prompts are bilingual so the flow works regardless of the user's
// language. Invalid input re-emits the same prompt; the flow never dead-ends.

const GenderPrompt = `Welcome! Before we start, I have three quick questions.
What is your gender?
1. Female
2. Male

أهلاً بك! قبل أن نبدأ، لدي ثلاثة أسئلة سريعة.
ما هو جنسك؟
١. أنثى
٢. ذكر`

const LocationPrompt = `Where do you live?
1. Beirut
2. Tripoli
3. Akkar
4. Bekaa
5. Saida

أين تسكن؟
١. بيروت
٢. طرابلس
٣. عكار
٤. البقاع
٥. صيدا`

const AgePrompt = `How old are you? Please reply with a number between 8 and 80.

كم عمرك؟ الرجاء الإجابة برقم بين ٨ و ٨٠`

const CompletePrompt = `Thank you! You can now ask me anything about your health: nutrition, medication, chronic conditions, mental wellbeing, and more.

شكراً لك! يمكنك الآن سؤالي عن أي موضوع صحي: التغذية، الأدوية، الأمراض المزمنة، الصحة النفسية، وغيرها.`

package onboarding

import (
	"strconv"
	"strings"

	"github.com/hakimhealth/hakim/internal/conversation"
)

const (
	minAge = 8
	maxAge = 80
)

// Decision is the outcome of feeding one inbound text into the intake flow.
type Decision struct {
	Next  conversation.Step
	Patch conversation.ProfilePatch
	Reply string
}

// Advanced reports whether the decision moves the flow forward.
func (d Decision) Advanced() bool {
	return !d.Patch.IsZero()
}

// locationOptions is the fixed enumeration offered at the location step,
// in menu order: option "1" selects the first entry.
var locationOptions = []struct {
	value  string
	tokens []string
}{
	{"beirut", []string{"beirut", "بيروت"}},
	{"tripoli", []string{"tripoli", "طرابلس"}},
	{"akkar", []string{"akkar", "عكار"}},
	{"bekaa", []string{"bekaa", "beqaa", "البقاع", "بقاع"}},
	{"saida", []string{"saida", "sidon", "صيدا"}},
}

// Advance maps (current step, raw input) to the next step, the profile patch
// to apply, and the reply to send. Invalid input self-loops and re-asks the
// same question. StepDone is absorbing: the caller routes done-profile input
// to free conversation instead.
func Advance(step conversation.Step, rawText string) Decision {
	input := normalize(rawText)

	switch step {
	case conversation.StepGender:
		gender, ok := matchGender(input)
		if !ok {
			return Decision{Next: conversation.StepGender, Reply: GenderPrompt}
		}
		return Decision{
			Next:  conversation.StepLocation,
			Patch: conversation.ProfilePatch{Step: conversation.StepLocation, Gender: gender},
			Reply: LocationPrompt,
		}

	case conversation.StepLocation:
		location, ok := matchLocation(input)
		if !ok {
			return Decision{Next: conversation.StepLocation, Reply: LocationPrompt}
		}
		return Decision{
			Next:  conversation.StepAge,
			Patch: conversation.ProfilePatch{Step: conversation.StepAge, Location: location},
			Reply: AgePrompt,
		}

	case conversation.StepAge:
		age, ok := matchAge(input)
		if !ok {
			return Decision{Next: conversation.StepAge, Reply: AgePrompt}
		}
		return Decision{
			Next:  conversation.StepDone,
			Patch: conversation.ProfilePatch{Step: conversation.StepDone, Age: age},
			Reply: CompletePrompt,
		}
	}

	return Decision{Next: conversation.StepDone}
}

func matchGender(input string) (string, bool) {
	switch input {
	case "1", "female", "f", "انثى", "أنثى":
		return "female", true
	case "2", "male", "m", "ذكر":
		return "male", true
	}
	return "", false
}

func matchLocation(input string) (string, bool) {
	for i, opt := range locationOptions {
		if input == strconv.Itoa(i+1) {
			return opt.value, true
		}
		for _, token := range opt.tokens {
			if input == token {
				return opt.value, true
			}
		}
	}
	return "", false
}

func matchAge(input string) (int, bool) {
	age, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, false
	}
	if age < minAge || age > maxAge {
		return 0, false
	}
	return age, true
}

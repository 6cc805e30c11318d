package itinerary

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const systemPrompt = "You are a travel planning assistant. Respond with a single JSON object only. " +
	"No prose, no markdown, no code fences."

const structuralExample = `{"itinerary":[{"day":1,"theme":"Historic center","activities":[` +
	`{"time":"Morning","description":"Guided walking tour of the old town","location":"Alfama"},` +
	`{"time":"Afternoon","description":"Visit the hilltop castle","location":"Castelo de Sao Jorge"},` +
	`{"time":"Evening","description":"Fado dinner show","location":"Bairro Alto"}]}]}`

// buildUserPrompt produces the parametrized instruction: one themed day per
// requested day, three time-slotted activities each, with an embedded
// structural example the model must follow.
func buildUserPrompt(destination string, durationDays int) string {
	titled := cases.Title(language.Und).String(strings.TrimSpace(destination))
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Create a %d-day travel itinerary for %s. ", durationDays, titled)
	fmt.Fprintf(sb, "Return a JSON object with an \"itinerary\" array containing exactly %d entries, one per day. ", durationDays)
	sb.WriteString("Each day needs a distinct theme and exactly three activities, one for each time slot: Morning, Afternoon, Evening. ")
	sb.WriteString("Every activity needs a non-empty description and a specific location. ")
	sb.WriteString("Follow this structure exactly: ")
	sb.WriteString(structuralExample)
	return sb.String()
}

package itinerary

import (
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
)

type itineraryPayload struct {
	Itinerary []dayPayload `json:"itinerary"`
}

type dayPayload struct {
	Day        int               `json:"day"`
	Theme      string            `json:"theme"`
	Activities []activityPayload `json:"activities"`
}

type activityPayload struct {
	Time        string `json:"time"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// parseItinerary runs the validation pipeline over raw completion text:
// JSON parse first (malformed output), then structural validation against
// the itinerary contract (schema violation). Only a fully valid payload is
// converted into domain days.
func parseItinerary(text string, wantDays int) ([]domain.Day, error) {
	cleaned := extractJSONFragment(text)
	if cleaned == "" || !json.Valid([]byte(cleaned)) {
		return nil, &GenerationError{Kind: KindMalformedOutput, Err: fmt.Errorf("completion is not valid JSON")}
	}

	var payload itineraryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &GenerationError{Kind: KindSchemaViolation, Err: fmt.Errorf("decode itinerary: %w", err)}
	}
	if err := validatePayload(payload, wantDays); err != nil {
		return nil, &GenerationError{Kind: KindSchemaViolation, Err: err}
	}

	days := make([]domain.Day, 0, len(payload.Itinerary))
	for _, d := range payload.Itinerary {
		day := domain.Day{Day: d.Day, Theme: strings.TrimSpace(d.Theme)}
		for _, a := range d.Activities {
			day.Activities = append(day.Activities, domain.Activity{
				Time:        a.Time,
				Description: strings.TrimSpace(a.Description),
				Location:    strings.TrimSpace(a.Location),
			})
		}
		days = append(days, day)
	}
	return days, nil
}

func validatePayload(payload itineraryPayload, wantDays int) error {
	if len(payload.Itinerary) == 0 {
		return fmt.Errorf("itinerary array is missing or empty")
	}
	if len(payload.Itinerary) != wantDays {
		return fmt.Errorf("itinerary has %d days, want %d", len(payload.Itinerary), wantDays)
	}
	seen := make(map[int]struct{}, len(payload.Itinerary))
	for i, day := range payload.Itinerary {
		if day.Day < 1 {
			return fmt.Errorf("entry %d: day number %d is below 1", i, day.Day)
		}
		if _, dup := seen[day.Day]; dup {
			return fmt.Errorf("entry %d: duplicate day number %d", i, day.Day)
		}
		seen[day.Day] = struct{}{}
		if strings.TrimSpace(day.Theme) == "" {
			return fmt.Errorf("day %d: theme is empty", day.Day)
		}
		if len(day.Activities) != 3 {
			return fmt.Errorf("day %d: has %d activities, want exactly 3", day.Day, len(day.Activities))
		}
		for j, act := range day.Activities {
			if !domain.ValidSlot(act.Time) {
				return fmt.Errorf("day %d activity %d: time %q is not one of Morning/Afternoon/Evening", day.Day, j, act.Time)
			}
			if strings.TrimSpace(act.Description) == "" {
				return fmt.Errorf("day %d activity %d: description is empty", day.Day, j)
			}
			if strings.TrimSpace(act.Location) == "" {
				return fmt.Errorf("day %d activity %d: location is empty", day.Day, j)
			}
		}
	}
	return nil
}

// extractJSONFragment strips code fences and surrounding prose, keeping the
// outermost JSON object. Models occasionally wrap output despite the system
// instruction.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

package domain

import "time"

// Status enumerates job lifecycle states.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Time slots for activities within a day.
const (
	SlotMorning   = "Morning"
	SlotAfternoon = "Afternoon"
	SlotEvening   = "Evening"
)

// ValidSlot reports whether t is one of the three recognized time slots.
func ValidSlot(t string) bool {
	return t == SlotMorning || t == SlotAfternoon || t == SlotEvening
}

// Activity is a single time-slotted entry within a day.
type Activity struct {
	Time        string `json:"time"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Day is one themed day of an itinerary with exactly three activities.
type Day struct {
	Day        int        `json:"day"`
	Theme      string     `json:"theme"`
	Activities []Activity `json:"activities"`
}

// Job is the persisted lifecycle record of one itinerary request.
// Itinerary stays empty unless the job completed; Error stays empty
// unless it failed.
type Job struct {
	JobID        string     `json:"jobId"`
	Status       Status     `json:"status"`
	Destination  string     `json:"destination"`
	DurationDays int        `json:"durationDays"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	Itinerary    []Day      `json:"itinerary"`
	Error        string     `json:"error,omitempty"`
}

package firestore

import (
	"encoding/json"
	"strconv"
	"time"

	"server/internal/domain"
)

// value is Firestore's typed-field wrapper. Exactly one member is set.
// Integers travel as decimal strings on the wire.
type value struct {
	StringValue    *string         `json:"stringValue,omitempty"`
	IntegerValue   *string         `json:"integerValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	ArrayValue     *arrayValue     `json:"arrayValue,omitempty"`
	MapValue       *mapValue       `json:"mapValue,omitempty"`
}

type arrayValue struct {
	Values []value `json:"values,omitempty"`
}

type mapValue struct {
	Fields map[string]value `json:"fields,omitempty"`
}

// document is the store's native representation of one job record.
type document struct {
	Name   string           `json:"name,omitempty"`
	Fields map[string]value `json:"fields"`
}

func strVal(s string) value {
	return value{StringValue: &s}
}

func intVal(i int) value {
	s := strconv.Itoa(i)
	return value{IntegerValue: &s}
}

func tsVal(t time.Time) value {
	s := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &s}
}

func nullVal() value {
	return value{NullValue: json.RawMessage("null")}
}

func (v value) str() string {
	if v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

func (v value) integer() int {
	if v.IntegerValue == nil {
		return 0
	}
	i, err := strconv.Atoi(*v.IntegerValue)
	if err != nil {
		return 0
	}
	return i
}

func (v value) timestamp() (time.Time, bool) {
	if v.TimestampValue == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// encodeJob maps a job snapshot onto the store's wrapper representation.
// Absent completion data is written as explicit nulls so a read of a fresh
// job yields the same shape as a read of a terminal one.
func encodeJob(job domain.Job) map[string]value {
	fields := map[string]value{
		"jobId":        strVal(job.JobID),
		"status":       strVal(string(job.Status)),
		"destination":  strVal(job.Destination),
		"durationDays": intVal(job.DurationDays),
		"createdAt":    tsVal(job.CreatedAt),
		"itinerary":    encodeItinerary(job.Itinerary),
	}
	if job.CompletedAt != nil {
		fields["completedAt"] = tsVal(*job.CompletedAt)
	} else {
		fields["completedAt"] = nullVal()
	}
	if job.Error != "" {
		fields["error"] = strVal(job.Error)
	} else {
		fields["error"] = nullVal()
	}
	return fields
}

func encodeItinerary(days []domain.Day) value {
	arr := &arrayValue{}
	for _, day := range days {
		activities := &arrayValue{}
		for _, act := range day.Activities {
			activities.Values = append(activities.Values, value{MapValue: &mapValue{Fields: map[string]value{
				"time":        strVal(act.Time),
				"description": strVal(act.Description),
				"location":    strVal(act.Location),
			}}})
		}
		arr.Values = append(arr.Values, value{MapValue: &mapValue{Fields: map[string]value{
			"day":        intVal(day.Day),
			"theme":      strVal(day.Theme),
			"activities": value{ArrayValue: activities},
		}}})
	}
	return value{ArrayValue: arr}
}

// decodeJob reconstructs a job snapshot from a document, tolerating absent
// optional fields. Day order follows the stored array order.
func decodeJob(doc document) domain.Job {
	fields := doc.Fields
	job := domain.Job{
		JobID:        fields["jobId"].str(),
		Status:       domain.Status(fields["status"].str()),
		Destination:  fields["destination"].str(),
		DurationDays: fields["durationDays"].integer(),
		Error:        fields["error"].str(),
	}
	if t, ok := fields["createdAt"].timestamp(); ok {
		job.CreatedAt = t
	}
	if t, ok := fields["completedAt"].timestamp(); ok {
		job.CompletedAt = &t
	}
	job.Itinerary = decodeItinerary(fields["itinerary"])
	return job
}

func decodeItinerary(v value) []domain.Day {
	if v.ArrayValue == nil {
		return nil
	}
	var days []domain.Day
	for _, entry := range v.ArrayValue.Values {
		if entry.MapValue == nil {
			continue
		}
		fields := entry.MapValue.Fields
		day := domain.Day{
			Day:   fields["day"].integer(),
			Theme: fields["theme"].str(),
		}
		if acts := fields["activities"]; acts.ArrayValue != nil {
			for _, actEntry := range acts.ArrayValue.Values {
				if actEntry.MapValue == nil {
					continue
				}
				af := actEntry.MapValue.Fields
				day.Activities = append(day.Activities, domain.Activity{
					Time:        af["time"].str(),
					Description: af["description"].str(),
					Location:    af["location"].str(),
				})
			}
		}
		days = append(days, day)
	}
	return days
}

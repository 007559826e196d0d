package domain

import (
	"fmt"
)

// Field rules for classroom observation payloads. Save-time validation
// only type-checks fields that are present; completion validation also
// requires them, so an observation cannot complete half-filled.
var observationFields = []payloadField{
	{name: "teacher_name", kind: fieldString},
	{name: "grade", kind: fieldString},
	{name: "subject", kind: fieldString},
	{name: "students_present", kind: fieldCount},
	{name: "observations", kind: fieldString},
	{name: "rating", kind: fieldRating},
}

type fieldKind int

const (
	fieldString fieldKind = iota
	fieldCount
	fieldRating
)

type payloadField struct {
	name string
	kind fieldKind
}

// ValidateSave checks an action payload for storage. Fields are
// optional; present fields must have the right shape.
func ValidateSave(actionType ActionType, data map[string]any) map[string]string {
	errs := map[string]string{}

	switch actionType {
	case ActionClassroomObservation:
		for _, f := range observationFields {
			value, present := data[f.name]
			if !present {
				continue
			}
			if msg := checkField(f, value); msg != "" {
				errs[f.name] = msg
			}
		}
	default:
		// Discussion and meeting payloads carry free-form notes.
		if notes, present := data["notes"]; present {
			if _, ok := notes.(string); !ok {
				errs["notes"] = "notes must be a string"
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateCompletion checks an action payload against the completion
// criteria. Stricter than ValidateSave: for classroom observations
// every field must be present and well-formed.
func ValidateCompletion(actionType ActionType, data map[string]any) map[string]string {
	if actionType != ActionClassroomObservation {
		return ValidateSave(actionType, data)
	}

	errs := map[string]string{}
	for _, f := range observationFields {
		value, present := data[f.name]
		if !present {
			errs[f.name] = fmt.Sprintf("%s is required to complete a classroom observation", f.name)
			continue
		}
		if msg := checkField(f, value); msg != "" {
			errs[f.name] = msg
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkField(f payloadField, value any) string {
	switch f.kind {
	case fieldString:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string", f.name)
		}
		if s == "" {
			return fmt.Sprintf("%s must not be empty", f.name)
		}
	case fieldCount:
		n, ok := asNumber(value)
		if !ok || n < 0 || n != float64(int(n)) {
			return fmt.Sprintf("%s must be a non-negative whole number", f.name)
		}
	case fieldRating:
		n, ok := asNumber(value)
		if !ok || n < 1 || n > 5 || n != float64(int(n)) {
			return fmt.Sprintf("%s must be a whole number between 1 and 5", f.name)
		}
	}
	return ""
}

// asNumber accepts the numeric types a decoded JSON document can carry.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

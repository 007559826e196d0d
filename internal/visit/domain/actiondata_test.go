package domain

import (
	"testing"
)

func completeObservation() map[string]any {
	return map[string]any{
		"teacher_name":     "M. Petrova",
		"grade":            "5",
		"subject":          "mathematics",
		"students_present": 24,
		"observations":     "Strong engagement during group work.",
		"rating":           4,
	}
}

// TestValidateSaveObservation tests save-time checks on present fields
func TestValidateSaveObservation(t *testing.T) {
	t.Run("Empty payload is saveable", func(t *testing.T) {
		if errs := ValidateSave(ActionClassroomObservation, map[string]any{}); errs != nil {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("Partial payload is saveable", func(t *testing.T) {
		data := map[string]any{"teacher_name": "M. Petrova", "rating": 3}
		if errs := ValidateSave(ActionClassroomObservation, data); errs != nil {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("Present fields are type checked", func(t *testing.T) {
		data := map[string]any{
			"teacher_name":     42,
			"students_present": -1,
			"rating":           6,
		}
		errs := ValidateSave(ActionClassroomObservation, data)
		if errs == nil {
			t.Fatal("Expected errors for malformed fields")
		}
		for _, field := range []string{"teacher_name", "students_present", "rating"} {
			if errs[field] == "" {
				t.Errorf("Expected error for %s, got none", field)
			}
		}
	})

	t.Run("Fractional count rejected", func(t *testing.T) {
		// JSON decodes numbers as float64; 24.5 students is not a count.
		errs := ValidateSave(ActionClassroomObservation, map[string]any{"students_present": 24.5})
		if errs == nil || errs["students_present"] == "" {
			t.Error("Expected error for fractional students_present")
		}
	})

	t.Run("Whole float accepted", func(t *testing.T) {
		errs := ValidateSave(ActionClassroomObservation, map[string]any{"students_present": float64(24)})
		if errs != nil {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})
}

// TestValidateSaveOtherTypes tests free-form payloads
func TestValidateSaveOtherTypes(t *testing.T) {
	if errs := ValidateSave(ActionPrincipalMeeting, map[string]any{"notes": "met with principal"}); errs != nil {
		t.Errorf("Expected no errors, got %v", errs)
	}

	errs := ValidateSave(ActionPrincipalMeeting, map[string]any{"notes": 12})
	if errs == nil || errs["notes"] == "" {
		t.Error("Expected error for non-string notes")
	}
}

// TestValidateCompletionObservation tests the stricter completion ruleset
func TestValidateCompletionObservation(t *testing.T) {
	t.Run("Complete payload passes", func(t *testing.T) {
		if errs := ValidateCompletion(ActionClassroomObservation, completeObservation()); errs != nil {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("Each missing field is reported", func(t *testing.T) {
		errs := ValidateCompletion(ActionClassroomObservation, map[string]any{})
		if len(errs) != 6 {
			t.Errorf("Expected 6 missing-field errors, got %d: %v", len(errs), errs)
		}
	})

	t.Run("Single missing field blocks completion", func(t *testing.T) {
		data := completeObservation()
		delete(data, "rating")

		errs := ValidateCompletion(ActionClassroomObservation, data)
		if len(errs) != 1 || errs["rating"] == "" {
			t.Errorf("Expected only a rating error, got %v", errs)
		}
	})

	t.Run("Present but malformed field blocks completion", func(t *testing.T) {
		data := completeObservation()
		data["rating"] = 0

		errs := ValidateCompletion(ActionClassroomObservation, data)
		if errs == nil || errs["rating"] == "" {
			t.Error("Expected rating range error")
		}
	})

	t.Run("Empty string counts as missing content", func(t *testing.T) {
		data := completeObservation()
		data["observations"] = ""

		errs := ValidateCompletion(ActionClassroomObservation, data)
		if errs == nil || errs["observations"] == "" {
			t.Error("Expected error for empty observations")
		}
	})
}

// TestValidateCompletionOtherTypes tests that non-observation actions
// complete with any well-formed payload
func TestValidateCompletionOtherTypes(t *testing.T) {
	if errs := ValidateCompletion(ActionTeamStaffMeeting, map[string]any{}); errs != nil {
		t.Errorf("Expected empty payload to be completable, got %v", errs)
	}
}

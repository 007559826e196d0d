package domain

import (
	"testing"

	"github.com/edureach/fieldops/internal/auth"
)

func permWith(role auth.Role, level auth.AccessLevel) *auth.UserPermission {
	return &auth.UserPermission{
		Email:       "actor@example.org",
		Role:        role,
		Level:       level,
		SchoolCodes: []string{"S001"},
		Regions:     []string{"north"},
	}
}

// TestCanView tests read access across the role matrix
func TestCanView(t *testing.T) {
	target := Target{
		PMEmail:      "pm@example.org",
		SchoolCode:   "S001",
		SchoolRegion: "north",
	}

	tests := []struct {
		name  string
		actor *auth.UserPermission
		want  bool
	}{
		{"Admin in scope", permWith(auth.RoleAdmin, auth.LevelSchool), true},
		{"Admin with all access", permWith(auth.RoleAdmin, auth.LevelAll), true},
		{"Program admin in region scope", permWith(auth.RoleProgramAdmin, auth.LevelRegion), true},
		{"Teacher never views visits", permWith(auth.RoleTeacher, auth.LevelAll), false},
		{"Unknown role never views", permWith(auth.Role("intern"), auth.LevelAll), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.actor, target); got != tt.want {
				t.Errorf("CanView = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCanViewScopeBoundary tests that admin view is bounded by scope
func TestCanViewScopeBoundary(t *testing.T) {
	actor := permWith(auth.RoleAdmin, auth.LevelSchool)

	if !CanView(actor, Target{SchoolCode: "S001"}) {
		t.Error("Expected admin to view a school inside scope")
	}
	if CanView(actor, Target{SchoolCode: "S999"}) {
		t.Error("Expected admin not to view a school outside scope")
	}
}

// TestCanViewProgramManagerOwnership tests PM identity-based access
func TestCanViewProgramManagerOwnership(t *testing.T) {
	actor := permWith(auth.RoleProgramManager, auth.LevelAll)
	actor.Email = "PM@Example.ORG"

	// Ownership is by identity, case-insensitive; scope breadth is irrelevant.
	if !CanView(actor, Target{PMEmail: "pm@example.org", SchoolCode: "S999"}) {
		t.Error("Expected PM to view own visit regardless of scope")
	}
	if CanView(actor, Target{PMEmail: "other@example.org", SchoolCode: "S001"}) {
		t.Error("Expected PM not to view another PM's visit even inside scope")
	}
}

// TestCanEdit tests write access across the role matrix
func TestCanEdit(t *testing.T) {
	target := Target{
		PMEmail:      "actor@example.org",
		SchoolCode:   "S001",
		SchoolRegion: "north",
	}

	tests := []struct {
		name  string
		actor *auth.UserPermission
		want  bool
	}{
		{"Admin in scope", permWith(auth.RoleAdmin, auth.LevelSchool), true},
		{"Owning PM", permWith(auth.RoleProgramManager, auth.LevelSchool), true},
		{"Program admin never edits", permWith(auth.RoleProgramAdmin, auth.LevelAll), false},
		{"Teacher never edits", permWith(auth.RoleTeacher, auth.LevelAll), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.actor, target); got != tt.want {
				t.Errorf("CanEdit = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCanEditReadOnlyFlag tests that read_only suppresses all writes
func TestCanEditReadOnlyFlag(t *testing.T) {
	target := Target{PMEmail: "actor@example.org", SchoolCode: "S001"}

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleProgramManager} {
		actor := permWith(role, auth.LevelAll)
		actor.ReadOnly = true

		if CanEdit(actor, target) {
			t.Errorf("Expected read-only %s not to edit", role)
		}
		if !CanView(actor, target) && role == auth.RoleAdmin {
			t.Errorf("Expected read-only %s to keep view access", role)
		}
	}
}

// TestCanEditCompletedActionData tests the admin-only correction gate
func TestCanEditCompletedActionData(t *testing.T) {
	tests := []struct {
		name  string
		actor *auth.UserPermission
		want  bool
	}{
		{"Admin", permWith(auth.RoleAdmin, auth.LevelAll), true},
		{"Owning PM", permWith(auth.RoleProgramManager, auth.LevelAll), false},
		{"Program admin", permWith(auth.RoleProgramAdmin, auth.LevelAll), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEditCompletedActionData(tt.actor); got != tt.want {
				t.Errorf("CanEditCompletedActionData = %v, want %v", got, tt.want)
			}
		})
	}

	readOnlyAdmin := permWith(auth.RoleAdmin, auth.LevelAll)
	readOnlyAdmin.ReadOnly = true
	if CanEditCompletedActionData(readOnlyAdmin) {
		t.Error("Expected read-only admin not to edit completed action data")
	}
}

package auth

import (
	"fmt"
	"testing"
)

// TestScopeAllLevels tests that level 3 and 4 scopes match everything
func TestScopeAllLevels(t *testing.T) {
	for _, level := range []AccessLevel{LevelAll, LevelSystem} {
		t.Run(fmt.Sprintf("level_%d", level), func(t *testing.T) {
			scope := NewScope(&UserPermission{Level: level})

			if !scope.Matches("S001", "north") {
				t.Error("Expected all-level scope to match any school")
			}
			if !scope.Matches("", "") {
				t.Error("Expected all-level scope to match even empty targets")
			}

			clause, args := scope.SQLFilter("code", "region", 0)
			if clause != "" || args != nil {
				t.Errorf("Expected empty SQL filter, got %q with %v", clause, args)
			}
		})
	}
}

// TestScopeSchoolLevel tests level-1 school code membership
func TestScopeSchoolLevel(t *testing.T) {
	scope := NewScope(&UserPermission{
		Level:       LevelSchool,
		SchoolCodes: []string{"S001", " s002 ", ""},
	})

	tests := []struct {
		name       string
		schoolCode string
		region     string
		want       bool
	}{
		{"Member school", "S001", "north", true},
		{"Member school normalized", "s001", "", true},
		{"Member school trimmed in set", "S002", "", true},
		{"Non-member school", "S999", "north", false},
		{"Region is ignored at school level", "S999", "matching-region", false},
		{"Empty school code", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scope.Matches(tt.schoolCode, tt.region); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.schoolCode, tt.region, got, tt.want)
			}
		})
	}
}

// TestScopeRegionLevel tests level-2 region membership
func TestScopeRegionLevel(t *testing.T) {
	scope := NewScope(&UserPermission{
		Level:   LevelRegion,
		Regions: []string{"North", "east "},
	})

	tests := []struct {
		name       string
		schoolCode string
		region     string
		want       bool
	}{
		{"Member region", "S001", "North", true},
		{"Member region normalized", "S001", "  nOrTh ", true},
		{"Trimmed member region", "S001", "east", true},
		{"Non-member region", "S001", "south", false},
		{"Missing region never matches", "S001", "", false},
		{"School code is ignored at region level", "north", "south", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scope.Matches(tt.schoolCode, tt.region); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.schoolCode, tt.region, got, tt.want)
			}
		})
	}

	if !scope.NeedsRegion() {
		t.Error("Expected region scope to need the target region")
	}
}

// TestScopeEmptyMemberSetsFailClosed tests that empty sets match nothing
func TestScopeEmptyMemberSetsFailClosed(t *testing.T) {
	tests := []struct {
		name string
		perm *UserPermission
	}{
		{"Level 1 with no schools", &UserPermission{Level: LevelSchool}},
		{"Level 1 with only blank schools", &UserPermission{Level: LevelSchool, SchoolCodes: []string{"", "  "}}},
		{"Level 2 with no regions", &UserPermission{Level: LevelRegion}},
		{"Unknown level", &UserPermission{Level: 99}},
		{"Zero level", &UserPermission{Level: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := NewScope(tt.perm)

			if scope.Matches("S001", "north") {
				t.Error("Expected empty scope to match nothing")
			}

			clause, _ := scope.SQLFilter("code", "region", 0)
			if clause != "FALSE" {
				t.Errorf("Expected FALSE clause, got %q", clause)
			}
		})
	}
}

// TestScopeSQLFilterShape tests clause rendering and arg numbering
func TestScopeSQLFilterShape(t *testing.T) {
	t.Run("School scope", func(t *testing.T) {
		scope := NewScope(&UserPermission{Level: LevelSchool, SchoolCodes: []string{"S001"}})

		clause, args := scope.SQLFilter("v.school_code", "s.region", 2)
		want := "LOWER(TRIM(v.school_code)) = ANY($3)"
		if clause != want {
			t.Errorf("Expected clause %q, got %q", want, clause)
		}
		if len(args) != 1 {
			t.Fatalf("Expected 1 arg, got %d", len(args))
		}
	})

	t.Run("Region scope", func(t *testing.T) {
		scope := NewScope(&UserPermission{Level: LevelRegion, Regions: []string{"north"}})

		clause, args := scope.SQLFilter("v.school_code", "s.region", 0)
		want := "LOWER(TRIM(COALESCE(s.region, ''))) = ANY($1)"
		if clause != want {
			t.Errorf("Expected clause %q, got %q", want, clause)
		}
		if len(args) != 1 {
			t.Fatalf("Expected 1 arg, got %d", len(args))
		}
	})
}

// TestScopeFormsAgree cross-checks the predicate against what the SQL
// fragment would select for the same member sets
func TestScopeFormsAgree(t *testing.T) {
	perms := []*UserPermission{
		{Level: LevelSchool, SchoolCodes: []string{"S001", "S002"}},
		{Level: LevelRegion, Regions: []string{"north"}},
		{Level: LevelAll},
		{Level: LevelSchool},
	}

	for i, perm := range perms {
		scope := NewScope(perm)
		clause, _ := scope.SQLFilter("code", "region", 0)

		// Unrestricted SQL must pair with an always-true predicate, and
		// FALSE with an always-false one, for representative targets.
		targets := []struct{ school, region string }{
			{"S001", "north"}, {"S002", ""}, {"X", "south"}, {"", ""},
		}

		switch clause {
		case "":
			for _, target := range targets {
				if !scope.Matches(target.school, target.region) {
					t.Errorf("perm %d: empty clause but Matches(%q, %q) = false", i, target.school, target.region)
				}
			}
		case "FALSE":
			for _, target := range targets {
				if scope.Matches(target.school, target.region) {
					t.Errorf("perm %d: FALSE clause but Matches(%q, %q) = true", i, target.school, target.region)
				}
			}
		}
	}
}

// TestNormalizeEmail tests identity normalization
func TestNormalizeEmail(t *testing.T) {
	if NormalizeEmail("  PM@Example.ORG ") != "pm@example.org" {
		t.Error("Expected email to be trimmed and lowercased")
	}
	if !SameIdentity("PM@example.org", " pm@EXAMPLE.org ") {
		t.Error("Expected identities to match after normalization")
	}
	if SameIdentity("a@example.org", "b@example.org") {
		t.Error("Expected different identities not to match")
	}
}

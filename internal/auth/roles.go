// Package auth provides the permission model: roles, access levels and
// the per-user permission record the visit policy consumes.
package auth

import "strings"

// Role represents a user role in the system.
type Role string

const (
	RoleTeacher        Role = "teacher"
	RoleProgramManager Role = "program_manager" // owns and conducts school visits
	RoleAdmin          Role = "admin"
	RoleProgramAdmin   Role = "program_admin" // read-only oversight of a program
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleProgramManager, RoleAdmin, RoleProgramAdmin:
		return true
	default:
		return false
	}
}

// AccessLevel determines how a user's scope is expressed.
type AccessLevel int

const (
	// LevelSchool scopes the user to an explicit set of school codes
	LevelSchool AccessLevel = 1
	// LevelRegion scopes the user to a set of regions
	LevelRegion AccessLevel = 2
	// LevelAll grants access to every school
	LevelAll AccessLevel = 3
	// LevelSystem is administrative (user management) and implies all-school access
	LevelSystem AccessLevel = 4
)

// Valid returns true when the level is a supported value.
func (l AccessLevel) Valid() bool {
	return l >= LevelSchool && l <= LevelSystem
}

// UserPermission is a principal's resolved permission record. It is
// read-only to the lifecycle engine; administrative seeding owns writes.
type UserPermission struct {
	Email       string      `json:"email"`
	Level       AccessLevel `json:"level"`
	Role        Role        `json:"role"`
	SchoolCodes []string    `json:"school_codes,omitempty"`
	Regions     []string    `json:"regions,omitempty"`
	ProgramIDs  []int       `json:"program_ids"`
	ReadOnly    bool        `json:"read_only"`
}

// NormalizeEmail lowercases and trims an email for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameIdentity reports whether two emails refer to the same principal.
func SameIdentity(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

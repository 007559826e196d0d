package domain

import (
	"github.com/edureach/fieldops/internal/auth"
)

// Target is the slice of a visit the access policy needs. SchoolRegion
// is only populated for level-2 actors; other levels never look it up.
type Target struct {
	PMEmail      string
	SchoolCode   string
	SchoolRegion string
}

// CanView decides read access to a visit and its actions.
//
// Admin roles see whatever their scope covers. Program managers see
// only their own visits, by identity, regardless of scope breadth.
func CanView(actor *auth.UserPermission, target Target) bool {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleProgramAdmin:
		return auth.NewScope(actor).Matches(target.SchoolCode, target.SchoolRegion)
	case auth.RoleProgramManager:
		return auth.SameIdentity(actor.Email, target.PMEmail)
	default:
		return false
	}
}

// CanEdit decides write access to a visit and its actions. Edit rights
// are strictly narrower than view rights: program_admin is read-only
// over visits even within scope, and non-owning PMs never edit.
func CanEdit(actor *auth.UserPermission, target Target) bool {
	if actor.ReadOnly {
		return false
	}
	switch actor.Role {
	case auth.RoleAdmin:
		return auth.NewScope(actor).Matches(target.SchoolCode, target.SchoolRegion)
	case auth.RoleProgramManager:
		return auth.SameIdentity(actor.Email, target.PMEmail)
	default:
		// program_admin included: read-only over visits by role contract.
		return false
	}
}

// CanEditCompletedActionData decides whether an actor may correct the
// payload of a completed action on a visit that is not yet locked.
func CanEditCompletedActionData(actor *auth.UserPermission) bool {
	return actor.Role == auth.RoleAdmin && !actor.ReadOnly
}

package auth

import (
	"fmt"
	"strings"
)

// ScopeKind is the closed set of scope shapes. Each access level maps to
// exactly one kind, so adding a level forces handling here and in every
// switch over the kind.
type ScopeKind int

const (
	// ScopeSchools restricts to an explicit set of school codes (level 1)
	ScopeSchools ScopeKind = iota
	// ScopeRegions restricts to a set of regions (level 2)
	ScopeRegions
	// ScopeAll matches every school (levels 3 and 4)
	ScopeAll
)

// Scope is a compiled filter over (schoolCode, region) pairs. The
// in-memory predicate and the SQL fragment are both derived from the
// same normalized member set, so the two forms agree by construction.
type Scope struct {
	kind    ScopeKind
	members []string // normalized; nil for ScopeAll
}

// NewScope compiles a permission record into a scope filter.
func NewScope(perm *UserPermission) Scope {
	switch perm.Level {
	case LevelAll, LevelSystem:
		return Scope{kind: ScopeAll}
	case LevelRegion:
		return Scope{kind: ScopeRegions, members: normalizeSet(perm.Regions)}
	case LevelSchool:
		return Scope{kind: ScopeSchools, members: normalizeSet(perm.SchoolCodes)}
	default:
		// Unknown levels fail closed: a scope with no members matches nothing.
		return Scope{kind: ScopeSchools}
	}
}

// normalizeSet trims, lowercases and drops empty entries.
func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := strings.ToLower(strings.TrimSpace(v))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// NeedsRegion reports whether evaluating this scope requires the
// target's region. Callers skip the school lookup entirely when false.
func (s Scope) NeedsRegion() bool {
	return s.kind == ScopeRegions
}

// Matches tests a single (schoolCode, region) pair. A missing region on
// the target is a non-match for region scopes, never an error.
func (s Scope) Matches(schoolCode, region string) bool {
	switch s.kind {
	case ScopeAll:
		return true
	case ScopeRegions:
		return s.contains(region)
	case ScopeSchools:
		return s.contains(schoolCode)
	default:
		return false
	}
}

func (s Scope) contains(value string) bool {
	if len(s.members) == 0 {
		// Empty member set matches nothing, never everything.
		return false
	}
	n := strings.ToLower(strings.TrimSpace(value))
	for _, m := range s.members {
		if m == n {
			return true
		}
	}
	return false
}

// SQLFilter renders the scope as a WHERE fragment over the given column
// expressions, with bind parameters numbered from argOffset+1. The empty
// clause means no restriction; "FALSE" excludes every row. The fragment
// applies the same normalization Matches applies, keeping the two forms
// in agreement for every input.
func (s Scope) SQLFilter(schoolCodeCol, regionCol string, argOffset int) (clause string, args []any) {
	switch s.kind {
	case ScopeAll:
		return "", nil
	case ScopeRegions:
		if len(s.members) == 0 {
			return "FALSE", nil
		}
		clause = fmt.Sprintf("LOWER(TRIM(COALESCE(%s, ''))) = ANY($%d)", regionCol, argOffset+1)
		return clause, []any{s.members}
	case ScopeSchools:
		if len(s.members) == 0 {
			return "FALSE", nil
		}
		clause = fmt.Sprintf("LOWER(TRIM(%s)) = ANY($%d)", schoolCodeCol, argOffset+1)
		return clause, []any{s.members}
	default:
		return "FALSE", nil
	}
}

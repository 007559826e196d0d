package domain

import (
	"context"
	"time"

	"github.com/edureach/fieldops/internal/auth"
	"github.com/edureach/fieldops/internal/gps"
	"github.com/edureach/fieldops/internal/shared/types"
)

// ListFilter narrows visit list queries. Exactly one of Scope or
// PMEmail is set, matching the caller's role.
type ListFilter struct {
	Scope      *auth.Scope
	PMEmail    string
	SchoolCode string
	Status     *VisitStatus
	Limit      int
	Offset     int
}

// Repository is the persistence contract for visits and actions.
//
// Transition methods are guarded conditional updates: the store applies
// the change only when the row still holds the expected prior state and
// reports how many rows changed. The lifecycle engine owns the re-read
// ladder on zero-row results; no other path writes status, started_at,
// ended_at or deleted_at.
type Repository interface {
	CreateVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, id types.ID) (*Visit, error)
	ListVisits(ctx context.Context, filter ListFilter) ([]Visit, int, error)

	// UpdateVisitData replaces the visit document while the visit is
	// still in progress.
	UpdateVisitData(ctx context.Context, id types.ID, data map[string]any) (int64, error)

	// CompleteVisit locks the visit; succeeds only while in progress.
	CompleteVisit(ctx context.Context, id types.ID, at time.Time) (int64, error)

	CreateAction(ctx context.Context, a *Action) error

	// GetAction returns an action; soft-deleted actions are not found.
	GetAction(ctx context.Context, id types.ID) (*Action, error)
	ListActions(ctx context.Context, visitID types.ID) ([]Action, error)

	// StartAction moves pending -> in_progress, stamping started_at and
	// the start GPS fields; succeeds only while still pending with both
	// timestamps null.
	StartAction(ctx context.Context, id types.ID, at time.Time, reading gps.Reading) (int64, error)

	// EndAction moves in_progress -> completed, stamping ended_at and
	// the end GPS fields; succeeds only while in progress with ended_at
	// null.
	EndAction(ctx context.Context, id types.ID, at time.Time, reading gps.Reading) (int64, error)

	// UpdateActionData replaces the action payload without changing
	// state; succeeds only while the row still holds expectedStatus.
	UpdateActionData(ctx context.Context, id types.ID, expectedStatus ActionStatus, data map[string]any) (int64, error)

	// SoftDeleteAction tombstones a pending action.
	SoftDeleteAction(ctx context.Context, id types.ID, at time.Time) (int64, error)
}

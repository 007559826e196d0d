// Package lifecycle implements the visit/action access-and-lifecycle
// engine: authorization of every read and mutation, and the guarded
// state machine over visit actions.
package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/edureach/fieldops/internal/auth"
	"github.com/edureach/fieldops/internal/gps"
	"github.com/edureach/fieldops/internal/school"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/edureach/fieldops/internal/shared/events"
	"github.com/edureach/fieldops/internal/shared/metrics"
	"github.com/edureach/fieldops/internal/shared/types"
	"github.com/edureach/fieldops/internal/visit/domain"
)

// SchoolDirectory resolves school metadata. ResolveRegion is only
// consulted for level-2 actors; other levels never hit the table.
type SchoolDirectory interface {
	GetByCode(ctx context.Context, code string) (*school.School, error)
	ResolveRegion(ctx context.Context, code string) (string, error)
}

// Engine coordinates policy checks and guarded transitions. All
// competing transitions on the same row are serialized by the store's
// conditional updates; the engine holds no locks of its own.
type Engine struct {
	repo    domain.Repository
	schools SchoolDirectory
	gps     *gps.Validator
	bus     events.Publisher // optional
}

// NewEngine creates a lifecycle engine.
func NewEngine(repo domain.Repository, schools SchoolDirectory, validator *gps.Validator, bus events.Publisher) *Engine {
	return &Engine{repo: repo, schools: schools, gps: validator, bus: bus}
}

// CreateVisitInput carries the fields of a visit creation request.
type CreateVisitInput struct {
	SchoolCode string
	PMEmail    string // admins may create on behalf of a PM
	VisitDate  time.Time
}

// CreateVisit creates a new in-progress visit. The school must exist
// and be inside the actor's scope.
func (e *Engine) CreateVisit(ctx context.Context, actor *auth.UserPermission, input CreateVisitInput) (*domain.Visit, error) {
	if actor.ReadOnly || (actor.Role != auth.RoleProgramManager && actor.Role != auth.RoleAdmin) {
		metrics.RecordAuthorizationDecision("visit", "create", false)
		return nil, errors.Forbidden("forbidden")
	}

	sch, err := e.schools.GetByCode(ctx, input.SchoolCode)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Unprocessable("invalid visit", map[string]string{
				"school_code": "school does not exist",
			})
		}
		return nil, err
	}

	region := ""
	if sch.Region != nil {
		region = *sch.Region
	}
	if !auth.NewScope(actor).Matches(sch.Code, region) {
		metrics.RecordAuthorizationDecision("visit", "create", false)
		return nil, errors.Forbidden("forbidden")
	}
	metrics.RecordAuthorizationDecision("visit", "create", true)

	pmEmail := auth.NormalizeEmail(actor.Email)
	if actor.Role == auth.RoleAdmin && input.PMEmail != "" {
		pmEmail = auth.NormalizeEmail(input.PMEmail)
	}

	visitDate := input.VisitDate
	if visitDate.IsZero() {
		visitDate = time.Now()
	}

	v, err := domain.NewVisit(input.SchoolCode, pmEmail, visitDate)
	if err != nil {
		return nil, err
	}

	if err := e.repo.CreateVisit(ctx, v); err != nil {
		return nil, err
	}

	metrics.RecordVisitCreated(v.SchoolCode)
	e.publish(ctx, actor, events.NewEvent("visit.created", "lifecycle", nil).WithSubject(v.ID, ""))

	return v, nil
}

// GetVisit returns a visit the actor may view.
func (e *Engine) GetVisit(ctx context.Context, actor *auth.UserPermission, id types.ID) (*domain.Visit, error) {
	v, _, err := e.loadVisitForView(ctx, actor, id)
	return v, err
}

// ListVisits lists visits visible to the actor.
func (e *Engine) ListVisits(ctx context.Context, actor *auth.UserPermission, filter domain.ListFilter) ([]domain.Visit, int, error) {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleProgramAdmin:
		scope := auth.NewScope(actor)
		filter.Scope = &scope
		filter.PMEmail = ""
	case auth.RoleProgramManager:
		filter.Scope = nil
		filter.PMEmail = auth.NormalizeEmail(actor.Email)
	default:
		return nil, 0, errors.Forbidden("forbidden")
	}

	return e.repo.ListVisits(ctx, filter)
}

// UpdateVisitData replaces the visit's free-form document.
func (e *Engine) UpdateVisitData(ctx context.Context, actor *auth.UserPermission, id types.ID, data map[string]any) (*domain.Visit, error) {
	v, err := e.loadVisitForEdit(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	rows, err := e.repo.UpdateVisitData(ctx, v.ID, data)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// The visit was completed between the lock check and the write.
		metrics.RecordTransitionConflict("visit_data_edit")
		return nil, errors.Conflict("visit is completed and locked")
	}

	return e.repo.GetVisit(ctx, v.ID)
}

// CompleteVisit locks a visit. Completing an already-completed visit is
// idempotent; the existing record is returned unchanged.
func (e *Engine) CompleteVisit(ctx context.Context, actor *auth.UserPermission, id types.ID) (*domain.Visit, error) {
	v, target, err := e.loadVisitForView(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !e.authorizeEdit(actor, target, "visit", "complete") {
		return nil, errors.Forbidden("forbidden")
	}

	rows, err := e.repo.CompleteVisit(ctx, v.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		current, err := e.repo.GetVisit(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.VisitStatusCompleted {
			return current, nil
		}
		metrics.RecordTransitionConflict("visit_complete")
		return nil, errors.Conflict("visit state changed concurrently")
	}

	e.publish(ctx, actor, events.NewEvent("visit.completed", "lifecycle", nil).WithSubject(v.ID, ""))

	return e.repo.GetVisit(ctx, v.ID)
}

// CreateAction adds a pending action to a visit.
func (e *Engine) CreateAction(ctx context.Context, actor *auth.UserPermission, visitID types.ID, actionType domain.ActionType) (*domain.Action, error) {
	v, err := e.loadVisitForEdit(ctx, actor, visitID)
	if err != nil {
		return nil, err
	}

	a, err := domain.NewAction(v.ID, actionType)
	if err != nil {
		return nil, err
	}

	if err := e.repo.CreateAction(ctx, a); err != nil {
		return nil, err
	}

	metrics.RecordActionTransition(string(a.Type), "", string(domain.ActionStatusPending))
	e.publish(ctx, actor, events.NewEvent("visit.action.created", "lifecycle", map[string]any{
		"action_type": a.Type,
	}).WithSubject(v.ID, a.ID))

	return a, nil
}

// ListActions lists a visit's live actions.
func (e *Engine) ListActions(ctx context.Context, actor *auth.UserPermission, visitID types.ID) ([]domain.Action, error) {
	v, _, err := e.loadVisitForView(ctx, actor, visitID)
	if err != nil {
		return nil, err
	}
	return e.repo.ListActions(ctx, v.ID)
}

// GetAction returns a single action under a visit the actor may view.
func (e *Engine) GetAction(ctx context.Context, actor *auth.UserPermission, visitID, actionID types.ID) (*domain.Action, error) {
	_, _, err := e.loadVisitForView(ctx, actor, visitID)
	if err != nil {
		return nil, err
	}
	return e.getActionOf(ctx, visitID, actionID)
}

// StartAction moves a pending action to in_progress, gated by a valid
// GPS reading. Racing starts converge: the loser observes the winner's
// row and succeeds with it.
func (e *Engine) StartAction(ctx context.Context, actor *auth.UserPermission, visitID, actionID types.ID, reading gps.Reading) (*domain.Action, string, error) {
	if _, err := e.loadVisitForEdit(ctx, actor, visitID); err != nil {
		return nil, "", err
	}

	a, err := e.getActionOf(ctx, visitID, actionID)
	if err != nil {
		return nil, "", err
	}

	warning, err := e.gps.Validate(reading, gps.TagStart)
	if err != nil {
		return nil, "", err
	}

	rows, err := e.repo.StartAction(ctx, a.ID, time.Now(), reading)
	if err != nil {
		return nil, "", err
	}

	if rows == 0 {
		// Re-read ladder: a concurrent start is a success, anything
		// else is an invariant violation.
		current, err := e.repo.GetAction(ctx, a.ID)
		if err != nil {
			return nil, "", err
		}
		if current.StartedAt != nil {
			return current, "", nil
		}
		metrics.RecordTransitionConflict("action_start")
		return nil, "", errors.Conflict("action state changed concurrently")
	}

	started, err := e.repo.GetAction(ctx, a.ID)
	if err != nil {
		return nil, "", err
	}

	metrics.RecordActionTransition(string(a.Type), string(domain.ActionStatusPending), string(domain.ActionStatusInProgress))
	e.publish(ctx, actor, events.NewEvent("visit.action.started", "lifecycle", map[string]any{
		"action_type": a.Type,
	}).WithSubject(visitID, a.ID))

	return started, warning, nil
}

// EndAction moves an in-progress action to completed, gated by a valid
// GPS reading and, for classroom observations, the completion ruleset.
// Ending an already-completed action is idempotent.
func (e *Engine) EndAction(ctx context.Context, actor *auth.UserPermission, visitID, actionID types.ID, reading gps.Reading) (*domain.Action, string, error) {
	if _, err := e.loadVisitForEdit(ctx, actor, visitID); err != nil {
		return nil, "", err
	}

	a, err := e.getActionOf(ctx, visitID, actionID)
	if err != nil {
		return nil, "", err
	}

	if a.EndedAt != nil {
		return a, "", nil
	}
	if a.StartedAt == nil {
		return nil, "", errors.Unprocessable("invalid transition", map[string]string{
			"status": "cannot end an action that was never started",
		})
	}

	warning, err := e.gps.Validate(reading, gps.TagEnd)
	if err != nil {
		return nil, "", err
	}

	if errs := domain.ValidateCompletion(a.Type, a.Data); errs != nil {
		return nil, "", errors.Unprocessable("action data is incomplete", errs)
	}

	rows, err := e.repo.EndAction(ctx, a.ID, time.Now(), reading)
	if err != nil {
		return nil, "", err
	}

	if rows == 0 {
		current, err := e.repo.GetAction(ctx, a.ID)
		if err != nil {
			return nil, "", err
		}
		if current.EndedAt != nil {
			return current, "", nil
		}
		if current.StartedAt == nil {
			return nil, "", errors.Unprocessable("invalid transition", map[string]string{
				"status": "cannot end an action that was never started",
			})
		}
		metrics.RecordTransitionConflict("action_end")
		return nil, "", errors.Conflict("action state changed concurrently")
	}

	ended, err := e.repo.GetAction(ctx, a.ID)
	if err != nil {
		return nil, "", err
	}

	metrics.RecordActionTransition(string(a.Type), string(domain.ActionStatusInProgress), string(domain.ActionStatusCompleted))
	e.publish(ctx, actor, events.NewEvent("visit.action.ended", "lifecycle", map[string]any{
		"action_type": a.Type,
	}).WithSubject(visitID, a.ID))

	return ended, warning, nil
}

// UpdateActionData replaces an action's payload without changing state.
// Completed actions may only be corrected by admins, against the
// completion ruleset so the edit cannot downgrade the action below
// completion criteria.
func (e *Engine) UpdateActionData(ctx context.Context, actor *auth.UserPermission, visitID, actionID types.ID, data map[string]any) (*domain.Action, error) {
	if _, err := e.loadVisitForEdit(ctx, actor, visitID); err != nil {
		return nil, err
	}

	a, err := e.getActionOf(ctx, visitID, actionID)
	if err != nil {
		return nil, err
	}

	if a.Status == domain.ActionStatusCompleted {
		if !domain.CanEditCompletedActionData(actor) {
			metrics.RecordAuthorizationDecision("action", "edit_completed", false)
			return nil, errors.Forbidden("forbidden")
		}
		metrics.RecordAuthorizationDecision("action", "edit_completed", true)
		if errs := domain.ValidateCompletion(a.Type, data); errs != nil {
			return nil, errors.Unprocessable("action data is incomplete", errs)
		}
	} else {
		if errs := domain.ValidateSave(a.Type, data); errs != nil {
			return nil, errors.Unprocessable("invalid action data", errs)
		}
	}

	rows, err := e.repo.UpdateActionData(ctx, a.ID, a.Status, data)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Status moved underneath the edit; the caller must re-fetch
		// and retry against the new state's rules.
		if _, err := e.getActionOf(ctx, visitID, actionID); err != nil {
			return nil, err
		}
		metrics.RecordTransitionConflict("action_data_edit")
		return nil, errors.Conflict("action state changed concurrently")
	}

	return e.repo.GetAction(ctx, a.ID)
}

// DeleteAction tombstones a pending action. Actions that have started
// can never be deleted, only superseded.
func (e *Engine) DeleteAction(ctx context.Context, actor *auth.UserPermission, visitID, actionID types.ID) error {
	if _, err := e.loadVisitForEdit(ctx, actor, visitID); err != nil {
		return err
	}

	a, err := e.getActionOf(ctx, visitID, actionID)
	if err != nil {
		return err
	}

	rows, err := e.repo.SoftDeleteAction(ctx, a.ID, time.Now())
	if err != nil {
		return err
	}

	if rows == 0 {
		if _, err := e.getActionOf(ctx, visitID, actionID); err != nil {
			// Concurrently deleted: gone either way.
			return err
		}
		return errors.Conflict("only pending actions can be deleted")
	}

	metrics.RecordActionTransition(string(a.Type), string(domain.ActionStatusPending), "deleted")
	e.publish(ctx, actor, events.NewEvent("visit.action.deleted", "lifecycle", map[string]any{
		"action_type": a.Type,
	}).WithSubject(visitID, a.ID))

	return nil
}

// --- Helpers ---

// loadVisitForView fetches the visit and checks view access. Existence
// is checked before access on every single-entity path: visit ids are
// unguessable surrogates, so a consistent 404-then-403 ordering leaks
// nothing useful.
func (e *Engine) loadVisitForView(ctx context.Context, actor *auth.UserPermission, id types.ID) (*domain.Visit, domain.Target, error) {
	v, err := e.repo.GetVisit(ctx, id)
	if err != nil {
		return nil, domain.Target{}, err
	}

	target, err := e.resolveTarget(ctx, actor, v)
	if err != nil {
		return nil, domain.Target{}, err
	}

	allowed := domain.CanView(actor, target)
	metrics.RecordAuthorizationDecision("visit", "view", allowed)
	if !allowed {
		return nil, domain.Target{}, errors.Forbidden("forbidden")
	}

	return v, target, nil
}

// loadVisitForEdit fetches the visit, checks edit access, then the
// write lock. Both must pass independently.
func (e *Engine) loadVisitForEdit(ctx context.Context, actor *auth.UserPermission, id types.ID) (*domain.Visit, error) {
	v, err := e.repo.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}

	target, err := e.resolveTarget(ctx, actor, v)
	if err != nil {
		return nil, err
	}

	if !e.authorizeEdit(actor, target, "visit", "edit") {
		return nil, errors.Forbidden("forbidden")
	}

	if v.Locked() {
		return nil, errors.Conflict("visit is completed and locked")
	}

	return v, nil
}

func (e *Engine) authorizeEdit(actor *auth.UserPermission, target domain.Target, resource, action string) bool {
	allowed := domain.CanEdit(actor, target)
	metrics.RecordAuthorizationDecision(resource, action, allowed)
	return allowed
}

// resolveTarget builds the policy target, looking up the school region
// only when the actor's scope needs it.
func (e *Engine) resolveTarget(ctx context.Context, actor *auth.UserPermission, v *domain.Visit) (domain.Target, error) {
	target := domain.Target{
		PMEmail:    v.PMEmail,
		SchoolCode: v.SchoolCode,
	}

	if auth.NewScope(actor).NeedsRegion() {
		region, err := e.schools.ResolveRegion(ctx, v.SchoolCode)
		if err != nil {
			if isNotFound(err) {
				// Unknown school or no region: scope simply won't match.
				return target, nil
			}
			return domain.Target{}, err
		}
		target.SchoolRegion = region
	}

	return target, nil
}

// getActionOf fetches an action and verifies parentage. A mismatched
// or soft-deleted action is not found.
func (e *Engine) getActionOf(ctx context.Context, visitID, actionID types.ID) (*domain.Action, error) {
	a, err := e.repo.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if a.VisitID != visitID {
		return nil, errors.NotFound("action", actionID.String())
	}
	return a, nil
}

func (e *Engine) publish(ctx context.Context, actor *auth.UserPermission, event events.Event) {
	if e.bus == nil {
		return
	}
	event = event.WithActor(actor.Email, string(actor.Role))
	if err := e.bus.Publish(ctx, event); err != nil {
		log.Printf("failed to publish %s event: %v", event.Type, err)
	}
}

func isNotFound(err error) bool {
	appErr, ok := err.(*errors.AppError)
	return ok && appErr.Err == errors.ErrNotFound
}

// Package infrastructure provides the PostgreSQL persistence layer for
// visits and actions.
package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edureach/fieldops/internal/gps"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/edureach/fieldops/internal/shared/types"
	"github.com/edureach/fieldops/internal/visit/domain"
)

// Repository implements domain.Repository over pgx. Transition methods
// are single guarded UPDATEs; the WHERE clause carries the expected
// prior state so concurrent writers race on the database row, not on
// application locks.
type Repository struct {
	pool *pgxpool.Pool
}

// Ensure Repository implements the domain contract
var _ domain.Repository = (*Repository)(nil)

// NewRepository creates a new visit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const visitColumns = "id, school_code, pm_email, visit_date, status, data, completed_at, created_at, updated_at"

// CreateVisit inserts a new visit
func (r *Repository) CreateVisit(ctx context.Context, v *domain.Visit) error {
	query := `
		INSERT INTO visits (id, school_code, pm_email, visit_date, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.SchoolCode, v.PMEmail, v.VisitDate, v.Status, v.Data, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create visit")
	}

	return nil
}

// GetVisit finds a visit by id
func (r *Repository) GetVisit(ctx context.Context, id types.ID) (*domain.Visit, error) {
	query := fmt.Sprintf(`SELECT %s FROM visits WHERE id = $1`, visitColumns)

	v, err := scanVisit(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("visit", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find visit")
	}

	return v, nil
}

// ListVisits returns visits matching the filter plus a total count.
// Scope filters join through schools so region scopes resolve against
// the imported roster.
func (r *Repository) ListVisits(ctx context.Context, filter domain.ListFilter) ([]domain.Visit, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var conditions []string
	var args []any

	if filter.Scope != nil {
		if clause, scopeArgs := filter.Scope.SQLFilter("v.school_code", "s.region", len(args)); clause != "" {
			conditions = append(conditions, clause)
			args = append(args, scopeArgs...)
		}
	}
	if filter.PMEmail != "" {
		args = append(args, filter.PMEmail)
		conditions = append(conditions, fmt.Sprintf("LOWER(v.pm_email) = $%d", len(args)))
	}
	if filter.SchoolCode != "" {
		args = append(args, filter.SchoolCode)
		conditions = append(conditions, fmt.Sprintf("v.school_code = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("v.status = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM visits v
		LEFT JOIN schools s ON s.code = v.school_code
		%s`, whereClause)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count visits")
	}

	query := fmt.Sprintf(`
		SELECT v.id, v.school_code, v.pm_email, v.visit_date, v.status, v.data, v.completed_at, v.created_at, v.updated_at
		FROM visits v
		LEFT JOIN schools s ON s.code = v.school_code
		%s
		ORDER BY v.visit_date DESC, v.created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, len(args)+1, len(args)+2)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list visits")
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan visit")
		}
		visits = append(visits, *v)
	}

	return visits, total, nil
}

// UpdateVisitData replaces the visit document while the visit is still
// in progress
func (r *Repository) UpdateVisitData(ctx context.Context, id types.ID, data map[string]any) (int64, error) {
	query := `
		UPDATE visits
		SET data = $2, updated_at = $3
		WHERE id = $1 AND status = 'in_progress'`

	tag, err := r.pool.Exec(ctx, query, id, data, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to update visit data")
	}

	return tag.RowsAffected(), nil
}

// CompleteVisit locks the visit; succeeds only while in progress
func (r *Repository) CompleteVisit(ctx context.Context, id types.ID, at time.Time) (int64, error) {
	query := `
		UPDATE visits
		SET status = 'completed', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'in_progress'`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return 0, errors.Wrap(err, "failed to complete visit")
	}

	return tag.RowsAffected(), nil
}

const actionColumns = `id, visit_id, action_type, status, data,
	started_at, ended_at,
	start_lat, start_lng, start_accuracy,
	end_lat, end_lng, end_accuracy,
	created_at, updated_at`

// CreateAction inserts a new pending action
func (r *Repository) CreateAction(ctx context.Context, a *domain.Action) error {
	query := `
		INSERT INTO visit_actions (id, visit_id, action_type, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.VisitID, a.Type, a.Status, a.Data, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create action")
	}

	return nil
}

// GetAction finds a live action by id; soft-deleted rows are not found
func (r *Repository) GetAction(ctx context.Context, id types.ID) (*domain.Action, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM visit_actions
		WHERE id = $1 AND deleted_at IS NULL`, actionColumns)

	a, err := scanAction(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("action", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find action")
	}

	return a, nil
}

// ListActions returns a visit's live actions in creation order
func (r *Repository) ListActions(ctx context.Context, visitID types.ID) ([]domain.Action, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM visit_actions
		WHERE visit_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`, actionColumns)

	rows, err := r.pool.Query(ctx, query, visitID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list actions")
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan action")
		}
		actions = append(actions, *a)
	}

	return actions, nil
}

// StartAction moves pending -> in_progress, stamping started_at and the
// start GPS fields
func (r *Repository) StartAction(ctx context.Context, id types.ID, at time.Time, reading gps.Reading) (int64, error) {
	query := `
		UPDATE visit_actions
		SET status = 'in_progress', started_at = $2,
		    start_lat = $3, start_lng = $4, start_accuracy = $5,
		    updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		  AND status = 'pending' AND started_at IS NULL AND ended_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, at, reading.Lat, reading.Lng, reading.Accuracy)
	if err != nil {
		return 0, errors.Wrap(err, "failed to start action")
	}

	return tag.RowsAffected(), nil
}

// EndAction moves in_progress -> completed, stamping ended_at and the
// end GPS fields
func (r *Repository) EndAction(ctx context.Context, id types.ID, at time.Time, reading gps.Reading) (int64, error) {
	query := `
		UPDATE visit_actions
		SET status = 'completed', ended_at = $2,
		    end_lat = $3, end_lng = $4, end_accuracy = $5,
		    updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		  AND status = 'in_progress' AND started_at IS NOT NULL AND ended_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, at, reading.Lat, reading.Lng, reading.Accuracy)
	if err != nil {
		return 0, errors.Wrap(err, "failed to end action")
	}

	return tag.RowsAffected(), nil
}

// UpdateActionData replaces the action payload while the row still
// holds the expected status
func (r *Repository) UpdateActionData(ctx context.Context, id types.ID, expectedStatus domain.ActionStatus, data map[string]any) (int64, error) {
	query := `
		UPDATE visit_actions
		SET data = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, expectedStatus, data, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to update action data")
	}

	return tag.RowsAffected(), nil
}

// SoftDeleteAction tombstones a pending action
func (r *Repository) SoftDeleteAction(ctx context.Context, id types.ID, at time.Time) (int64, error) {
	query := `
		UPDATE visit_actions
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete action")
	}

	return tag.RowsAffected(), nil
}

func scanVisit(row pgx.Row) (*domain.Visit, error) {
	v := &domain.Visit{}
	err := row.Scan(
		&v.ID, &v.SchoolCode, &v.PMEmail, &v.VisitDate, &v.Status, &v.Data,
		&v.CompletedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if v.Data == nil {
		v.Data = map[string]any{}
	}
	return v, nil
}

func scanAction(row pgx.Row) (*domain.Action, error) {
	a := &domain.Action{}
	err := row.Scan(
		&a.ID, &a.VisitID, &a.Type, &a.Status, &a.Data,
		&a.StartedAt, &a.EndedAt,
		&a.StartLat, &a.StartLng, &a.StartAccuracy,
		&a.EndLat, &a.EndLng, &a.EndAccuracy,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Data == nil {
		a.Data = map[string]any{}
	}
	return a, nil
}

package school

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edureach/fieldops/internal/auth"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides access to the schools table
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new school repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByCode finds a school by its code
func (r *Repository) GetByCode(ctx context.Context, code string) (*School, error) {
	query := `
		SELECT code, name, region, imported_at, created_at, updated_at
		FROM schools
		WHERE code = $1`

	s := &School{}
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&s.Code, &s.Name, &s.Region, &s.ImportedAt, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("school", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find school")
	}

	return s, nil
}

// ResolveRegion returns a school's region. A missing school or a school
// without a region yields NotFound; scope checks treat that as no match.
func (r *Repository) ResolveRegion(ctx context.Context, code string) (string, error) {
	var region *string
	err := r.pool.QueryRow(ctx, `SELECT region FROM schools WHERE code = $1`, code).Scan(&region)

	if err == pgx.ErrNoRows {
		return "", errors.NotFound("school", code)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve school region")
	}
	if region == nil {
		return "", errors.NotFound("school region", code)
	}

	return *region, nil
}

// List returns schools visible to the given scope
func (r *Repository) List(ctx context.Context, scope auth.Scope, limit, offset int) ([]School, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var conditions []string
	var args []any

	if clause, scopeArgs := scope.SQLFilter("code", "region", len(args)); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, scopeArgs...)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schools %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count schools")
	}

	query := fmt.Sprintf(`
		SELECT code, name, region, imported_at, created_at, updated_at
		FROM schools
		%s
		ORDER BY code
		LIMIT $%d OFFSET $%d`, whereClause, len(args)+1, len(args)+2)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list schools")
	}
	defer rows.Close()

	var schools []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.Code, &s.Name, &s.Region, &s.ImportedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan school")
		}
		schools = append(schools, s)
	}

	return schools, total, nil
}

// Upsert creates or refreshes a school record (used by the SIS importer)
func (r *Repository) Upsert(ctx context.Context, s *School) error {
	now := time.Now()
	query := `
		INSERT INTO schools (code, name, region, imported_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			region = EXCLUDED.region,
			imported_at = EXCLUDED.imported_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, s.Code, s.Name, s.Region, now)
	if err != nil {
		return errors.Wrap(err, "failed to upsert school")
	}

	return nil
}

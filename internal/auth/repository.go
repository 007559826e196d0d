package auth

import (
	"context"

	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements PermissionStore using PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new permission repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ensure Repository implements PermissionStore
var _ PermissionStore = (*Repository)(nil)

// GetByEmail loads a permission record by normalized email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*UserPermission, error) {
	query := `
		SELECT email, level, role, school_codes, regions, program_ids, read_only
		FROM user_permissions
		WHERE email = $1`

	perm := &UserPermission{}
	err := r.pool.QueryRow(ctx, query, NormalizeEmail(email)).Scan(
		&perm.Email, &perm.Level, &perm.Role,
		&perm.SchoolCodes, &perm.Regions, &perm.ProgramIDs, &perm.ReadOnly,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("permission", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load permission record")
	}

	return perm, nil
}

// Upsert creates or replaces a permission record (administrative seeding)
func (r *Repository) Upsert(ctx context.Context, perm *UserPermission) error {
	query := `
		INSERT INTO user_permissions (email, level, role, school_codes, regions, program_ids, read_only, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (email) DO UPDATE SET
			level = EXCLUDED.level,
			role = EXCLUDED.role,
			school_codes = EXCLUDED.school_codes,
			regions = EXCLUDED.regions,
			program_ids = EXCLUDED.program_ids,
			read_only = EXCLUDED.read_only,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		NormalizeEmail(perm.Email), perm.Level, perm.Role,
		perm.SchoolCodes, perm.Regions, perm.ProgramIDs, perm.ReadOnly,
	)

	if err != nil {
		return errors.Wrap(err, "failed to upsert permission record")
	}

	return nil
}

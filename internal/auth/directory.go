package auth

import (
	"context"

	"github.com/edureach/fieldops/internal/shared/errors"
)

// PermissionStore loads permission records by identity.
type PermissionStore interface {
	// GetByEmail returns the permission record for a normalized email,
	// or an errors.NotFound AppError when no record exists.
	GetByEmail(ctx context.Context, email string) (*UserPermission, error)
}

// Directory resolves a principal's permission record. Lookups fail
// closed: an absent record is an access denial, never open access.
type Directory struct {
	store PermissionStore
}

// NewDirectory creates a directory over a permission store.
func NewDirectory(store PermissionStore) *Directory {
	return &Directory{store: store}
}

// Resolve returns the permission record for an email. A missing record
// surfaces as Forbidden so callers cannot mistake it for a system error.
func (d *Directory) Resolve(ctx context.Context, email string) (*UserPermission, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, errors.Forbidden("forbidden")
	}

	perm, err := d.store.GetByEmail(ctx, normalized)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Err == errors.ErrNotFound {
			return nil, errors.Forbidden("forbidden")
		}
		return nil, err
	}

	return perm, nil
}

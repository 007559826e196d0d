package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	sharedauth "github.com/edureach/fieldops/internal/shared/auth"
	"github.com/edureach/fieldops/internal/shared/errors"
)

// AdminStore is the repository surface the permission admin API needs.
type AdminStore interface {
	PermissionStore
	Upsert(ctx context.Context, perm *UserPermission) error
}

// Handler provides HTTP handlers for permission record administration.
// Only level-4 (system) admins may use it.
type Handler struct {
	store     AdminStore
	directory *Directory
}

// NewHandler creates a new permission admin handler
func NewHandler(store AdminStore, directory *Directory) *Handler {
	return &Handler{store: store, directory: directory}
}

// Routes registers the permission admin routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Put("/", h.UpsertPermission)
	r.Get("/{email}", h.GetPermission)
	return r
}

func (h *Handler) UpsertPermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.resolveSystemAdmin(w, r); !ok {
		return
	}

	var perm UserPermission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if NormalizeEmail(perm.Email) == "" {
		details["email"] = "email is required"
	}
	if !perm.Role.Valid() {
		details["role"] = "unknown role"
	}
	if !perm.Level.Valid() {
		details["level"] = "level must be between 1 and 4"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("invalid permission record", details))
		return
	}

	if err := h.store.Upsert(r.Context(), &perm); err != nil {
		writeError(w, err)
		return
	}

	perm.Email = NormalizeEmail(perm.Email)
	writeJSON(w, http.StatusOK, perm)
}

func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.resolveSystemAdmin(w, r); !ok {
		return
	}

	perm, err := h.store.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, perm)
}

// resolveSystemAdmin loads the caller's permission record and requires
// level-4 write access. User management is the one capability level 4
// adds over level 3.
func (h *Handler) resolveSystemAdmin(w http.ResponseWriter, r *http.Request) (*UserPermission, bool) {
	principal := sharedauth.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, false
	}

	perm, err := h.directory.Resolve(r.Context(), principal.Email)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	if perm.Level != LevelSystem || perm.Role != RoleAdmin || perm.ReadOnly {
		writeError(w, errors.Forbidden("forbidden"))
		return nil, false
	}

	return perm, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}

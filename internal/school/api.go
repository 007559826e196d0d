package school

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/edureach/fieldops/internal/auth"
	sharedauth "github.com/edureach/fieldops/internal/shared/auth"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/go-chi/chi/v5"
)

// Lister narrows the repository surface the handler needs.
type Lister interface {
	List(ctx context.Context, scope auth.Scope, limit, offset int) ([]School, int, error)
	GetByCode(ctx context.Context, code string) (*School, error)
}

// Handler provides HTTP handlers for the school directory
type Handler struct {
	repo      Lister
	directory *auth.Directory
}

// NewHandler creates a new school handler
func NewHandler(repo Lister, directory *auth.Directory) *Handler {
	return &Handler{repo: repo, directory: directory}
}

// Routes registers the school routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListSchools)
	r.Get("/{schoolCode}", h.GetSchool)
	return r
}

func (h *Handler) ListSchools(w http.ResponseWriter, r *http.Request) {
	perm, ok := h.resolve(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	schools, total, err := h.repo.List(r.Context(), auth.NewScope(perm), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  schools,
		"total": total,
	})
}

func (h *Handler) GetSchool(w http.ResponseWriter, r *http.Request) {
	perm, ok := h.resolve(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "schoolCode")
	s, err := h.repo.GetByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	region := ""
	if s.Region != nil {
		region = *s.Region
	}
	if !auth.NewScope(perm).Matches(s.Code, region) {
		writeError(w, errors.Forbidden("forbidden"))
		return
	}

	writeJSON(w, http.StatusOK, s)
}

// resolve loads the caller's permission record; directory roles only.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*auth.UserPermission, bool) {
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

	if perm.Role != auth.RoleAdmin && perm.Role != auth.RoleProgramAdmin {
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

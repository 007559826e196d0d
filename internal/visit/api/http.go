// Package api exposes the visit and action HTTP surface. The handlers
// are thin: decode, resolve the caller's permission record, delegate to
// the lifecycle engine, and map AppError values onto status codes.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edureach/fieldops/internal/auth"
	"github.com/edureach/fieldops/internal/gps"
	sharedauth "github.com/edureach/fieldops/internal/shared/auth"
	"github.com/edureach/fieldops/internal/shared/errors"
	"github.com/edureach/fieldops/internal/shared/types"
	"github.com/edureach/fieldops/internal/visit/domain"
	"github.com/edureach/fieldops/internal/visit/lifecycle"
)

// Handler provides HTTP handlers for visits and their actions
type Handler struct {
	engine    *lifecycle.Engine
	directory *auth.Directory
}

// NewHandler creates a new visit handler
func NewHandler(engine *lifecycle.Engine, directory *auth.Directory) *Handler {
	return &Handler{engine: engine, directory: directory}
}

// Routes registers the visit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateVisit)
	r.Get("/", h.ListVisits)

	r.Route("/{visitID}", func(r chi.Router) {
		r.Get("/", h.GetVisit)
		r.Patch("/", h.UpdateVisitData)
		r.Post("/complete", h.CompleteVisit)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.CreateAction)
			r.Get("/", h.ListActions)

			r.Route("/{actionID}", func(r chi.Router) {
				r.Get("/", h.GetAction)
				r.Patch("/", h.UpdateActionData)
				r.Delete("/", h.DeleteAction)
				r.Post("/start", h.StartAction)
				r.Post("/end", h.EndAction)
			})
		})
	})

	return r
}

type createVisitRequest struct {
	SchoolCode string `json:"school_code"`
	PMEmail    string `json:"pm_email,omitempty"`
	VisitDate  string `json:"visit_date,omitempty"`
}

func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req createVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	var visitDate time.Time
	if req.VisitDate != "" {
		parsed, err := time.Parse("2006-01-02", req.VisitDate)
		if err != nil {
			writeError(w, errors.Validation("invalid visit", map[string]string{
				"visit_date": "visit date must be YYYY-MM-DD",
			}))
			return
		}
		visitDate = parsed
	}

	v, err := h.engine.CreateVisit(r.Context(), actor, lifecycle.CreateVisitInput{
		SchoolCode: req.SchoolCode,
		PMEmail:    req.PMEmail,
		VisitDate:  visitDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolve(w, r)
	if !ok {
		return
	}

	filter := domain.ListFilter{
		SchoolCode: r.URL.Query().Get("school_code"),
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.VisitStatus(raw)
		if status != domain.VisitStatusInProgress && status != domain.VisitStatusCompleted {
			writeError(w, errors.BadRequest("invalid status filter"))
			return
		}
		filter.Status = &status
	}

	visits, total, err := h.engine.ListVisits(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	if visits == nil {
		visits = []domain.Visit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  visits,
		"total": total,
	})
}

func (h *Handler) GetVisit(w http.ResponseWriter, r *http.Request) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return
	}

	v, err := h.engine.GetVisit(r.Context(), actor, visitID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

type updateDataRequest struct {
	Data map[string]any `json:"data"`
}

func (h *Handler) UpdateVisitData(w http.ResponseWriter, r *http.Request) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return
	}

	var req updateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	v, err := h.engine.UpdateVisitData(r.Context(), actor, visitID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) CompleteVisit(w http.ResponseWriter, r *http.Request) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return
	}

	v, err := h.engine.CompleteVisit(r.Context(), actor, visitID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

type createActionRequest struct {
	ActionType domain.ActionType `json:"action_type"`
}

func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return
	}

	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, err := h.engine.CreateAction(r.Context(), actor, visitID, req.ActionType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return
	}

	actions, err := h.engine.ListActions(r.Context(), actor, visitID)
	if err != nil {
		writeError(w, err)
		return
	}

	if actions == nil {
		actions = []domain.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": actions})
}

func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	actor, visitID, actionID, ok := h.resolveAction(w, r)
	if !ok {
		return
	}

	a, err := h.engine.GetAction(r.Context(), actor, visitID, actionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) UpdateActionData(w http.ResponseWriter, r *http.Request) {
	actor, visitID, actionID, ok := h.resolveAction(w, r)
	if !ok {
		return
	}

	var req updateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, err := h.engine.UpdateActionData(r.Context(), actor, visitID, actionID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	actor, visitID, actionID, ok := h.resolveAction(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeleteAction(r.Context(), actor, visitID, actionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type transitionRequest struct {
	GPS gps.Reading `json:"gps"`
}

func (h *Handler) StartAction(w http.ResponseWriter, r *http.Request) {
	actor, visitID, actionID, ok := h.resolveAction(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, warning, err := h.engine.StartAction(r.Context(), actor, visitID, actionID, req.GPS)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTransition(w, a, warning)
}

func (h *Handler) EndAction(w http.ResponseWriter, r *http.Request) {
	actor, visitID, actionID, ok := h.resolveAction(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, warning, err := h.engine.EndAction(r.Context(), actor, visitID, actionID, req.GPS)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTransition(w, a, warning)
}

// resolve loads the caller's permission record, failing closed on any
// miss.
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

	return perm, true
}

func (h *Handler) resolveVisit(w http.ResponseWriter, r *http.Request) (*auth.UserPermission, types.ID, bool) {
	actor, ok := h.resolve(w, r)
	if !ok {
		return nil, "", false
	}

	visitID, err := types.ParseID(chi.URLParam(r, "visitID"))
	if err != nil {
		writeError(w, errors.NotFound("visit", chi.URLParam(r, "visitID")))
		return nil, "", false
	}

	return actor, visitID, true
}

func (h *Handler) resolveAction(w http.ResponseWriter, r *http.Request) (*auth.UserPermission, types.ID, types.ID, bool) {
	actor, visitID, ok := h.resolveVisit(w, r)
	if !ok {
		return nil, "", "", false
	}

	actionID, err := types.ParseID(chi.URLParam(r, "actionID"))
	if err != nil {
		writeError(w, errors.NotFound("action", chi.URLParam(r, "actionID")))
		return nil, "", "", false
	}

	return actor, visitID, actionID, true
}

// writeTransition renders a started or ended action, surfacing a GPS
// accuracy warning when the validator produced one.
func writeTransition(w http.ResponseWriter, a *domain.Action, warning string) {
	body := map[string]any{"data": a}
	if warning != "" {
		body["gps_warning"] = warning
	}
	writeJSON(w, http.StatusOK, body)
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

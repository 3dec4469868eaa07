package assignment

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

// ServiceProvider is the surface the handlers need; tests stub it.
type ServiceProvider interface {
	Create(ctx context.Context, principal *repo.User, input CreateInput) (*Enriched, error)
	List(ctx context.Context, principal *repo.User, filter ListFilter) ([]Enriched, error)
	Get(ctx context.Context, principal *repo.User, id uuid.UUID) (*Detail, error)
	Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (*Enriched, error)
	Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error
	Voters(ctx context.Context, principal *repo.User, id uuid.UUID) ([]RosterEntry, error)
	GetProgress(ctx context.Context, principal *repo.User, id uuid.UUID) (*Progress, error)
	AddVoters(ctx context.Context, principal *repo.User, id uuid.UUID, voterIDs []uuid.UUID) error
	RemoveVoter(ctx context.Context, principal *repo.User, id, voterID uuid.UUID) error
	Reorder(ctx context.Context, principal *repo.User, id uuid.UUID, orderedVoterIDs []uuid.UUID) error
}

// Handler exposes the assignment endpoints.
type Handler struct {
	service  ServiceProvider
	validate *validator.Validate
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{assignmentID}", h.get)
	r.Patch("/{assignmentID}", h.update)
	r.Delete("/{assignmentID}", h.delete)
	r.Get("/{assignmentID}/voters", h.voters)
	r.Post("/{assignmentID}/voters", h.addVoters)
	r.Put("/{assignmentID}/voters/order", h.reorder)
	r.Delete("/{assignmentID}/voters/{voterID}", h.removeVoter)
	r.Get("/{assignmentID}/progress", h.progress)
}

type createRequest struct {
	UserID       uuid.UUID   `json:"user_id"`
	Name         string      `json:"name" validate:"required"`
	Description  *string     `json:"description"`
	AssignedDate *time.Time  `json:"assigned_date"`
	DueDate      *time.Time  `json:"due_date"`
	VoterIDs     []uuid.UUID `json:"voter_ids"`
}

type updateRequest struct {
	UserID      *uuid.UUID `json:"user_id"`
	Name        *string    `json:"name" validate:"omitempty,min=1"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      *string    `json:"status"`
}

type voterIDsRequest struct {
	VoterIDs []uuid.UUID `json:"voter_ids" validate:"required,min=1"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	filter := ListFilter{Limit: 100}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := repo.AssignmentStatus(v)
		filter.Status = &status
	}
	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "user_id must be a uuid", nil)
			return
		}
		filter.UserID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	assignments, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "user_id is required", nil)
		return
	}

	created, err := h.service.Create(r.Context(), principal, CreateInput{
		UserID:       req.UserID,
		Name:         req.Name,
		Description:  req.Description,
		AssignedDate: req.AssignedDate,
		DueDate:      req.DueDate,
		VoterIDs:     req.VoterIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := UpdateInput{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := repo.AssignmentStatus(*req.Status)
		input.Status = &status
	}

	updated, err := h.service.Update(r.Context(), principal, id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) voters(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	roster, err := h.service.Voters(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *Handler) addVoters(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req voterIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.AddVoters(r.Context(), principal, id, req.VoterIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"added": len(req.VoterIDs)})
}

func (h *Handler) removeVoter(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	voterID, err := uuid.Parse(chi.URLParam(r, "voterID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "voter not on roster", nil)
		return
	}

	if err := h.service.RemoveVoter(r.Context(), principal, id, voterID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req voterIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.Reorder(r.Context(), principal, id, req.VoterIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reordered": true})
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	progress, err := h.service.GetProgress(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request) (*repo.User, uuid.UUID, bool) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "assignment not found", nil)
		return nil, uuid.Nil, false
	}
	return principal, id, true
}

package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

// ServiceProvider is the surface the handlers need; tests stub it.
type ServiceProvider interface {
	Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.User, error)
	List(ctx context.Context, principal *repo.User, filter ListFilter) ([]repo.User, error)
	Get(ctx context.Context, principal *repo.User, id uuid.UUID) (repo.User, error)
	Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.User, error)
	Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error
}

// Handler exposes the user management endpoints.
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
	r.Get("/{userID}", h.get)
	r.Put("/{userID}", h.update)
	r.Delete("/{userID}", h.delete)
}

type createRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	Role     string  `json:"role" validate:"required"`
	Phone    *string `json:"phone"`
	Password string  `json:"password" validate:"required,min=8"`
}

type updateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name" validate:"omitempty,min=1"`
	Role     *string `json:"role"`
	Phone    *string `json:"phone"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	filter := ListFilter{Limit: 100}
	if v := r.URL.Query().Get("role"); v != "" {
		role := repo.Role(v)
		filter.Role = &role
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	users, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
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

	created, err := h.service.Create(r.Context(), principal, CreateInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     repo.Role(req.Role),
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}

	target, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
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
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Password: req.Password,
	}
	if req.Role != nil {
		role := repo.Role(*req.Role)
		input.Role = &role
	}

	updated, err := h.service.Update(r.Context(), principal, id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package contactlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

// ServiceProvider is the surface the handlers need; tests stub it.
type ServiceProvider interface {
	Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.ContactLog, error)
	CreateBatch(ctx context.Context, principal *repo.User, items []CreateInput) (*BatchResult, error)
	List(ctx context.Context, principal *repo.User, filter ListFilter) ([]WithVoter, error)
	Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.ContactLog, error)
	Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error
}

// Handler exposes the contact-log endpoints.
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
	r.Post("/batch", h.createBatch)
	r.Put("/{logID}", h.update)
	r.Delete("/{logID}", h.delete)
}

type createRequest struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	VoterID      uuid.UUID  `json:"voter_id"`
	ContactType  string     `json:"contact_type" validate:"required"`
	Result       *string    `json:"result"`
	SupportLevel *int       `json:"support_level" validate:"omitempty,gte=1,lte=5"`
	Location     *geo.Point `json:"location"`
	ContactedAt  *time.Time `json:"contacted_at"`
}

type batchRequest struct {
	Logs []createRequest `json:"logs" validate:"required,min=1,max=100,dive"`
}

type updateRequest struct {
	ContactType  *string    `json:"contact_type"`
	Result       *string    `json:"result"`
	SupportLevel *int       `json:"support_level" validate:"omitempty,gte=1,lte=5"`
	Location     *geo.Point `json:"location"`
	ContactedAt  *time.Time `json:"contacted_at"`
}

func (r createRequest) toInput() CreateInput {
	return CreateInput{
		AssignmentID: r.AssignmentID,
		VoterID:      r.VoterID,
		ContactType:  repo.ContactType(r.ContactType),
		Result:       r.Result,
		SupportLevel: r.SupportLevel,
		Location:     r.Location,
		ContactedAt:  r.ContactedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	filter := ListFilter{Limit: 100}
	q := r.URL.Query()
	for name, dst := range map[string]**uuid.UUID{
		"assignment_id": &filter.AssignmentID,
		"voter_id":      &filter.VoterID,
	} {
		if v := q.Get(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION", name+" must be a uuid", nil)
				return
			}
			*dst = &id
		}
	}
	if v := q.Get("contact_type"); v != "" {
		ct := repo.ContactType(v)
		filter.ContactType = &ct
	}
	if v := q.Get("support_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "support_level must be an integer", nil)
			return
		}
		filter.SupportLevel = &n
	}
	for name, dst := range map[string]**time.Time{
		"start_date": &filter.StartDate,
		"end_date":   &filter.EndDate,
	} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION", name+" must be RFC 3339", nil)
				return
			}
			*dst = &t
		}
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

	logs, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
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
	if req.AssignmentID == uuid.Nil || req.VoterID == uuid.Nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "assignment_id and voter_id are required", nil)
		return
	}

	created, err := h.service.Create(r.Context(), principal, req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	items := make([]CreateInput, 0, len(req.Logs))
	for _, item := range req.Logs {
		items = append(items, item.toInput())
	}

	result, err := h.service.CreateBatch(r.Context(), principal, items)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "logID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "contact log not found", nil)
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
		Result:       req.Result,
		SupportLevel: req.SupportLevel,
		Location:     req.Location,
		ContactedAt:  req.ContactedAt,
	}
	if req.ContactType != nil {
		ct := repo.ContactType(*req.ContactType)
		input.ContactType = &ct
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

	id, err := uuid.Parse(chi.URLParam(r, "logID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "contact log not found", nil)
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

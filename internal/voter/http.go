package voter

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/geo"
	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
)

// ServiceProvider is the surface the handlers need; tests stub it.
type ServiceProvider interface {
	Create(ctx context.Context, principal *repo.User, input CreateInput) (repo.Voter, error)
	List(ctx context.Context, principal *repo.User, filter ListFilter) ([]repo.Voter, error)
	Get(ctx context.Context, principal *repo.User, id uuid.UUID) (*Detail, error)
	Update(ctx context.Context, principal *repo.User, id uuid.UUID, input UpdateInput) (repo.Voter, error)
	Delete(ctx context.Context, principal *repo.User, id uuid.UUID) error
	Nearby(ctx context.Context, principal *repo.User, ref geo.Point, radiusMeters float64, limit int) ([]NearbyVoter, error)
}

// Handler exposes the voter directory endpoints.
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
	r.Get("/nearby", h.nearby)
	r.Get("/{voterID}", h.get)
	r.Put("/{voterID}", h.update)
	r.Delete("/{voterID}", h.delete)
}

type createRequest struct {
	VoterID          string     `json:"voter_id" validate:"required"`
	FirstName        string     `json:"first_name" validate:"required"`
	LastName         string     `json:"last_name" validate:"required"`
	Address          string     `json:"address" validate:"required"`
	City             string     `json:"city" validate:"required"`
	State            string     `json:"state" validate:"required"`
	Zip              string     `json:"zip" validate:"required"`
	PartyAffiliation *string    `json:"party_affiliation"`
	SupportLevel     *int       `json:"support_level" validate:"omitempty,gte=1,lte=5"`
	Phone            *string    `json:"phone"`
	Email            *string    `json:"email" validate:"omitempty,email"`
	Location         *geo.Point `json:"location"`
}

type updateRequest struct {
	FirstName        *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName         *string    `json:"last_name" validate:"omitempty,min=1"`
	Address          *string    `json:"address"`
	City             *string    `json:"city"`
	State            *string    `json:"state"`
	Zip              *string    `json:"zip"`
	PartyAffiliation *string    `json:"party_affiliation"`
	SupportLevel     *int       `json:"support_level" validate:"omitempty,gte=1,lte=5"`
	Phone            *string    `json:"phone"`
	Email            *string    `json:"email" validate:"omitempty,email"`
	Location         *geo.Point `json:"location"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	filter := ListFilter{Limit: 100}
	q := r.URL.Query()
	for name, dst := range map[string]**string{
		"zip": &filter.Zip, "city": &filter.City, "party": &filter.Party, "q": &filter.Query,
	} {
		if v := q.Get(name); v != "" {
			s := v
			*dst = &s
		}
	}
	if v := q.Get("support_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "support_level must be an integer", nil)
			return
		}
		filter.SupportLevel = &n
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

	voters, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voters)
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
		VoterID:          req.VoterID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Address:          req.Address,
		City:             req.City,
		State:            req.State,
		Zip:              req.Zip,
		PartyAffiliation: req.PartyAffiliation,
		SupportLevel:     req.SupportLevel,
		Phone:            req.Phone,
		Email:            req.Email,
		Location:         req.Location,
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

	id, err := uuid.Parse(chi.URLParam(r, "voterID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "voter not found", nil)
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
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "voterID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "voter not found", nil)
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

	updated, err := h.service.Update(r.Context(), principal, id, UpdateInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Address:          req.Address,
		City:             req.City,
		State:            req.State,
		Zip:              req.Zip,
		PartyAffiliation: req.PartyAffiliation,
		SupportLevel:     req.SupportLevel,
		Phone:            req.Phone,
		Email:            req.Email,
		Location:         req.Location,
	})
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

	id, err := uuid.Parse(chi.URLParam(r, "voterID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "voter not found", nil)
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) nearby(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "not authenticated", nil)
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "latitude and longitude are required", nil)
		return
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "coordinate out of range", nil)
		return
	}

	radius := 1000.0
	if v := q.Get("radius_meters"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "radius_meters must be a number", nil)
			return
		}
		radius = f
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	voters, err := h.service.Nearby(r.Context(), principal,
		geo.Point{Latitude: lat, Longitude: lng}, radius, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voters)
}

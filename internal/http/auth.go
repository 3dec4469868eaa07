package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

// AuthProvider is the auth surface the handlers need; tests stub it.
type AuthProvider interface {
	Signup(ctx context.Context, input service.SignupInput) (*service.TokenResult, error)
	Login(ctx context.Context, email, password string) (*service.TokenResult, error)
	Logout(ctx context.Context, jti string, expiry time.Time) error
}

type signupRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"full_name" validate:"required"`
	Role     string  `json:"role" validate:"required"`
	Phone    *string `json:"phone"`
	Password string  `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteValidationError(w, err)
		return
	}

	role := repo.Role(req.Role)
	if !role.Valid() {
		WriteError(w, http.StatusUnprocessableEntity, "VALIDATION", "unknown role")
		return
	}

	result, err := h.auth.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     role,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			WriteError(w, http.StatusBadRequest, "CONFLICT", err.Error())
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteValidationError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			WriteError(w, http.StatusUnauthorized, "AUTH", err.Error())
			return
		}
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := httpmiddleware.GetPrincipal(r.Context())
	if principal == nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "not authenticated")
		return
	}
	WriteJSON(w, http.StatusOK, principal)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	jti := httpmiddleware.GetTokenID(r.Context())
	expiry := httpmiddleware.GetTokenExpiry(r.Context())

	if err := h.auth.Logout(r.Context(), jti, expiry); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

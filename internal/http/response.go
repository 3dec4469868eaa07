package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type envelope struct {
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetails(w, status, code, message, nil)
}

// WriteErrorDetails writes the error envelope with a details payload.
func WriteErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// WriteServiceError maps domain errors onto HTTP statuses. Unknown errors
// become opaque 500s and are logged.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	case errors.Is(err, repo.ErrConflict):
		WriteError(w, http.StatusBadRequest, "CONFLICT", err.Error())
	case errors.Is(err, service.ErrValidation):
		WriteError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// WriteValidationError turns validator.v10 failures into a 422 with one
// details entry per failed field.
func WriteValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]map[string]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, map[string]string{
				"field": fe.Field(),
				"rule":  fe.Tag(),
			})
		}
		WriteErrorDetails(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid request body", details)
		return
	}
	WriteError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
}

// DecodeJSON strictly decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

package contactlog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/votefield/canvass/internal/repo"
	"github.com/votefield/canvass/internal/service"
)

type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: &errorBody{Code: code, Message: message, Details: details},
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
	case errors.Is(err, repo.ErrInvalidReference):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "unknown voter id", nil)
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("contactlog: unhandled service error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]map[string]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
		}
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid request body", details)
		return
	}
	writeError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
}

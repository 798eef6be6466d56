package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"PizzaLeaderserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps service errors onto status codes. Anything not
// recognised is a 500 and its text is not echoed.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrInvalidOperation):
		WriteError(w, http.StatusBadRequest, "invalid_operation", "operation not allowed")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "unauthorized", "not allowed")
	case errors.Is(err, domain.ErrNoMatch):
		WriteError(w, http.StatusNotFound, "no_match", "no participant matches the query")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already taken")
	case errors.Is(err, domain.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, "already_exists", "already exists")
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, "invalid_state", "state changed, reload and retry")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBadJSON(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/relaypoint/message-relay/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// JSONError writes an error response
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// HandleError maps domain errors to HTTP responses. Validation and
// configuration failures never spent network effort; circuit-open and
// exhausted transients surface as service-unavailable so callers back off.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		JSONError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
		return

	case errors.Is(err, domain.ErrRateLimitExceeded):
		JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many messages to this destination", nil)
		return
	}

	var validationErr domain.ValidationError
	if errors.As(err, &validationErr) {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, map[string]string{
			"field": validationErr.Field,
		})
		return
	}

	var validationErrs domain.ValidationErrors
	if errors.As(err, &validationErrs) {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", validationErrs.Errors)
		return
	}

	var configErr domain.ConfigurationError
	if errors.As(err, &configErr) {
		// A deployment defect; the middleware logging will surface the 500.
		JSONError(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Provider is misconfigured", nil)
		return
	}

	var sendErr *domain.SendError
	if errors.As(err, &sendErr) {
		switch sendErr.Kind {
		case domain.FailureCircuitOpen:
			JSONError(w, http.StatusServiceUnavailable, "CIRCUIT_OPEN", "Provider is temporarily unavailable", nil)
		case domain.FailureTimeout, domain.FailureNetwork, domain.FailureTransient:
			JSONError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Provider did not accept the message", map[string]any{
				"failure_kind": sendErr.Kind,
			})
		case domain.FailurePermanent:
			JSONError(w, http.StatusBadGateway, "PROVIDER_REJECTED", "Provider rejected the message", map[string]any{
				"provider_status": sendErr.StatusCode,
			})
		default:
			JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		}
		return
	}

	JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}

// DecodeJSON decodes JSON request body
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.NewValidationError("body", "request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}

	return nil
}

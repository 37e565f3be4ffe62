package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleDomainError converts an error from the session or checkout layer into an
// HTTP answer carrying the user-facing message.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrSubmitInFlight):
		respondError(w, http.StatusConflict, "submit_in_flight", "Your order is already being placed.")
		return
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", "This checkout step is not available right now.")
		return
	}

	e, ok := d.AsError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal_error", d.UserMessage(err))
		return
	}

	var httpStatus int
	switch e.Kind {
	case d.KindAuthentication:
		httpStatus = http.StatusUnauthorized
	case d.KindAuthorization:
		httpStatus = http.StatusForbidden
	case d.KindValidation:
		httpStatus = http.StatusBadRequest
	case d.KindPrecondition:
		httpStatus = http.StatusUnprocessableEntity
	case d.KindGateway:
		httpStatus = http.StatusBadGateway
	case d.KindInfrastructure:
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusInternalServerError
	}

	respondError(w, httpStatus, e.Code, d.UserMessage(e))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"essaylens/internal/app"
	"essaylens/internal/config"
	"essaylens/internal/llm"
	"essaylens/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeErrorResponse(w http.ResponseWriter, resp types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case config.IsValidation(err):
		return http.StatusBadRequest
	case llm.IsDecode(err):
		return http.StatusUnprocessableEntity
	case app.IsTooBusy(err):
		return http.StatusTooManyRequests
	case app.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case llm.IsHTTPError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status and returns the status.
func writeServiceError(w http.ResponseWriter, err error) int {
	resp := types.ErrorResponse{Error: err.Error(), Code: statusFor(err)}
	var de *llm.DecodeError
	if errors.As(err, &de) {
		resp.Raw = de.Raw
	}
	if resp.Code == http.StatusTooManyRequests {
		IncrementBackpressure(app.TooBusyReason(err))
	}
	writeErrorResponse(w, resp)
	return resp.Code
}

// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/yanagi/internal/control"
	"github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/syoboi"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "api.error").Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error(), RequestID: log.RequestIDFromContext(r.Context())})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, control.ErrInvalidTID):
		return http.StatusBadRequest
	case errors.Is(err, control.ErrTitleNotFound):
		return http.StatusNotFound
	case errors.Is(err, control.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, syoboi.ErrUpstreamUnavailable),
		errors.Is(err, syoboi.ErrUpstreamError),
		errors.Is(err, syoboi.ErrUpstreamRejected),
		errors.Is(err, syoboi.ErrBadResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

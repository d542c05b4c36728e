package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kimchiscan/kimchiscan/internal/models"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Encoding response failed")
	}
}

// writeError maps the domain error taxonomy to HTTP statuses: missing
// data is 404, upstream trouble is 502, store trouble is 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var (
		transportErr *models.TransportError
		externalErr  *models.ExternalAPIError
	)
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &transportErr), errors.As(err, &externalErr):
		status = http.StatusBadGateway
	}

	requestID, _ := r.Context().Value(requestIDKey).(string)
	if status >= 500 {
		log.Error().Str("request_id", requestID).Str("path", r.URL.Path).Err(err).Msg("Request failed")
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: requestID})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	requestID, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, RequestID: requestID})
}

package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/service"
)

type apiError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// writeServiceErr maps service and store errors to status codes. Unknown
// errors are logged and hidden behind a 500.
func writeServiceErr(w http.ResponseWriter, log zerolog.Logger, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, apiError{Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, entity.ErrNotFound):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, entity.ErrAlreadyExists):
		writeErr(w, http.StatusConflict, "job already exists")
	default:
		log.Error().Err(err).Msg("request failed")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

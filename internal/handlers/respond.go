package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
)

const maxJSONBody = 1 << 20 // 1MB

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeServiceError maps service and store errors onto HTTP statuses.
// notFound is the message used for store.ErrNotFound.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var transition *models.TransitionError
	switch {
	case models.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, transition.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Record already exists")
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Invalid("Request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.Invalid("Request body too large")
		}
		return models.Invalid("Malformed JSON body")
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"buildtrack/internal/service"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondError(w http.ResponseWriter, status int, kind string) {
	respondJSON(w, status, map[string]string{"error": kind})
}

// respondServiceError maps service failure kinds onto the HTTP taxonomy.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalid):
		respondError(w, http.StatusBadRequest, "invalid")
	case errors.Is(err, service.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, "invalid_transition")
	case errors.Is(err, service.ErrTooLarge):
		respondError(w, http.StatusBadRequest, "too_large")
	case errors.Is(err, service.ErrExists):
		respondError(w, http.StatusConflict, "exists")
	default:
		respondError(w, http.StatusInternalServerError, "internal")
	}
}

func urlID(r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func queryUint(r *http.Request, key string) uint {
	n, err := strconv.ParseUint(r.URL.Query().Get(key), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

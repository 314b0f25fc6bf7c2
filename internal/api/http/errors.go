package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/reshuffle/internal/archive"
	"github.com/mind-engage/reshuffle/internal/checking"
	"github.com/mind-engage/reshuffle/internal/docs"
	"github.com/mind-engage/reshuffle/internal/lock"
	"github.com/mind-engage/reshuffle/internal/storage"
	"github.com/mind-engage/reshuffle/internal/taskbank"
	"github.com/mind-engage/reshuffle/internal/variant"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrNotFound),
		errors.Is(err, taskbank.ErrNotFound),
		errors.Is(err, storage.ErrNotExist),
		errors.Is(err, checking.ErrUnknownWork):
		return http.StatusNotFound
	case errors.Is(err, docs.ErrInvalidRequest), errors.Is(err, checking.ErrBadOverlay):
		return http.StatusBadRequest
	case errors.Is(err, variant.ErrInvalidTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lock.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

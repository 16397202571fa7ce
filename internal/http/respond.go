package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finview/internal/core"
	"finview/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed request bodies and query values.
var errBadRequest = errors.New("bad request")

var clientErrors = []error{
	errBadRequest,
	core.ErrInvalidAmount,
	core.ErrEmptyCategory,
	core.ErrCategoryTooLong,
	core.ErrDescriptionTooLong,
	core.ErrFutureDate,
	core.ErrUnknownKind,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to 400 and hides everything else behind a
// generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// allowMethod writes 405 with an Allow header unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

package devapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// fieldError is one entry of a pydantic-style 422 body.
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondDetail writes {"detail": msg}.
func respondDetail(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"detail": msg})
}

// respondValidation writes a 422 with an array-shaped detail.
func respondValidation(w http.ResponseWriter, errs []fieldError) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

func missingField(name string) fieldError {
	return fieldError{Loc: []any{"body", name}, Msg: "field required", Type: "value_error.missing"}
}

// decodeBody decodes a JSON body into v, writing a 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondValidation(w, []fieldError{{Loc: []any{"body"}, Msg: "invalid JSON: " + err.Error(), Type: "value_error.jsondecode"}})
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, writing a 422 when it is not an int.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondValidation(w, []fieldError{{Loc: []any{"path", "id"}, Msg: "value is not a valid integer", Type: "type_error.integer"}})
		return 0, false
	}
	return id, true
}

// maxLimit caps the page size a client can ask for.
const maxLimit = 1000

// pagination reads skip and limit with the backend defaults.
func pagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit = 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	return skip, limit
}

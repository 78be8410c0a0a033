package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func parseJSON(r *http.Request, model any) error {
	if r.Body == nil {
		return badRequest("missing request body")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(model); err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vcfgate/internal/apperr"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	typed := apperr.From(err)
	writeJSON(w, apperr.Status(typed.Code), errorResponse{
		Code:    typed.Code,
		Message: typed.Message,
		Details: typed.Details,
	})
}

// WriteError is an exported helper for returning the structured JSON error
// shape from middleware.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

func writeMethodNotAllowed(w http.ResponseWriter, method, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Code:    apperr.CodeInvalidRequest,
		Message: fmt.Sprintf("method %s not allowed", method),
	})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

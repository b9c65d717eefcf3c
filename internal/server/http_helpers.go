package server

import (
	"net/http"

	"vcfgate/internal/api"
	"vcfgate/internal/apperr"
)

// writeMiddlewareError normalises middleware error responses to the API JSON shape.
func writeMiddlewareError(w http.ResponseWriter, code, message string) {
	api.WriteError(w, apperr.New(code, message))
}

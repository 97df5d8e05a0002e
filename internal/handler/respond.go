// Package handler provides HTTP handlers for the device inventory
// service.
package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError renders any error through the application error
// taxonomy; unknown errors surface as 500 INTERNAL_ERROR without
// leaking their cause.
func respondError(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	w.Write(appErr.ToJSON())
}

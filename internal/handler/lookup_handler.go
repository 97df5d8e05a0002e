package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/service"
)

// LookupHandler handles HTTP requests for the lookup catalog.
type LookupHandler struct {
	lookups *service.LookupService
}

// NewLookupHandler creates a new lookup handler.
func NewLookupHandler(lookups *service.LookupService) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

// RegisterRoutes registers lookup catalog routes.
func (h *LookupHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/device-types", h.ListDeviceTypes).Methods("GET")
	r.HandleFunc("/device-types", h.CreateDeviceType).Methods("POST")
	r.HandleFunc("/manufacturers", h.ListManufacturers).Methods("GET")
	r.HandleFunc("/manufacturers", h.CreateManufacturer).Methods("POST")
}

// ListDeviceTypes returns all device types.
func (h *LookupHandler) ListDeviceTypes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lookups.ListDeviceTypes(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// CreateDeviceType adds a device type to the catalog.
func (h *LookupHandler) CreateDeviceType(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	entry, err := h.lookups.CreateDeviceType(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// ListManufacturers returns all manufacturers.
func (h *LookupHandler) ListManufacturers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.lookups.ListManufacturers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// CreateManufacturer adds a manufacturer to the catalog.
func (h *LookupHandler) CreateManufacturer(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	entry, err := h.lookups.CreateManufacturer(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/export"
	"github.com/netgrid-tools/devicehub/internal/middleware"
	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/service"
)

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 8 << 20

// DeviceHandler handles HTTP requests for the device registry and the
// operations layered on top of it.
type DeviceHandler struct {
	devices     *service.DeviceService
	assignments *service.AssignmentService
	files       *service.FileService
	history     *service.HistoryService
	exporter    *export.CSVExporter
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(devices *service.DeviceService, assignments *service.AssignmentService, files *service.FileService, history *service.HistoryService, exporter *export.CSVExporter) *DeviceHandler {
	return &DeviceHandler{
		devices:     devices,
		assignments: assignments,
		files:       files,
		history:     history,
		exporter:    exporter,
	}
}

// RegisterRoutes registers device routes.
func (h *DeviceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/devices", h.CreateDevice).Methods("POST")
	r.HandleFunc("/devices", h.ListDevices).Methods("GET")
	r.HandleFunc("/devices/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/devices/export", h.ExportCSV).Methods("GET")
	r.HandleFunc("/devices/{id:[0-9]+}", h.GetDevice).Methods("GET")
	r.HandleFunc("/devices/{id:[0-9]+}", h.UpdateDevice).Methods("PUT", "PATCH")
	r.HandleFunc("/devices/{id:[0-9]+}", h.DeleteDevice).Methods("DELETE")
	r.HandleFunc("/devices/{id:[0-9]+}/assign", h.AssignDevice).Methods("POST")
	r.HandleFunc("/devices/{id:[0-9]+}/checkin", h.CheckInDevice).Methods("POST")
	r.HandleFunc("/devices/{id:[0-9]+}/files", h.UploadFile).Methods("POST")
	r.HandleFunc("/devices/{id:[0-9]+}/files", h.ListFiles).Methods("GET")
	r.HandleFunc("/devices/{id:[0-9]+}/files/{fileId:[0-9]+}/download", h.DownloadFile).Methods("GET")
	r.HandleFunc("/devices/{id:[0-9]+}/history", h.GetHistory).Methods("GET")
}

// CreateDevice registers a new device.
func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	device, err := h.devices.Create(r.Context(), &req, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, device)
}

// ListDevices retrieves devices matching the filter query parameters.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	filter := parseDeviceFilter(r)

	devices, err := h.devices.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, devices)
}

// GetDevice retrieves a device by id.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	device, err := h.devices.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// UpdateDevice applies a partial update to a device.
func (h *DeviceHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	var req model.UpdateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	device, err := h.devices.Update(r.Context(), id, &req, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// DeleteDevice removes a device and its attachment and history rows.
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	device, err := h.devices.Delete(r.Context(), id, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// GetStats returns inventory counts.
func (h *DeviceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.devices.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// AssignDevice checks a device out to a user.
func (h *DeviceHandler) AssignDevice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	device, err := h.assignments.Assign(r.Context(), id, req.UserID, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// CheckInDevice returns a device to the available state.
func (h *DeviceHandler) CheckInDevice(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	device, err := h.assignments.CheckIn(r.Context(), id, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// UploadFile appends a versioned attachment from a multipart form. The
// body is bounded before parsing: ParseMultipartForm spills oversized
// parts to temp files, so without the reader cap an arbitrarily large
// upload would consume disk and memory before the size check ran.
func (h *DeviceHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxFileSize()+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, apperrors.Validation("file exceeds the maximum size").WithDetail("field", "file"))
			return
		}
		respondError(w, apperrors.BadRequest("invalid multipart form"))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, apperrors.Validation("file field is required").WithDetail("field", "file"))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		respondError(w, apperrors.BadRequest("failed to read upload"))
		return
	}

	file, err := h.files.AddFile(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, file)
}

// ListFiles returns a device's attachments, most recent version first.
func (h *DeviceHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	files, err := h.files.ListFiles(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, files)
}

// DownloadFile streams one attachment's bytes.
func (h *DeviceHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	fileID := pathID(r, "fileId")

	file, data, err := h.files.Download(r.Context(), id, fileID)
	if err != nil {
		respondError(w, err)
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// GetHistory returns a device's audit trail, newest first.
func (h *DeviceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil {
			limit = l
		}
	}

	entries, err := h.history.List(r.Context(), id, limit, middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// ExportCSV renders the filtered device list as a CSV attachment.
func (h *DeviceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter := parseDeviceFilter(r)

	data, err := h.exporter.Export(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.csv"`)
	w.Write(data)
}

func parseDeviceFilter(r *http.Request) *model.DeviceFilter {
	query := r.URL.Query()
	return &model.DeviceFilter{
		Search: query.Get("search"),
		Status: model.DeviceStatus(query.Get("status")),
	}
}

// pathID parses a numeric path variable. The route patterns restrict
// these to digits, so a parse failure cannot happen on a matched route.
func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

// Package service provides business logic for the device inventory.
package service

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/repository"
)

// ipPattern is deliberately digit-count only: four dot-separated groups
// of one to three digits, without octet range checks.
var ipPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// DeviceService provides device registry operations. Validation lives
// here so create and update enforce identical invariants, and a status
// change can never bypass the audit trail.
type DeviceService struct {
	devices repository.DeviceRepository
	lookups repository.LookupRepository
	history repository.HistoryRepository
	logger  *slog.Logger
}

// NewDeviceService creates a new device service.
func NewDeviceService(devices repository.DeviceRepository, lookups repository.LookupRepository, history repository.HistoryRepository, logger *slog.Logger) *DeviceService {
	return &DeviceService{
		devices: devices,
		lookups: lookups,
		history: history,
		logger:  logger.With("component", "device-service"),
	}
}

// List retrieves devices matching the filter, ordered by id ascending.
func (s *DeviceService) List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error) {
	if filter != nil && filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("invalid status filter").WithDetail("field", "status")
	}
	return s.devices.List(ctx, filter)
}

// Get retrieves a device by id.
func (s *DeviceService) Get(ctx context.Context, id int64) (*model.Device, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}
	return device, nil
}

// Create registers a new device and appends a created history entry.
func (s *DeviceService) Create(ctx context.Context, req *model.CreateDeviceRequest, principal *model.Principal) (*model.Device, error) {
	if req.Hostname == "" {
		return nil, apperrors.Validation("hostname is required").WithDetail("field", "hostname")
	}
	if req.IPAddress == "" {
		return nil, apperrors.Validation("ip_address is required").WithDetail("field", "ip_address")
	}
	if !ipPattern.MatchString(req.IPAddress) {
		return nil, apperrors.Validation("ip_address must be a dotted quad").WithDetail("field", "ip_address")
	}
	if req.DeviceType == "" && req.DeviceTypeID == nil {
		return nil, apperrors.Validation("one of device_type or device_type_id is required").WithDetail("field", "device_type")
	}

	status := req.Status
	if status == "" {
		status = model.StatusActive
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid status").WithDetail("field", "status")
	}

	// When both are supplied the free-text label wins, but the id is
	// stored too.
	label := req.DeviceType
	if req.DeviceTypeID != nil {
		entry, err := s.lookups.GetDeviceType(ctx, *req.DeviceTypeID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, apperrors.Validation("unknown device_type_id").WithDetail("field", "device_type_id")
		}
		if label == "" {
			label = entry.Name
		}
	}

	if req.ManufacturerID != nil {
		entry, err := s.lookups.GetManufacturer(ctx, *req.ManufacturerID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, apperrors.Validation("unknown manufacturer_id").WithDetail("field", "manufacturer_id")
		}
	}

	device := &model.Device{
		Hostname:       req.Hostname,
		IPAddress:      req.IPAddress,
		DeviceType:     label,
		DeviceTypeID:   req.DeviceTypeID,
		ManufacturerID: req.ManufacturerID,
		Location:       req.Location,
		Status:         status,
		Notes:          req.Notes,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.devices.Create(ctx, device); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("hostname already exists").WithDetail("field", "hostname")
		}
		return nil, err
	}

	s.recordHistory(ctx, device.ID, model.ActionCreated, principal, map[string]interface{}{
		"hostname": device.Hostname,
		"status":   string(device.Status),
	})

	return device, nil
}

// Update applies a partial update. Nil request fields are untouched. A
// status change appends exactly one status_changed history entry.
func (s *DeviceService) Update(ctx context.Context, id int64, req *model.UpdateDeviceRequest, principal *model.Principal) (*model.Device, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}

	oldStatus := device.Status

	if req.Hostname != nil {
		if *req.Hostname == "" {
			return nil, apperrors.Validation("hostname cannot be empty").WithDetail("field", "hostname")
		}
		device.Hostname = *req.Hostname
	}
	if req.IPAddress != nil {
		if !ipPattern.MatchString(*req.IPAddress) {
			return nil, apperrors.Validation("ip_address must be a dotted quad").WithDetail("field", "ip_address")
		}
		device.IPAddress = *req.IPAddress
	}
	if req.DeviceType != nil {
		// clearing the label is only allowed while a catalog id remains
		if *req.DeviceType == "" && device.DeviceTypeID == nil && req.DeviceTypeID == nil {
			return nil, apperrors.Validation("one of device_type or device_type_id is required").WithDetail("field", "device_type")
		}
		device.DeviceType = *req.DeviceType
	}
	if req.DeviceTypeID != nil {
		entry, err := s.lookups.GetDeviceType(ctx, *req.DeviceTypeID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, apperrors.Validation("unknown device_type_id").WithDetail("field", "device_type_id")
		}
		device.DeviceTypeID = req.DeviceTypeID
		if device.DeviceType == "" {
			device.DeviceType = entry.Name
		}
	}
	if req.ManufacturerID != nil {
		entry, err := s.lookups.GetManufacturer(ctx, *req.ManufacturerID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, apperrors.Validation("unknown manufacturer_id").WithDetail("field", "manufacturer_id")
		}
		device.ManufacturerID = req.ManufacturerID
	}
	if req.Location != nil {
		device.Location = *req.Location
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperrors.Validation("invalid status").WithDetail("field", "status")
		}
		device.Status = *req.Status
	}
	if req.Notes != nil {
		device.Notes = *req.Notes
	}

	if err := s.devices.Update(ctx, device); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("hostname already exists").WithDetail("field", "hostname")
		}
		return nil, err
	}

	if device.Status != oldStatus {
		s.recordHistory(ctx, device.ID, model.ActionStatusChanged, principal, map[string]interface{}{
			"from": string(oldStatus),
			"to":   string(device.Status),
		})
	}

	return device, nil
}

// Delete removes a device. Attachment and history rows cascade with it,
// so the deletion itself is only observable in the structured log.
func (s *DeviceService) Delete(ctx context.Context, id int64, principal *model.Principal) (*model.Device, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}

	if err := s.devices.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("device deleted",
		"device_id", id,
		"hostname", device.Hostname,
		"actor_user_id", principal.ActorID(),
	)

	return device, nil
}

// Stats returns inventory counts.
func (s *DeviceService) Stats(ctx context.Context) (*model.DeviceStats, error) {
	return s.devices.Stats(ctx)
}

// recordHistory appends a ledger entry as a side effect of a registry
// mutation. A ledger failure is logged, not surfaced; the mutation has
// already committed.
func (s *DeviceService) recordHistory(ctx context.Context, deviceID int64, action model.HistoryAction, principal *model.Principal, details map[string]interface{}) {
	entry := &model.HistoryEntry{
		DeviceID:    deviceID,
		Action:      action,
		ActorUserID: principal.ActorID(),
		Details:     details,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append history", "error", err, "device_id", deviceID, "action", action)
	}
}

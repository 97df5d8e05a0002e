package service

import (
	"context"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/repository"
)

// defaultHistoryLimit caps history reads when the caller gives none.
const defaultHistoryLimit = 100

// HistoryService provides read access to the append-only audit ledger.
// Writes happen inside the device and assignment services as side
// effects of the operations they record.
type HistoryService struct {
	history repository.HistoryRepository
	devices repository.DeviceRepository
}

// NewHistoryService creates a new history service.
func NewHistoryService(history repository.HistoryRepository, devices repository.DeviceRepository) *HistoryService {
	return &HistoryService{history: history, devices: devices}
}

// List returns a device's history, newest first. Reading the ledger is
// gated on an authenticated active principal.
func (s *HistoryService) List(ctx context.Context, deviceID int64, limit int, principal *model.Principal) ([]*model.HistoryEntry, error) {
	if err := requireActivePrincipal(principal); err != nil {
		return nil, err
	}

	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return s.history.ListByDevice(ctx, deviceID, limit)
}

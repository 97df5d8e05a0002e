package service

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/directory"
	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/repository"
)

// AssignmentService manages the check-out/check-in state machine over
// device records. Both assignment fields are written in one statement,
// so assigned_user_id and assigned_at always change together.
type AssignmentService struct {
	devices repository.DeviceRepository
	history repository.HistoryRepository
	users   directory.Directory
	logger  *slog.Logger
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(devices repository.DeviceRepository, history repository.HistoryRepository, users directory.Directory, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		devices: devices,
		history: history,
		users:   users,
		logger:  logger.With("component", "assignment-service"),
	}
}

// Assign checks a device out to a user. Re-assigning an already
// assigned device is permitted and overwrites the previous assignee;
// the history entry carries the previous holder so the overwrite stays
// auditable.
func (s *AssignmentService) Assign(ctx context.Context, deviceID, userID int64, principal *model.Principal) (*model.Device, error) {
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

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	if !user.Active {
		return nil, apperrors.Validation("user is not active").WithDetail("field", "user_id")
	}

	previous := device.AssignedUserID

	now := time.Now().UTC()
	if err := s.devices.UpdateAssignment(ctx, deviceID, &userID, &now); err != nil {
		return nil, err
	}

	device.AssignedUserID = &userID
	device.AssignedAt = &now
	device.AssigneeName = user.DisplayName
	device.AssigneeEmail = user.Email

	details := map[string]interface{}{
		"assigned_user_id": userID,
	}
	if previous != nil {
		details["previous_user_id"] = *previous
	}
	s.recordHistory(ctx, deviceID, model.ActionAssigned, principal, details)

	s.logger.Info("device assigned",
		"device_id", deviceID,
		"user_id", userID,
		"actor_user_id", principal.ID,
	)

	return device, nil
}

// CheckIn returns a device to the available state. It is idempotent:
// checking in an already available device succeeds and still appends a
// checked_in history entry.
func (s *AssignmentService) CheckIn(ctx context.Context, deviceID int64, principal *model.Principal) (*model.Device, error) {
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

	if err := s.devices.UpdateAssignment(ctx, deviceID, nil, nil); err != nil {
		return nil, err
	}

	device.AssignedUserID = nil
	device.AssignedAt = nil
	device.AssigneeName = ""
	device.AssigneeEmail = ""

	s.recordHistory(ctx, deviceID, model.ActionCheckedIn, principal, nil)

	s.logger.Info("device checked in",
		"device_id", deviceID,
		"actor_user_id", principal.ID,
	)

	return device, nil
}

func (s *AssignmentService) recordHistory(ctx context.Context, deviceID int64, action model.HistoryAction, principal *model.Principal, details map[string]interface{}) {
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

// requireActivePrincipal gates operations that need a non-anonymous,
// active caller.
func requireActivePrincipal(p *model.Principal) error {
	if p == nil {
		return apperrors.Unauthorized("authentication required")
	}
	if !p.Active {
		return apperrors.Forbidden("principal is not active")
	}
	return nil
}

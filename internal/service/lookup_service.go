package service

import (
	"context"
	"strings"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/repository"
)

// LookupService exposes the normalized device-type and manufacturer
// vocabularies. Entries are created, never deleted; devices reference
// them by id.
type LookupService struct {
	lookups repository.LookupRepository
}

// NewLookupService creates a new lookup service.
func NewLookupService(lookups repository.LookupRepository) *LookupService {
	return &LookupService{lookups: lookups}
}

// ListDeviceTypes returns all device types, name ascending.
func (s *LookupService) ListDeviceTypes(ctx context.Context) ([]*model.Lookup, error) {
	return s.lookups.ListDeviceTypes(ctx)
}

// CreateDeviceType adds a device type to the catalog.
func (s *LookupService) CreateDeviceType(ctx context.Context, req *model.CreateLookupRequest) (*model.Lookup, error) {
	name, err := validateLookupName(req)
	if err != nil {
		return nil, err
	}

	entry, err := s.lookups.CreateDeviceType(ctx, name)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("device type already exists").WithDetail("field", "name")
		}
		return nil, err
	}

	return entry, nil
}

// ListManufacturers returns all manufacturers, name ascending.
func (s *LookupService) ListManufacturers(ctx context.Context) ([]*model.Lookup, error) {
	return s.lookups.ListManufacturers(ctx)
}

// CreateManufacturer adds a manufacturer to the catalog.
func (s *LookupService) CreateManufacturer(ctx context.Context, req *model.CreateLookupRequest) (*model.Lookup, error) {
	name, err := validateLookupName(req)
	if err != nil {
		return nil, err
	}

	entry, err := s.lookups.CreateManufacturer(ctx, name)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("manufacturer already exists").WithDetail("field", "name")
		}
		return nil, err
	}

	return entry, nil
}

func validateLookupName(req *model.CreateLookupRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", apperrors.Validation("name is required").WithDetail("field", "name")
	}
	return name, nil
}

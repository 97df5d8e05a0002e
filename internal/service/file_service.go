package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/blob"
	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/repository"
)

// versionRetries bounds the insert-retry loop when concurrent uploads
// race for the same version slot.
const versionRetries = 5

// FileService provides the versioned attachment store for device
// configuration files. Rows are append-only: every upload gets the next
// version and historical versions stay addressable.
type FileService struct {
	files   repository.FileRepository
	devices repository.DeviceRepository
	store   blob.Store
	maxSize int64
	logger  *slog.Logger
}

// NewFileService creates a new file service. maxSize bounds upload
// payloads in bytes.
func NewFileService(files repository.FileRepository, devices repository.DeviceRepository, store blob.Store, maxSize int64, logger *slog.Logger) *FileService {
	return &FileService{
		files:   files,
		devices: devices,
		store:   store,
		maxSize: maxSize,
		logger:  logger.With("component", "file-service"),
	}
}

// MaxFileSize returns the upload size bound in bytes, so the transport
// layer can cut oversized requests off before buffering them.
func (s *FileService) MaxFileSize() int64 {
	return s.maxSize
}

// AddFile stores the upload bytes in the blob sink and records metadata
// with the next version for the device. The version is computed inside
// the insert; when two uploads race, the unique (device_id, version)
// index rejects the loser and the insert is retried with a freshly
// computed version, up to versionRetries attempts.
func (s *FileService) AddFile(ctx context.Context, deviceID int64, filename, contentType string, data []byte) (*model.DeviceFile, error) {
	if len(data) == 0 {
		return nil, apperrors.Validation("file is empty").WithDetail("field", "file")
	}
	if int64(len(data)) > s.maxSize {
		return nil, apperrors.Validation(fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxSize)).WithDetail("field", "file")
	}
	if filename == "" {
		filename = "upload"
	}

	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}

	// The blob is written before any metadata exists, so a locator is
	// never referenced until its bytes are durably stored.
	key := s.storageKey(deviceID, filename)
	locator, err := s.store.Put(ctx, key, data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to store file")
	}

	file := &model.DeviceFile{
		DeviceID:       deviceID,
		Filename:       filename,
		StorageLocator: locator,
		ContentType:    contentType,
		FileSize:       int64(len(data)),
		UploadedAt:     time.Now().UTC(),
	}

	for attempt := 1; ; attempt++ {
		err = s.files.Insert(ctx, file)
		if err == nil {
			break
		}
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		if attempt >= versionRetries {
			s.logger.Error("version retries exhausted",
				"device_id", deviceID,
				"attempts", attempt,
			)
			return nil, apperrors.Conflict("could not allocate file version, retry the upload")
		}
		s.logger.Debug("version slot taken, retrying",
			"device_id", deviceID,
			"attempt", attempt,
		)
	}

	s.logger.Info("file uploaded",
		"device_id", deviceID,
		"file_id", file.ID,
		"version", file.Version,
		"size", file.FileSize,
	)

	return file, nil
}

// ListFiles returns a device's attachments, most recent version first.
func (s *FileService) ListFiles(ctx context.Context, deviceID int64) ([]*model.DeviceFile, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperrors.NotFound("device")
	}

	return s.files.ListByDevice(ctx, deviceID)
}

// Download resolves one attachment and fetches its bytes from the blob
// sink.
func (s *FileService) Download(ctx context.Context, deviceID, fileID int64) (*model.DeviceFile, []byte, error) {
	file, err := s.files.GetByID(ctx, deviceID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, apperrors.NotFound("file")
	}

	data, err := s.store.Get(ctx, file.StorageLocator)
	if err == blob.ErrNotFound {
		return nil, nil, apperrors.NotFound("file contents")
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to retrieve file")
	}

	return file, data, nil
}

// storageKey builds a collision-resistant blob key from the device id,
// an upload timestamp and the sanitized original filename. The key, not
// the untrusted filename, addresses the blob sink.
func (s *FileService) storageKey(deviceID int64, filename string) string {
	return fmt.Sprintf("devices/%d/%d_%s", deviceID, time.Now().UnixNano(), sanitizeFilename(filename))
}

// sanitizeFilename collapses whitespace runs to single underscores and
// strips path separators.
func sanitizeFilename(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		return "upload"
	}
	return name
}

// Package seed loads the lookup catalog's initial vocabulary from a
// YAML file at startup.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netgrid-tools/devicehub/internal/repository"
)

// File is the seed file shape.
//
//	device_types:
//	  - Router
//	  - Switch
//	manufacturers:
//	  - Cisco
type File struct {
	DeviceTypes   []string `yaml:"device_types"`
	Manufacturers []string `yaml:"manufacturers"`
}

// Run seeds the lookup catalog from path. Entries that already exist
// are left alone, so repeated runs are safe. An empty path is a no-op.
func Run(ctx context.Context, path string, lookups repository.LookupRepository, logger *slog.Logger) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, name := range file.DeviceTypes {
		if name == "" {
			continue
		}
		if err := lookups.EnsureDeviceType(ctx, name); err != nil {
			return err
		}
	}

	for _, name := range file.Manufacturers {
		if name == "" {
			continue
		}
		if err := lookups.EnsureManufacturer(ctx, name); err != nil {
			return err
		}
	}

	logger.Info("lookup catalog seeded",
		"path", path,
		"device_types", len(file.DeviceTypes),
		"manufacturers", len(file.Manufacturers),
	)

	return nil
}

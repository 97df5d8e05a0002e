// Package export renders device list results as downloadable reports.
package export

import (
	"bytes"
	"context"
	"strings"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// csvColumns is the fixed export column set, in order.
var csvColumns = []string{
	"hostname",
	"ip_address",
	"device_type",
	"manufacturer",
	"status",
	"assigned_to",
	"location",
}

// DeviceLister is the registry read surface the exporter consumes.
type DeviceLister interface {
	List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error)
}

// CSVExporter renders the device registry's filtered list as CSV. Every
// field is double-quoted with internal quotes doubled; absent optional
// values render as empty quoted strings, never as the word "null". The
// stdlib csv writer only quotes when it must, so quoting is emitted
// directly here.
type CSVExporter struct {
	devices DeviceLister
}

// NewCSVExporter creates a new CSV exporter over the device registry.
func NewCSVExporter(devices DeviceLister) *CSVExporter {
	return &CSVExporter{devices: devices}
}

// Export renders the filtered device list. Row order matches the
// registry's list order (id ascending). One header row precedes the
// data rows.
func (e *CSVExporter) Export(ctx context.Context, filter *model.DeviceFilter) ([]byte, error) {
	devices, err := e.devices.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeRow(&buf, csvColumns)

	for _, d := range devices {
		writeRow(&buf, []string{
			d.Hostname,
			d.IPAddress,
			deviceTypeLabel(d),
			d.ManufacturerName,
			string(d.Status),
			d.AssigneeName,
			d.Location,
		})
	}

	return buf.Bytes(), nil
}

// deviceTypeLabel prefers the catalog label and falls back to the
// free-text type.
func deviceTypeLabel(d *model.Device) string {
	if d.DeviceTypeName != "" {
		return d.DeviceTypeName
	}
	return d.DeviceType
}

func writeRow(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

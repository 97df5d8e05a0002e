package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/netgrid-tools/devicehub/pkg/errors"

	"github.com/netgrid-tools/devicehub/internal/model"
	"github.com/netgrid-tools/devicehub/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDeviceService(store *memStore) *service.DeviceService {
	return service.NewDeviceService(store, store, historyRepo{store}, testLogger())
}

func testPrincipal(id int64) *model.Principal {
	return &model.Principal{ID: id, Role: "admin", Active: true}
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func statusPtr(v model.DeviceStatus) *model.DeviceStatus { return &v }

func TestCreateDeviceDefaults(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)

	device, err := svc.Create(context.Background(), &model.CreateDeviceRequest{
		Hostname:   "sw-01",
		IPAddress:  "10.0.0.5",
		DeviceType: "Switch",
	}, testPrincipal(1))
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, device.Status)
	assert.Equal(t, "Switch", device.DeviceType)
	assert.NotZero(t, device.ID)
	assert.Nil(t, device.AssignedUserID)
	assert.Nil(t, device.AssignedAt)

	// a fresh device has no attachments
	files, err := store.ListByDevice(context.Background(), device.ID)
	require.NoError(t, err)
	assert.Empty(t, files)

	// creation is audited
	history, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.ActionCreated, history[0].Action)
	require.NotNil(t, history[0].ActorUserID)
	assert.Equal(t, int64(1), *history[0].ActorUserID)
}

func TestCreateDeviceValidation(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)

	tests := []struct {
		name string
		req  model.CreateDeviceRequest
	}{
		{"missing hostname", model.CreateDeviceRequest{IPAddress: "10.0.0.1", DeviceType: "Router"}},
		{"missing ip", model.CreateDeviceRequest{Hostname: "r-01", DeviceType: "Router"}},
		{"malformed ip", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "10.0.0", DeviceType: "Router"}},
		{"ip with letters", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "10.a.0.1", DeviceType: "Router"}},
		{"ip group too long", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "1234.0.0.1", DeviceType: "Router"}},
		{"missing type", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "10.0.0.1"}},
		{"bad status", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "10.0.0.1", DeviceType: "Router", Status: "retired"}},
		{"unknown type id", model.CreateDeviceRequest{Hostname: "r-01", IPAddress: "10.0.0.1", DeviceTypeID: int64Ptr(99)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.req, nil)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "expected validation error, got %v", err)
		})
	}

	// nothing was persisted by the rejected requests
	devices, err := svc.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestCreateDeviceAcceptsDigitCountOnlyIP(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)

	// 999.999.999.999 is not a routable address, but octet range
	// checking is deliberately out of scope.
	device, err := svc.Create(context.Background(), &model.CreateDeviceRequest{
		Hostname:   "odd-01",
		IPAddress:  "999.999.999.999",
		DeviceType: "Firewall",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "999.999.999.999", device.IPAddress)
}

func TestCreateDeviceFreeTextWinsOverLookupLabel(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)

	entry, err := store.CreateDeviceType(context.Background(), "Switch")
	require.NoError(t, err)

	device, err := svc.Create(context.Background(), &model.CreateDeviceRequest{
		Hostname:     "sw-02",
		IPAddress:    "10.0.0.6",
		DeviceType:   "Core Switch",
		DeviceTypeID: &entry.ID,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Core Switch", device.DeviceType)
	require.NotNil(t, device.DeviceTypeID)
	assert.Equal(t, entry.ID, *device.DeviceTypeID)
}

func TestCreateDeviceDuplicateHostnameConflict(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)

	_, err := svc.Create(context.Background(), &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.6", DeviceType: "Switch",
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestUpdateDeviceStatusChangeAudited(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	ctx := context.Background()

	device, err := svc.Create(ctx, &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, device.ID, &model.UpdateDeviceRequest{
		Status: statusPtr(model.StatusMaintenance),
	}, testPrincipal(3))
	require.NoError(t, err)
	assert.Equal(t, model.StatusMaintenance, updated.Status)

	history, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)

	var statusChanges []*model.HistoryEntry
	for _, h := range history {
		if h.Action == model.ActionStatusChanged {
			statusChanges = append(statusChanges, h)
		}
	}
	require.Len(t, statusChanges, 1)
	assert.Equal(t, "active", statusChanges[0].Details["from"])
	assert.Equal(t, "maintenance", statusChanges[0].Details["to"])
}

func TestUpdateDeviceNonStatusFieldNotAudited(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	ctx := context.Background()

	device, err := svc.Create(ctx, &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	before, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, device.ID, &model.UpdateDeviceRequest{
		Location: strPtr("rack 4"),
		Notes:    strPtr("relocated"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rack 4", updated.Location)
	// untouched fields survive a partial update
	assert.Equal(t, "sw-01", updated.Hostname)
	assert.Equal(t, "10.0.0.5", updated.IPAddress)

	after, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestUpdateDeviceSameStatusNotAudited(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	ctx := context.Background()

	device, err := svc.Create(ctx, &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	before, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)

	_, err = svc.Update(ctx, device.ID, &model.UpdateDeviceRequest{
		Status: statusPtr(model.StatusActive),
	}, nil)
	require.NoError(t, err)

	after, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestUpdateDeviceCannotClearType(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	ctx := context.Background()

	device, err := svc.Create(ctx, &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	// clearing the free-text type with no catalog id leaves the device
	// with neither, which create would never have accepted
	_, err = svc.Update(ctx, device.ID, &model.UpdateDeviceRequest{
		DeviceType: strPtr(""),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	// clearing the label while supplying a catalog id is fine: the
	// label falls back to the catalog name
	entry, err := store.CreateDeviceType(ctx, "Firewall")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, device.ID, &model.UpdateDeviceRequest{
		DeviceType:   strPtr(""),
		DeviceTypeID: int64Ptr(entry.ID),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Firewall", updated.DeviceType)
	require.NotNil(t, updated.DeviceTypeID)
	assert.Equal(t, entry.ID, *updated.DeviceTypeID)
}

func TestUpdateDeviceNotFound(t *testing.T) {
	svc := newDeviceService(newMemStore())

	_, err := svc.Update(context.Background(), 42, &model.UpdateDeviceRequest{
		Location: strPtr("closet"),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestGetDeviceNotFound(t *testing.T) {
	svc := newDeviceService(newMemStore())

	_, err := svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestDeleteDeviceCascades(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	blobStore := newMemBlobStore()
	files := service.NewFileService(fileRepo{store}, store, blobStore, 5<<20, testLogger())
	ctx := context.Background()

	device, err := svc.Create(ctx, &model.CreateDeviceRequest{
		Hostname: "sw-01", IPAddress: "10.0.0.5", DeviceType: "Switch",
	}, nil)
	require.NoError(t, err)

	_, err = files.AddFile(ctx, device.ID, "config.txt", "text/plain", []byte("hostname sw-01"))
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, device.ID, testPrincipal(1))
	require.NoError(t, err)
	assert.Equal(t, device.ID, deleted.ID)

	remaining, err := store.ListByDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining, "device files must cascade")

	history, err := store.ListByDeviceHistory(device.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "history rows must cascade")

	_, err = svc.Get(ctx, device.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestListDevicesFiltering(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	ctx := context.Background()

	seedDevices := []model.CreateDeviceRequest{
		{Hostname: "core-sw-01", IPAddress: "10.0.0.1", DeviceType: "Switch"},
		{Hostname: "edge-fw-01", IPAddress: "10.0.1.1", DeviceType: "Firewall", Status: model.StatusMaintenance},
		{Hostname: "core-rt-01", IPAddress: "192.168.0.1", DeviceType: "Router"},
	}
	for i := range seedDevices {
		_, err := svc.Create(ctx, &seedDevices[i], nil)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// stable order by id ascending
	assert.Equal(t, "core-sw-01", all[0].Hostname)
	assert.Equal(t, "core-rt-01", all[2].Hostname)

	bySearch, err := svc.List(ctx, &model.DeviceFilter{Search: "CORE"})
	require.NoError(t, err)
	assert.Len(t, bySearch, 2)

	byIP, err := svc.List(ctx, &model.DeviceFilter{Search: "192.168"})
	require.NoError(t, err)
	require.Len(t, byIP, 1)
	assert.Equal(t, "core-rt-01", byIP[0].Hostname)

	byStatus, err := svc.List(ctx, &model.DeviceFilter{Status: model.StatusMaintenance})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "edge-fw-01", byStatus[0].Hostname)

	_, err = svc.List(ctx, &model.DeviceFilter{Status: "retired"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestDeviceStats(t *testing.T) {
	store := newMemStore()
	svc := newDeviceService(store)
	dir := newFakeDirectory(&model.User{ID: 7, DisplayName: "Dana Ops", Active: true})
	assignments := service.NewAssignmentService(store, historyRepo{store}, dir, testLogger())
	ctx := context.Background()

	for _, req := range []model.CreateDeviceRequest{
		{Hostname: "a", IPAddress: "10.0.0.1", DeviceType: "Switch"},
		{Hostname: "b", IPAddress: "10.0.0.2", DeviceType: "Switch", Status: model.StatusInactive},
	} {
		r := req
		_, err := svc.Create(ctx, &r, nil)
		require.NoError(t, err)
	}

	_, err := assignments.Assign(ctx, 1, 7, testPrincipal(1))
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Assigned)
	assert.Equal(t, int64(1), stats.Available)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusActive])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusInactive])
}

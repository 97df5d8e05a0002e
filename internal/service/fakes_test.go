package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/netgrid-tools/devicehub/internal/blob"
	"github.com/netgrid-tools/devicehub/internal/model"
)

// memStore is an in-memory stand-in for the Postgres repositories. It
// mirrors the schema's behavior the services rely on: the unique
// (device_id, version) index, cascade deletion of files and history,
// and nil results for missing rows.
type memStore struct {
	mu sync.RWMutex

	devices      map[int64]*model.Device
	nextDeviceID int64

	files      map[int64]*model.DeviceFile
	nextFileID int64

	history       map[int64]*model.HistoryEntry
	nextHistoryID int64

	deviceTypes      map[int64]*model.Lookup
	manufacturers    map[int64]*model.Lookup
	nextLookupID     int64
	hostnames        map[string]int64
	forceVersionRace int
}

func newMemStore() *memStore {
	return &memStore{
		devices:       make(map[int64]*model.Device),
		files:         make(map[int64]*model.DeviceFile),
		history:       make(map[int64]*model.HistoryEntry),
		deviceTypes:   make(map[int64]*model.Lookup),
		manufacturers: make(map[int64]*model.Lookup),
		hostnames:     make(map[string]int64),
	}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

func cloneDevice(d *model.Device) *model.Device {
	c := *d
	return &c
}

// DeviceRepository

func (s *memStore) Create(ctx context.Context, device *model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.hostnames[device.Hostname]; taken {
		return uniqueViolation()
	}

	s.nextDeviceID++
	device.ID = s.nextDeviceID
	s.devices[device.ID] = cloneDevice(device)
	s.hostnames[device.Hostname] = device.ID
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, nil
	}
	return cloneDevice(d), nil
}

func (s *memStore) Update(ctx context.Context, device *model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.devices[device.ID]
	if !ok {
		return fmt.Errorf("no rows")
	}
	if other, taken := s.hostnames[device.Hostname]; taken && other != device.ID {
		return uniqueViolation()
	}

	delete(s.hostnames, existing.Hostname)
	s.hostnames[device.Hostname] = device.ID
	s.devices[device.ID] = cloneDevice(device)
	return nil
}

func (s *memStore) UpdateAssignment(ctx context.Context, deviceID int64, userID *int64, assignedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return fmt.Errorf("no rows")
	}
	d.AssignedUserID = userID
	d.AssignedAt = assignedAt
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return fmt.Errorf("no rows")
	}
	delete(s.hostnames, d.Hostname)
	delete(s.devices, id)

	// FK cascade
	for fid, f := range s.files {
		if f.DeviceID == id {
			delete(s.files, fid)
		}
	}
	for hid, h := range s.history {
		if h.DeviceID == id {
			delete(s.history, hid)
		}
	}
	return nil
}

func (s *memStore) List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Device, 0)
	for _, d := range s.devices {
		if filter != nil && filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter != nil && filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(d.Hostname), needle) &&
				!strings.Contains(strings.ToLower(d.IPAddress), needle) {
				continue
			}
		}
		out = append(out, cloneDevice(d))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Stats(ctx context.Context) (*model.DeviceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.DeviceStats{ByStatus: make(map[model.DeviceStatus]int64)}
	for _, d := range s.devices {
		stats.Total++
		if d.AssignedUserID != nil {
			stats.Assigned++
		}
		stats.ByStatus[d.Status]++
	}
	stats.Available = stats.Total - stats.Assigned
	return stats, nil
}

// FileRepository
//
// Insert mirrors the atomic increment-and-read shape of the SQL
// statement: version computation and the uniqueness check happen in one
// critical section, like a single INSERT against the unique
// (device_id, version) index. forceVersionRace injects the unique
// violations a lost race would produce, to exercise the caller's retry
// loop.

func (s *memStore) Insert(ctx context.Context, file *model.DeviceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceVersionRace > 0 {
		s.forceVersionRace--
		return uniqueViolation()
	}

	version := 1
	for _, f := range s.files {
		if f.DeviceID == file.DeviceID && f.Version >= version {
			version = f.Version + 1
		}
	}

	s.nextFileID++
	file.ID = s.nextFileID
	file.Version = version
	stored := *file
	s.files[file.ID] = &stored
	return nil
}

func (s *memStore) ListByDevice(ctx context.Context, deviceID int64) ([]*model.DeviceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.DeviceFile, 0)
	for _, f := range s.files {
		if f.DeviceID == deviceID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version > out[j].Version
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *memStore) GetByIDFile(deviceID, fileID int64) (*model.DeviceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[fileID]
	if !ok || f.DeviceID != deviceID {
		return nil, nil
	}
	c := *f
	return &c, nil
}

// fileRepo adapts memStore to the FileRepository interface; GetByID
// clashes with the device method name.
type fileRepo struct{ *memStore }

func (r fileRepo) GetByID(ctx context.Context, deviceID, fileID int64) (*model.DeviceFile, error) {
	return r.memStore.GetByIDFile(deviceID, fileID)
}

// HistoryRepository

func (s *memStore) Append(ctx context.Context, entry *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHistoryID++
	entry.ID = s.nextHistoryID
	stored := *entry
	s.history[entry.ID] = &stored
	return nil
}

func (s *memStore) ListByDeviceHistory(deviceID int64, limit int) ([]*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.HistoryEntry, 0)
	for _, h := range s.history {
		if h.DeviceID == deviceID {
			c := *h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type historyRepo struct{ *memStore }

func (r historyRepo) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]*model.HistoryEntry, error) {
	return r.memStore.ListByDeviceHistory(deviceID, limit)
}

// LookupRepository

func (s *memStore) addLookup(table map[int64]*model.Lookup, name string) (*model.Lookup, error) {
	for _, e := range table {
		if e.Name == name {
			return nil, uniqueViolation()
		}
	}
	s.nextLookupID++
	entry := &model.Lookup{ID: s.nextLookupID, Name: name}
	table[entry.ID] = entry
	return entry, nil
}

func (s *memStore) listLookup(table map[int64]*model.Lookup) []*model.Lookup {
	out := make([]*model.Lookup, 0, len(table))
	for _, e := range table {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *memStore) ListDeviceTypes(ctx context.Context) ([]*model.Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLookup(s.deviceTypes), nil
}

func (s *memStore) GetDeviceType(ctx context.Context, id int64) (*model.Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.deviceTypes[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) CreateDeviceType(ctx context.Context, name string) (*model.Lookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLookup(s.deviceTypes, name)
}

func (s *memStore) EnsureDeviceType(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addLookup(s.deviceTypes, name)
	if err != nil {
		return nil // ON CONFLICT DO NOTHING
	}
	return nil
}

func (s *memStore) ListManufacturers(ctx context.Context) ([]*model.Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLookup(s.manufacturers), nil
}

func (s *memStore) GetManufacturer(ctx context.Context, id int64) (*model.Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.manufacturers[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) CreateManufacturer(ctx context.Context, name string) (*model.Lookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLookup(s.manufacturers, name)
}

func (s *memStore) EnsureManufacturer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addLookup(s.manufacturers, name)
	if err != nil {
		return nil
	}
	return nil
}

// fakeDirectory is an in-memory user directory.
type fakeDirectory struct {
	mu    sync.RWMutex
	users map[int64]*model.User
}

func newFakeDirectory(users ...*model.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[int64]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(ctx context.Context, id int64) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (d *fakeDirectory) ListUsers(ctx context.Context) ([]*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*model.User, 0, len(d.users))
	for _, u := range d.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memBlobStore is an in-memory blob sink.
type memBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	return key, nil
}

func (s *memBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[locator]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return data, nil
}

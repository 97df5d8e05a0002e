package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// CacheConfig holds read-cache TTLs.
type CacheConfig struct {
	DeviceTTL time.Duration
	LookupTTL time.Duration
}

// DefaultCacheConfig returns default cache TTLs.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DeviceTTL: 15 * time.Minute,
		LookupTTL: 30 * time.Minute,
	}
}

// DeviceCache caches device reads in Redis. The database stays the
// source of truth; cache failures degrade to plain reads.
type DeviceCache struct {
	client redis.UniversalClient
	config CacheConfig
	prefix string
}

// NewDeviceCache creates a new device cache.
func NewDeviceCache(client redis.UniversalClient, config CacheConfig) *DeviceCache {
	return &DeviceCache{
		client: client,
		config: config,
		prefix: "device",
	}
}

func (c *DeviceCache) key(parts ...string) string {
	key := c.prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// GetDevice retrieves a device from cache, (nil, nil) on miss.
func (c *DeviceCache) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	data, err := c.client.Get(ctx, c.key("id", strconv.FormatInt(id, 10))).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var device model.Device
	if err := json.Unmarshal(data, &device); err != nil {
		return nil, err
	}

	return &device, nil
}

// SetDevice caches a device.
func (c *DeviceCache) SetDevice(ctx context.Context, device *model.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key("id", strconv.FormatInt(device.ID, 10)), data, c.config.DeviceTTL).Err()
}

// DeleteDevice evicts a device from cache.
func (c *DeviceCache) DeleteDevice(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.key("id", strconv.FormatInt(id, 10))).Err()
}

// IncrementStats bumps a cache statistics counter.
func (c *DeviceCache) IncrementStats(ctx context.Context, stat string) error {
	return c.client.Incr(ctx, c.key("stats", stat)).Err()
}

// GetStats retrieves cache statistics counters.
func (c *DeviceCache) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	for _, k := range []string{"hits", "misses", "invalidations"} {
		val, err := c.client.Get(ctx, c.key("stats", k)).Int64()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		stats[k] = val
	}

	return stats, nil
}

// DeviceCacher is the cache surface the decorator needs.
type DeviceCacher interface {
	GetDevice(ctx context.Context, id int64) (*model.Device, error)
	SetDevice(ctx context.Context, device *model.Device) error
	DeleteDevice(ctx context.Context, id int64) error
	IncrementStats(ctx context.Context, stat string) error
}

// CachedDeviceRepository wraps a DeviceRepository with cache-aside reads
// and write invalidation. Only the read path populates the cache: a read
// goes through the repository's JOINs and carries the denormalized
// lookup and assignee fields, which the structs passed to writes do not.
type CachedDeviceRepository struct {
	repo  DeviceRepository
	cache DeviceCacher
}

// NewCachedDeviceRepository creates a new cached device repository.
func NewCachedDeviceRepository(repo DeviceRepository, cache DeviceCacher) *CachedDeviceRepository {
	return &CachedDeviceRepository{
		repo:  repo,
		cache: cache,
	}
}

// Create passes through. The new row is cached on its first read, which
// fills the denormalized fields the insert struct lacks.
func (r *CachedDeviceRepository) Create(ctx context.Context, device *model.Device) error {
	return r.repo.Create(ctx, device)
}

// GetByID retrieves a device, checking cache first.
func (r *CachedDeviceRepository) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	cached, err := r.cache.GetDevice(ctx, id)
	if err == nil && cached != nil {
		r.cache.IncrementStats(ctx, "hits")
		return cached, nil
	}

	r.cache.IncrementStats(ctx, "misses")

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if device != nil {
		r.cache.SetDevice(ctx, device)
	}

	return device, nil
}

// Update updates a device and evicts the stale entry. Caching the
// caller's struct here would serve denormalized fields the write never
// carried; the next read repopulates from the database.
func (r *CachedDeviceRepository) Update(ctx context.Context, device *model.Device) error {
	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cache.DeleteDevice(ctx, device.ID)
	r.cache.IncrementStats(ctx, "invalidations")
	return nil
}

// UpdateAssignment updates assignment fields and evicts the stale entry.
func (r *CachedDeviceRepository) UpdateAssignment(ctx context.Context, deviceID int64, userID *int64, assignedAt *time.Time) error {
	if err := r.repo.UpdateAssignment(ctx, deviceID, userID, assignedAt); err != nil {
		return err
	}

	r.cache.DeleteDevice(ctx, deviceID)
	r.cache.IncrementStats(ctx, "invalidations")
	return nil
}

// Delete deletes a device and evicts it from cache.
func (r *CachedDeviceRepository) Delete(ctx context.Context, id int64) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cache.DeleteDevice(ctx, id)
	r.cache.IncrementStats(ctx, "invalidations")
	return nil
}

// List passes through; filtered result sets are not cached.
func (r *CachedDeviceRepository) List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error) {
	return r.repo.List(ctx, filter)
}

// Stats passes through.
func (r *CachedDeviceRepository) Stats(ctx context.Context) (*model.DeviceStats, error) {
	return r.repo.Stats(ctx)
}

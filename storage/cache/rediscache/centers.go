package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

const keyPrefix = "tutorcenter:center:"

// centerEntry is the cached form of an attendance.Center.
type centerEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location []float64 `json:"location,omitempty"` // [latitude, longitude]
}

// CenterCache is a read-through cache in front of a CenterDirectory.
// Lookups that fail are never cached, and a failing Redis only costs a direct lookup.
type CenterCache struct {
	client *redis.Client
	next   attendance.CenterDirectory
	ttl    time.Duration
	logger core.Logger
}

var _ attendance.CenterDirectory = (*CenterCache)(nil) // interface compliance check

func NewCenterCache(client *redis.Client, next attendance.CenterDirectory, ttl time.Duration, logger core.Logger) *CenterCache {
	return &CenterCache{client: client, next: next, ttl: ttl, logger: logger}
}

func centerKey(id string) string {
	return keyPrefix + id
}

func (c *CenterCache) GetCenter(ctx context.Context, id string) (attendance.Center, error) {
	if ctr, ok := c.get(ctx, id); ok {
		return ctr, nil
	}

	ctr, err := c.next.GetCenter(ctx, id)
	if err != nil {
		return attendance.Center{}, err
	}
	c.set(ctx, ctr)
	return ctr, nil
}

// Invalidate drops the cached center so the next lookup reads through.
func (c *CenterCache) Invalidate(ctx context.Context, id string) error {
	return errors.Wrap(c.client.Del(ctx, centerKey(id)).Err(), "deleting cached center")
}

func (c *CenterCache) get(ctx context.Context, id string) (attendance.Center, bool) {
	data, err := c.client.Get(ctx, centerKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn(fmt.Sprintf("center cache: get %s: %v", id, err))
		}
		return attendance.Center{}, false
	}

	var entry centerEntry
	if err = json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn(fmt.Sprintf("center cache: decoding %s: %v", id, err))
		return attendance.Center{}, false
	}
	ctr := attendance.Center{ID: entry.ID, Name: entry.Name}
	if entry.Location != nil {
		pt, err := geo.ParsePair(entry.Location)
		if err != nil {
			return attendance.Center{}, false
		}
		ctr.Location = pt
	}
	return ctr, true
}

func (c *CenterCache) set(ctx context.Context, ctr attendance.Center) {
	entry := centerEntry{ID: ctr.ID, Name: ctr.Name}
	if !geo.IsUnset(ctr.Location) {
		entry.Location = geo.Pair(ctr.Location)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err = c.client.Set(ctx, centerKey(ctr.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn(fmt.Sprintf("center cache: set %s: %v", ctr.ID, err))
	}
}

package application

import (
	"sync"
	"time"
)

// statsCache stores the most recently computed fleet statistics so the
// dashboard does not rescan the fleet and ledger on every poll.
type statsCache struct {
	mu        sync.RWMutex
	now       func() time.Time
	ttl       time.Duration
	value     FleetStats
	expiresAt time.Time
	valid     bool
}

func newStatsCache(ttl time.Duration, now func() time.Time) *statsCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &statsCache{now: now, ttl: ttl}
}

func (c *statsCache) Get() (FleetStats, bool) {
	if c == nil {
		return FleetStats{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid || c.now().After(c.expiresAt) {
		return FleetStats{}, false
	}
	return c.value, true
}

func (c *statsCache) Store(stats FleetStats) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.value = stats
	c.expiresAt = c.now().Add(c.ttl)
	c.valid = true
	c.mu.Unlock()
}

func (c *statsCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

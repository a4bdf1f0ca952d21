package historycache

import (
	"sync"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// ResourceLimits bounds how many samples/instances a Cache may hold
// (§4.3, §5 RESOURCE_LIMITS QoS). A value of Unlimited disables a bound.
type ResourceLimits struct {
	MaxSamples             int
	MaxInstances           int
	MaxSamplesPerInstance int
}

// DefaultResourceLimits matches the QoS default: everything unbounded.
var DefaultResourceLimits = ResourceLimits{MaxSamples: Unlimited, MaxInstances: Unlimited, MaxSamplesPerInstance: Unlimited}

// Cache is a per-endpoint sample history keyed by instance (§4.3). It is
// owned by exactly one writer or reader endpoint value; it is never a
// package-level singleton.
type Cache struct {
	kind   Kind
	depth  int
	limits ResourceLimits

	mu         sync.RWMutex
	instances  map[rtpstypes.InstanceKey]*instance
	order      []rtpstypes.InstanceKey // instance creation order, for oldest-instance eviction
	totalCount int
}

// New builds a Cache for the given HISTORY kind/depth and resource
// limits. depth is ignored for KeepAll.
func New(kind Kind, depth int, limits ResourceLimits) *Cache {
	return &Cache{
		kind:      kind,
		depth:     depth,
		limits:    limits,
		instances: make(map[rtpstypes.InstanceKey]*instance),
	}
}

// Write inserts a sample into its instance's history, creating the
// instance if new. It enforces RESOURCE_LIMITS before KEEP_LAST eviction
// kicks in; a violation surfaces as a ResourceLimits error (§8) rather
// than silently dropping data.
func (c *Cache) Write(s rtpstypes.Sample) error {
	c.mu.Lock()
	in, ok := c.instances[s.Instance]
	if !ok {
		if c.limits.MaxInstances != Unlimited && len(c.instances) >= c.limits.MaxInstances {
			c.mu.Unlock()
			return hddserr.New("historycache.Write", hddserr.ResourceLimits, "max_instances (%d) reached", c.limits.MaxInstances)
		}
		in = newInstance()
		c.instances[s.Instance] = in
		c.order = append(c.order, s.Instance)
	}
	c.mu.Unlock()

	if c.limits.MaxSamplesPerInstance != Unlimited && c.kind == KeepAll && in.size() >= c.limits.MaxSamplesPerInstance {
		return hddserr.New("historycache.Write", hddserr.ResourceLimits, "max_samples_per_instance (%d) reached", c.limits.MaxSamplesPerInstance)
	}
	if c.limits.MaxSamples != Unlimited && c.kind == KeepAll {
		c.mu.RLock()
		total := c.totalCount
		c.mu.RUnlock()
		if total >= c.limits.MaxSamples {
			return hddserr.New("historycache.Write", hddserr.ResourceLimits, "max_samples (%d) reached", c.limits.MaxSamples)
		}
	}

	depth := c.depth
	if c.limits.MaxSamplesPerInstance != Unlimited && c.kind == KeepLast {
		if depth == Unlimited || c.limits.MaxSamplesPerInstance < depth {
			depth = c.limits.MaxSamplesPerInstance
		}
	}

	_, evicted := in.push(s, c.kind, depth)
	c.mu.Lock()
	if !evicted {
		c.totalCount++
	}
	c.mu.Unlock()
	return nil
}

// Snapshot returns every live sample for the given instance, oldest
// first, without removing them (READ semantics).
func (c *Cache) Snapshot(key rtpstypes.InstanceKey) []rtpstypes.Sample {
	c.mu.RLock()
	in, ok := c.instances[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return in.snapshot()
}

// Take drains and returns every live sample for the given instance
// (TAKE semantics).
func (c *Cache) Take(key rtpstypes.InstanceKey) []rtpstypes.Sample {
	c.mu.RLock()
	in, ok := c.instances[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	samples := in.take()
	c.mu.Lock()
	c.totalCount -= len(samples)
	c.mu.Unlock()
	return samples
}

// SnapshotAll returns every live sample across all instances, grouped by
// instance in creation order.
func (c *Cache) SnapshotAll() []rtpstypes.Sample {
	c.mu.RLock()
	order := append([]rtpstypes.InstanceKey(nil), c.order...)
	c.mu.RUnlock()

	var out []rtpstypes.Sample
	for _, key := range order {
		out = append(out, c.Snapshot(key)...)
	}
	return out
}

// InstanceCount reports how many distinct instances currently have
// history.
func (c *Cache) InstanceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// DisposeInstance drops all history for an instance, e.g. after its
// DISPOSED sample has been taken by every reader view (§4.3).
func (c *Cache) DisposeInstance(key rtpstypes.InstanceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, ok := c.instances[key]
	if !ok {
		return
	}
	c.totalCount -= in.size()
	delete(c.instances, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Package registry provides the container registry implied but not named by
// the per-key version graph: a lookup from (partitionKey, objectID) to its
// graph.Container, created lazily on first write, plus an optional
// Badger-backed warm-start hint cache.
package registry

import (
	"sync"

	"github.com/lineagedb/lineage/graph"
	"github.com/lineagedb/lineage/internal/logging"
	"github.com/lineagedb/lineage/wire"
)

// key identifies one container within the registry.
type key struct {
	partitionKey string
	objectID     wire.UUID
}

// Registry is a thread-safe lookup of containers, indexed by partition and
// object. Locking order is registry-level then container-level: callers must
// never acquire a container lock before asking the registry for it.
type Registry struct {
	mu         sync.RWMutex
	containers map[key]*graph.Container
	snapshots  *SnapshotCache // nil when no warm-start cache was configured
	log        logging.Logger
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithSnapshotCache attaches a warm-start hint cache. It is consulted when
// Container first creates a container, and is never a substitute for replay.
func WithSnapshotCache(c *SnapshotCache) Option {
	return func(r *Registry) { r.snapshots = c }
}

// WithLogger injects a logger; the zero value logs nowhere.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New builds an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		containers: make(map[key]*graph.Container),
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Container returns the container for (partitionKey, objectID), creating it
// if this is the first time the pair has been seen. If a snapshot cache was
// configured, a newly created container's creation is logged with the
// snapshot hint (if any) for diagnostic purposes only.
func (r *Registry) Container(partitionKey string, objectID wire.UUID) *graph.Container {
	k := key{partitionKey: partitionKey, objectID: objectID}

	r.mu.RLock()
	c, ok := r.containers[k]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.containers[k]; ok {
		return c
	}

	c = graph.New(partitionKey)
	if r.snapshots != nil {
		if hint, ok := r.snapshots.Hint(partitionKey, objectID); ok {
			r.log.Infof("registry: warm-start hint for %s/%s: %d known leaves as of offset %d (replay still authoritative)",
				partitionKey, objectID, len(hint.Leaves), hint.Meta.Offset)
		}
	}
	r.containers[k] = c
	return c
}

// Lookup returns the existing container for (partitionKey, objectID) without
// creating one.
func (r *Registry) Lookup(partitionKey string, objectID wire.UUID) (*graph.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[key{partitionKey: partitionKey, objectID: objectID}]
	return c, ok
}

// Len returns the number of containers currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}

// Snapshot writes a warm-start hint for every registered container to the
// attached SnapshotCache, if any. It is a best-effort operation: callers
// typically invoke it periodically or at shutdown, never on the write path.
func (r *Registry) Snapshot() error {
	if r.snapshots == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, c := range r.containers {
		leaves := c.Leaves()
		versions := make([]wire.UUID, len(leaves))
		for i, n := range leaves {
			versions[i] = n.Version()
		}
		meta := c.History()
		var last wire.Meta
		if len(meta) > 0 {
			last = meta[len(meta)-1]
		}
		if err := r.snapshots.Put(k.partitionKey, k.objectID, Hint{Leaves: versions, Meta: last}); err != nil {
			return err
		}
	}
	return nil
}

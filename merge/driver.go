// Package merge implements MergeDriver: the three-way merge orchestration
// that turns a Container's divergent frontier into a single record, and
// optionally writes the reconciling result back through the log so replay
// and compaction converge.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/lineagedb/lineage/collab"
	"github.com/lineagedb/lineage/graph"
	"github.com/lineagedb/lineage/mergecache"
	"github.com/lineagedb/lineage/wire"
)

// ErrEmptyGraph is returned when a merged view is requested on a container
// with zero leaves.
var ErrEmptyGraph = errors.New("merge: container has no leaves")

// ErrMergeFailed is returned when the Merger collaborator declines to
// reconcile a frontier of two or more leaves.
var ErrMergeFailed = errors.New("merge: merger returned no result for divergent frontier")

// Logger is the minimal logging surface Driver needs; internal/logging
// satisfies it, and tests can supply a no-op.
type Logger interface {
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}

// Trail is the minimal audit surface Driver can report reconciling
// write-backs and denials to; audit.Trail satisfies it. Wiring a Trail is
// optional and purely observational — it never affects merge outcomes.
type Trail interface {
	WriteBack(partitionKey string, objectID, mergedInto wire.UUID, success bool, reason string) error
	WriteDenied(partitionKey string, objectID wire.UUID, reason string) error
}

// Driver orchestrates three-way merges across a container's frontier. A
// single Driver is meant to be shared across every container in a
// registry: its deserialization cache is keyed by container identity, not
// owned per container.
type Driver struct {
	serializer    collab.Serializer
	merger        collab.Merger
	authorization collab.Authorization
	logBridge     collab.LogBridge
	partitions    collab.PartitionResolver
	cache         *mergecache.Cache
	logger        Logger
	trail         Trail
}

// New builds a Driver from its collaborators. cache may be nil, in which
// case deserialization is never memoized (every call re-decodes).
func New(
	serializer collab.Serializer,
	merger collab.Merger,
	authorization collab.Authorization,
	logBridge collab.LogBridge,
	partitions collab.PartitionResolver,
	cache *mergecache.Cache,
	logger Logger,
) *Driver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Driver{
		serializer:    serializer,
		merger:        merger,
		authorization: authorization,
		logBridge:     logBridge,
		partitions:    partitions,
		cache:         cache,
		logger:        logger,
	}
}

// SetTrail attaches an audit trail. Safe to call once, before Driver is
// shared across goroutines; reconcile calls are not synchronized against
// concurrent SetTrail calls, matching the teacher's pattern of wiring
// optional observers once at startup rather than behind a lock.
func (d *Driver) SetTrail(trail Trail) {
	d.trail = trail
}

// MergedHeader snapshots the container's leaves and, when there are two or
// more, asks the Merger to reconcile their headers against their declared
// parents. A single leaf is returned as-is; zero leaves is ErrEmptyGraph.
func (d *Driver) MergedHeader(ctx context.Context, c *graph.Container) (wire.Header, error) {
	leaves := c.Leaves()
	if len(leaves) == 0 {
		return wire.Header{}, ErrEmptyGraph
	}
	if len(leaves) == 1 {
		return leaves[0].Message.Header, nil
	}

	pairs := make([]collab.MergePair, len(leaves))
	for i, leaf := range leaves {
		pairs[i] = collab.MergePair{
			Ancestor: headerRecord(leaf.Parent()),
			Leaf:     headerRecord(leaf),
		}
	}

	merged, err := d.merger.Merge(ctx, pairs)
	if err != nil {
		return wire.Header{}, fmt.Errorf("merge: merger failed: %w", err)
	}
	if merged == nil {
		return wire.Header{}, ErrMergeFailed
	}
	return recordHeader(merged), nil
}

// headerRecord and recordHeader bridge the lightweight path used only for
// header reconciliation, where the merger is expected to operate on
// collab.Record values carrying nothing but lineage fields. Implementers
// that want header-only merging to avoid a full deserialization can detect
// this shape; MergedData always goes through the real Serializer.
func headerRecord(n *graph.Node) collab.Record {
	if n == nil {
		return nil
	}
	return &headerOnlyRecord{header: n.Message.Header}
}

func recordHeader(r collab.Record) wire.Header {
	if h, ok := r.(*headerOnlyRecord); ok {
		return h.header
	}
	// Fall back to reconstructing the minimal header fields any Record
	// exposes through the collab.Record contract.
	h := wire.Header{Version: r.Version()}
	return h
}

type headerOnlyRecord struct {
	header wire.Header
}

func (r *headerOnlyRecord) Version() wire.UUID { return r.header.Version }
func (r *headerOnlyRecord) SetPreviousVersion(v *wire.UUID) {
	r.header.PreviousVersion = v
}
func (r *headerOnlyRecord) SetVersion(v wire.UUID) { r.header.Version = v }
func (r *headerOnlyRecord) SetMerges(m wire.VersionSet) {
	r.header.Merges = m
}

// MergedData snapshots the container's frontier, deserializes each leaf
// and its distinct parents (memoized per container+version), asks the
// Merger to reconcile them, and rewrites the result's lineage fields: a
// single leaf only sets the previous version to that leaf; two or more
// leaves get a fresh version and the leaf set as merges, and then fire a
// reconciling write-back if authorization allows it.
//
// MergedData never holds the container's lock while calling a
// collaborator: it takes the leaves snapshot, releases the lock (Leaves()
// already does this), and only then deserializes, merges, and — outside
// any lock — writes back.
// currentRights are the rights held by the principal on whose behalf this
// read was issued; they are only consulted to decide whether the
// reconciling write-back (if any) may proceed, never to gate the read
// itself (spec: AuthorizationDenied never surfaces from a read call).
func (d *Driver) MergedData(ctx context.Context, containerID, partitionKey string, objectID wire.UUID, c *graph.Container, currentRights []string) (collab.Record, error) {
	leaves := c.Leaves()
	if len(leaves) == 0 {
		return nil, ErrEmptyGraph
	}

	// Unlike MergedHeader, a single-leaf frontier still goes through the
	// merger: the (ancestor, leaf) pair it's given degenerates to one
	// entry, and a well-behaved Merger returns the leaf unchanged. This
	// keeps the reconciliation step (which the spec describes uniformly
	// for one and for many leaves) in one code path.
	pairs := make([]collab.MergePair, len(leaves))
	leafVersions := make(wire.VersionSet, len(leaves))
	for i, leaf := range leaves {
		leafRec, err := d.deserialize(ctx, containerID, partitionKey, leaf, true)
		if err != nil {
			return nil, err
		}
		var ancestorRec collab.Record
		if parent := leaf.Parent(); parent != nil {
			ancestorRec, err = d.deserialize(ctx, containerID, partitionKey, parent, false)
			if err != nil {
				return nil, err
			}
		}
		pairs[i] = collab.MergePair{Ancestor: ancestorRec, Leaf: leafRec}
		leafVersions[leaf.Version()] = struct{}{}
	}

	merged, err := d.merger.Merge(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("merge: merger failed: %w", err)
	}
	if merged == nil {
		return nil, ErrMergeFailed
	}

	d.reconcile(ctx, partitionKey, objectID, leaves, leafVersions, merged, currentRights)
	return merged, nil
}

// deserialize memoizes per (containerID, version) so that repeated merges
// of a stable frontier don't re-pay Serializer.FromDataMessage.
func (d *Driver) deserialize(ctx context.Context, containerID, partitionKey string, n *graph.Node, deep bool) (collab.Record, error) {
	if d.cache != nil {
		if rec, ok := d.cache.Get(mergecache.Key{ContainerID: containerID, Version: n.Version()}); ok {
			return rec, nil
		}
	}

	rec, err := d.serializer.FromDataMessage(ctx, partitionKey, n.Message, deep)
	if err != nil {
		return nil, fmt.Errorf("merge: deserialize %s: %w", n.Version(), err)
	}
	if d.cache != nil {
		d.cache.Put(mergecache.Key{ContainerID: containerID, Version: n.Version()}, rec)
	}
	return rec, nil
}

// reconcile rewrites merged's lineage fields per spec and, when the
// frontier was a true multi-parent merge and authorization allows it,
// fires a fire-and-forget write-back. Failures here are logged, never
// returned: the in-memory view this call produced is authoritative, and
// replay will re-attempt reconciliation on the next read.
func (d *Driver) reconcile(ctx context.Context, partitionKey string, objectID wire.UUID, leaves []*graph.Node, leafVersions wire.VersionSet, merged collab.Record, currentRights []string) {
	if len(leaves) == 1 {
		v := leaves[0].Version()
		merged.SetPreviousVersion(&v)
		return
	}

	merged.SetPreviousVersion(nil)
	merged.SetVersion(wire.NewVersion())
	merged.SetMerges(leafVersions)

	if d.authorization == nil || d.logBridge == nil {
		return
	}

	var parentID wire.UUID
	if p := leaves[0].Parent(); p != nil {
		parentID = p.Version()
	}

	perms, err := d.authorization.Perms(ctx, partitionKey, objectID, parentID, false)
	if err != nil {
		d.logger.Warnf("merge: authorization check failed for %s/%s: %v", partitionKey, objectID, err)
		return
	}
	if perms == nil || !perms.CanWrite(currentRights) {
		if d.trail != nil {
			if err := d.trail.WriteDenied(partitionKey, objectID, "authorization declined write-back"); err != nil {
				d.logger.Warnf("merge: audit trail write failed for %s/%s: %v", partitionKey, objectID, err)
			}
		}
		return
	}

	d.logBridge.MergeAsyncWithoutValidation(merged)
	if d.trail != nil {
		if err := d.trail.WriteBack(partitionKey, objectID, merged.Version(), true, ""); err != nil {
			d.logger.Warnf("merge: audit trail write failed for %s/%s: %v", partitionKey, objectID, err)
		}
	}
}

// Package collab declares the external collaborators the version graph
// store depends on but does not implement: payload (de)serialization,
// field-level merge policy, write authorization, the log transport, and
// partition resolution. Concrete implementations live in other packages
// (e.g. authz.TokenAuthorizer) or are supplied by the embedding
// application; graph and merge only ever see these interfaces.
package collab

import (
	"context"

	"github.com/lineagedb/lineage/wire"
)

// Record is the typed, in-memory form of a payload once the Serializer has
// decoded it. MergeDriver treats records opaquely except for the lineage
// fields it must rewrite on a reconciling write-back.
type Record interface {
	// Version returns the revision identifier this record was decoded from.
	Version() wire.UUID
	// SetPreviousVersion rewrites the record's declared parent.
	SetPreviousVersion(v *wire.UUID)
	// SetVersion rewrites the record's own identifier.
	SetVersion(v wire.UUID)
	// SetMerges rewrites the record's declared merge parents.
	SetMerges(merges wire.VersionSet)
}

// Serializer converts a raw log message into a typed Record. It is
// a total function from the core's perspective: failures are exceptional
// and propagate to the caller of MergeDriver.
type Serializer interface {
	FromDataMessage(ctx context.Context, partitionKey string, msg wire.Message, deep bool) (Record, error)
}

// MergePair is one (ancestor, leaf) input to Merger.Merge. Ancestor is nil
// when no common ancestor is known (e.g. a graft point that never arrived).
type MergePair struct {
	Ancestor Record
	Leaf     Record
}

// Merger reduces a frontier of (ancestor, leaf) pairs to a single record.
// A nil Record with a nil error means "unmergeable" and is surfaced by the
// caller as ErrMergeFailed.
type Merger interface {
	Merge(ctx context.Context, pairs []MergePair) (Record, error)
}

// Permissions answers whether a set of rights held by the current principal
// is sufficient to write an object.
type Permissions interface {
	CanWrite(currentRights []string) bool
}

// Authorization answers "may the current principal write object X" for
// write-back decisions. It is never consulted on the read path for
// anything other than suppressing a write-back; a denial must never turn
// into an error from a read call.
type Authorization interface {
	Perms(ctx context.Context, partitionKey string, objectID, parentID wire.UUID, computeChildren bool) (Permissions, error)
}

// SyncToken identifies a point in a partition's log that TransactionCoordinator
// can later ask the log to durably flush up to.
type SyncToken interface{}

// LogBridge is the write path back into the log. MergeAsyncWithoutValidation
// is fire-and-forget: the caller must not block on it, and its failure must
// never surface as an error to a reader. Sync is a synchronous barrier used
// by txn.Coordinator at session boundaries.
type LogBridge interface {
	MergeAsyncWithoutValidation(record Record)
	Sync(ctx context.Context, partitionKey string, token SyncToken) error
}

// PartitionResolver maps a record to the partition key that owns it. It is
// total and pure.
type PartitionResolver interface {
	Resolve(record Record) (string, error)
}

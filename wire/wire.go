// Package wire defines the on-the-wire data model for the version graph
// store: messages, headers, and metadata as delivered by a partitioned,
// append-only log. Serialization of payload bytes into typed records is a
// collaborator concern (see package collab); this package only fixes the
// shapes that travel between the log and the graph.
package wire

import (
	"errors"

	"github.com/google/uuid"
)

// UUID identifies an object or a revision of an object. Versions and object
// IDs share the same 128-bit identifier space.
type UUID = uuid.UUID

// Nil is the zero-value UUID, used as a sentinel for "no parent".
var Nil = uuid.Nil

// NewVersion allocates a fresh random version identifier, used when
// MergeDriver mints a reconciling multi-parent revision.
func NewVersion() UUID {
	return uuid.New()
}

// ErrMetaFrozen is returned when code attempts to mutate a Meta value after
// it has been inserted into a Container. Per the open question in the
// original design, this is surfaced as an ordinary error rather than a
// panic: a replay path that hits this has a bug worth reporting through the
// normal channel, not crashing the process.
var ErrMetaFrozen = errors.New("wire: meta mutated after insertion")

// VersionSet is an unordered collection of version UUIDs, e.g. the extra
// parents of a merge revision. Encoding must preserve set semantics:
// duplicates collapse silently on decode.
type VersionSet map[UUID]struct{}

// NewVersionSet builds a VersionSet from a (possibly duplicate-laden) slice.
func NewVersionSet(ids ...UUID) VersionSet {
	s := make(VersionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member of the set. A nil receiver behaves as
// the empty set.
func (s VersionSet) Has(id UUID) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

// Slice returns the set's members in unspecified order. Callers that need a
// stable order (e.g. for leaves bookkeeping) must sort the result
// themselves; VersionSet carries no ordering guarantee by design.
func (s VersionSet) Slice() []UUID {
	out := make([]UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Header carries the identity and lineage of one revision plus the fields
// needed to answer Immutable() without touching a collaborator.
type Header struct {
	ObjectID        UUID
	Version         UUID
	PreviousVersion *UUID
	Merges          VersionSet
	PayloadClass    string
	InheritWrite    bool
	AllowWrite      []string
}

// HasPrevious reports whether the header declares a single parent.
func (h Header) HasPrevious() bool {
	return h.PreviousVersion != nil
}

// Message is the opaque unit the log transport delivers: a header plus a
// possibly-absent payload. A nil Payload is a tombstone-like message — it
// still participates in the version graph.
type Message struct {
	Header  Header
	Payload []byte
}

// HasPayload reports whether the message carries a body.
func (m Message) HasPayload() bool {
	return m.Payload != nil
}

// Meta is the log-delivery metadata for one message. Meta is mutable up
// until it is inserted into a Container, at which point Freeze must be
// called and all further mutation attempts must fail with ErrMetaFrozen.
type Meta struct {
	Partition       int64
	Offset          int64
	TimestampMillis int64

	frozen bool
}

// Freeze marks the meta as immutable. It is idempotent: freezing an
// already-frozen Meta is a no-op, matching Container.Add's idempotent
// re-insertion semantics.
func (m *Meta) Freeze() {
	m.frozen = true
}

// Frozen reports whether Freeze has been called.
func (m *Meta) Frozen() bool {
	return m.frozen
}

// SetOffset updates the offset, failing if the meta has already been frozen
// by insertion into a Container.
func (m *Meta) SetOffset(offset int64) error {
	if m.frozen {
		return ErrMetaFrozen
	}
	m.Offset = offset
	return nil
}

// SetTimestamp updates the timestamp, failing if the meta has already been
// frozen by insertion into a Container.
func (m *Meta) SetTimestamp(ts int64) error {
	if m.frozen {
		return ErrMetaFrozen
	}
	m.TimestampMillis = ts
	return nil
}

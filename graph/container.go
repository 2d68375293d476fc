package graph

import (
	"container/list"
	"sync"

	"github.com/lineagedb/lineage/wire"
)

// Container is the per-object version graph: a lookup from version to
// Node, a chronological timeline, and the current frontier (leaves). All
// mutation happens under a single reader/writer lock; every accessor that
// observes leaves, timeline, or lookup returns a snapshot so the lock is
// released before the caller iterates.
//
// A Container never removes nodes and does not persist its own state:
// replaying the owning partition's messages through Add, in delivery
// order, reconstructs an identical Container.
type Container struct {
	partitionKey string

	mu       sync.RWMutex
	lookup   *versionIndex
	timeline *list.List // of *Node
	leaves   *list.List // of *Node
}

// New creates an empty container for the given partition key. A Container
// does not own or reach back into the log; partitionKey is carried purely
// as an identifying back-reference.
func New(partitionKey string) *Container {
	return &Container{
		partitionKey: partitionKey,
		lookup:       newVersionIndex(),
		timeline:     list.New(),
		leaves:       list.New(),
	}
}

// PartitionKey returns the partition this container's object belongs to.
func (c *Container) PartitionKey() string {
	return c.partitionKey
}

// Add ingests one message with its delivery metadata. Add is idempotent on
// version: if the version has already been inserted, the call is a no-op
// and returns the container unchanged (including not re-freezing the
// caller's meta — it was never touched). Add returns the container so
// calls can be chained the way the teacher's storage engines chain
// builder-style calls.
func (c *Container) Add(msg wire.Message, meta *wire.Meta) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := msg.Header.Version
	if c.lookup.has(v) {
		return c
	}

	n := newNode(msg, *meta)
	c.link(n)

	// A node that an already-inserted node names as its previous version or
	// as a merge parent arrived late: it is not a leaf. The earlier node's
	// parent pointer is not filled in.
	referenced := false
	for e := c.timeline.Front(); e != nil && !referenced; e = e.Next() {
		m := e.Value.(*Node)
		referenced = (m.previousVersion != nil && *m.previousVersion == v) || m.merges.Has(v)
	}

	c.lookup.insert(n)
	if !referenced {
		n.leafElem = c.leaves.PushBack(n)
	}
	n.timelineElem = c.timeline.PushBack(n)

	meta.Freeze()
	n.Meta.Freeze()
	return c
}

// link wires n's parent pointer and demotes any graft points from the
// leaves list. Caller must hold the write lock.
func (c *Container) link(n *Node) {
	if n.previousVersion != nil {
		if prev := c.lookup.get(*n.previousVersion); prev != nil {
			if !containsChild(prev.children, n) {
				prev.children = append(prev.children, n)
			}
			n.parent = prev
			c.demote(prev)
		}
	}

	for m := range n.merges {
		if parent := c.lookup.get(m); parent != nil {
			c.demote(parent)
		}
	}
}

// demote removes n from the leaves list if it is still present. Caller
// must hold the write lock.
func (c *Container) demote(n *Node) {
	if n.leafElem != nil {
		c.leaves.Remove(n.leafElem)
		n.leafElem = nil
	}
}

func containsChild(children []*Node, n *Node) bool {
	for _, c := range children {
		if c == n {
			return true
		}
	}
	return false
}

// Leaves returns a snapshot of the current frontier, in insertion order of
// the surviving leaves.
func (c *Container) Leaves() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshotNodes(c.leaves)
}

// Timeline returns a snapshot of every node in delivery order, duplicates
// already collapsed by Add's idempotence.
func (c *Container) Timeline() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshotNodes(c.timeline)
}

func snapshotNodes(l *list.List) []*Node {
	out := make([]*Node, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Node))
	}
	return out
}

// History returns a snapshot of every inserted message's Meta, in
// insertion order. Because Meta is frozen on insertion, the returned
// values are safe for the caller to read without further synchronization.
func (c *Container) History() []wire.Meta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]wire.Meta, 0, c.timeline.Len())
	for e := c.timeline.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Node).Meta)
	}
	return out
}

// Last returns the most recently inserted message, or nil if the container
// is empty.
func (c *Container) Last() *wire.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.timeline.Back()
	if e == nil {
		return nil
	}
	msg := e.Value.(*Node).Message
	return &msg
}

// LastHeader returns the header of the most recently inserted message.
func (c *Container) LastHeader() *wire.Header {
	msg := c.Last()
	if msg == nil {
		return nil
	}
	return &msg.Header
}

// LastOffset returns the log offset of the most recently inserted message,
// or zero if the container is empty.
func (c *Container) LastOffset() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.timeline.Back()
	if e == nil {
		return 0
	}
	return e.Value.(*Node).Meta.Offset
}

// LastData returns the payload of the most recently inserted message.
func (c *Container) LastData() []byte {
	msg := c.Last()
	if msg == nil {
		return nil
	}
	return msg.Payload
}

// HasPayload reports whether the most recently inserted message carries a
// body.
func (c *Container) HasPayload() bool {
	msg := c.Last()
	return msg != nil && msg.HasPayload()
}

// Immutable reports whether the most recently inserted header declares the
// object closed to further writes: InheritWrite is false and AllowWrite is
// empty.
func (c *Container) Immutable() bool {
	h := c.LastHeader()
	if h == nil {
		return false
	}
	return !h.InheritWrite && len(h.AllowWrite) == 0
}

// PayloadClass returns the last header's payload class tag, or "[null]"
// when the container is empty.
func (c *Container) PayloadClass() string {
	h := c.LastHeader()
	if h == nil {
		return "[null]"
	}
	return h.PayloadClass
}

// Len returns the number of distinct versions inserted.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup.len()
}

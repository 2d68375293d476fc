// Package graph implements the per-object version graph: GraphNode,
// VersionIndex, and Container. This is the part of the module that
// reconstructs version lineage from an arbitrary-order stream of messages
// and tracks the current frontier (leaves) that MergeDriver reconciles.
package graph

import (
	"container/list"

	"github.com/lineagedb/lineage/wire"
)

// Node is one revision of one object: the message that produced it, the
// declared lineage from its header, and the computed links to its parent
// and children. Node is an arena-owned value — callers reach it only
// through a Container's lock, never by holding a raw pointer across calls
// that might mutate the graph.
type Node struct {
	Message wire.Message
	Meta    wire.Meta

	version         wire.UUID
	previousVersion *wire.UUID
	merges          wire.VersionSet

	parent   *Node
	children []*Node

	// leafElem is the *list.Element backing this node's membership in the
	// owning Container's leaves list, or nil if the node is not currently
	// a leaf. Kept on the node so leaf removal is O(1) instead of a scan,
	// matching the "LinkedList for leaves" design note.
	leafElem *list.Element

	// timelineElem is this node's position in insertion order.
	timelineElem *list.Element
}

// Version returns the revision identifier this node represents.
func (n *Node) Version() wire.UUID {
	return n.version
}

// PreviousVersion returns the declared single parent version, or nil if
// this node declared none.
func (n *Node) PreviousVersion() *wire.UUID {
	return n.previousVersion
}

// Merges returns the declared additional parents (empty when this node was
// not produced by a merge).
func (n *Node) Merges() wire.VersionSet {
	return n.merges
}

// Parent returns the computed parent link, or nil when the declared parent
// had not arrived when this node was added (an orphan; the link is not
// filled in later) or there was none.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the nodes that declared this node as their previous
// version and were added after it, in the order they were linked. The returned slice is owned by
// the caller; Container never hands out its internal slice.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func newNode(msg wire.Message, meta wire.Meta) *Node {
	h := msg.Header
	return &Node{
		Message:         msg,
		Meta:            meta,
		version:         h.Version,
		previousVersion: h.PreviousVersion,
		merges:          h.Merges,
	}
}

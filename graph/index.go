package graph

import "github.com/lineagedb/lineage/wire"

// versionIndex maps a version UUID to its Node. It supports lookup and
// insert-if-absent; Container is the only caller and always holds its
// write lock while mutating it.
type versionIndex struct {
	byVersion map[wire.UUID]*Node
}

func newVersionIndex() *versionIndex {
	return &versionIndex{byVersion: make(map[wire.UUID]*Node)}
}

// get returns the node for v, or nil if absent.
func (idx *versionIndex) get(v wire.UUID) *Node {
	return idx.byVersion[v]
}

// has reports whether v is already indexed.
func (idx *versionIndex) has(v wire.UUID) bool {
	_, ok := idx.byVersion[v]
	return ok
}

// insert adds n under its own version. Callers must have already checked
// has(n.Version()) to preserve idempotence; insert itself does not check.
func (idx *versionIndex) insert(n *Node) {
	idx.byVersion[n.version] = n
}

func (idx *versionIndex) len() int {
	return len(idx.byVersion)
}

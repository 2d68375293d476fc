package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineagedb/lineage/collab"
	"github.com/lineagedb/lineage/graph"
	"github.com/lineagedb/lineage/mergecache"
	"github.com/lineagedb/lineage/wire"
)

func newTestCache(t *testing.T) *mergecache.Cache {
	t.Helper()
	return mergecache.New(64, 0)
}

type testRecord struct {
	version wire.UUID
	prev    *wire.UUID
	merges  wire.VersionSet
	tag     string
}

func (r *testRecord) Version() wire.UUID             { return r.version }
func (r *testRecord) SetPreviousVersion(v *wire.UUID) { r.prev = v }
func (r *testRecord) SetVersion(v wire.UUID)          { r.version = v }
func (r *testRecord) SetMerges(m wire.VersionSet)     { r.merges = m }

type fakeSerializer struct {
	calls int
}

func (s *fakeSerializer) FromDataMessage(_ context.Context, _ string, msg wire.Message, _ bool) (collab.Record, error) {
	s.calls++
	return &testRecord{version: msg.Header.Version, tag: string(msg.Payload)}, nil
}

type fakeMerger struct {
	result collab.Record
	err    error
}

func (m *fakeMerger) Merge(_ context.Context, pairs []collab.MergePair) (collab.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type fakePerms struct{ allow bool }

func (p fakePerms) CanWrite(_ []string) bool { return p.allow }

type fakeAuthz struct {
	allow   bool
	err     error
	callCnt int
}

func (a *fakeAuthz) Perms(_ context.Context, _ string, _, _ wire.UUID, _ bool) (collab.Permissions, error) {
	a.callCnt++
	if a.err != nil {
		return nil, a.err
	}
	return fakePerms{allow: a.allow}, nil
}

type fakeLogBridge struct {
	writeBacks []collab.Record
}

func (b *fakeLogBridge) MergeAsyncWithoutValidation(r collab.Record) {
	b.writeBacks = append(b.writeBacks, r)
}
func (b *fakeLogBridge) Sync(context.Context, string, collab.SyncToken) error { return nil }

type fakeResolver struct{}

func (fakeResolver) Resolve(collab.Record) (string, error) { return "p0", nil }

func addMsg(c *graph.Container, v, prev wire.UUID, hasPrev bool, payload string) {
	h := wire.Header{ObjectID: uuid.New(), Version: v, PayloadClass: "x"}
	if hasPrev {
		p := prev
		h.PreviousVersion = &p
	}
	c.Add(wire.Message{Header: h, Payload: []byte(payload)}, &wire.Meta{})
}

func TestMergedDataSingleLeafSetsPreviousVersion(t *testing.T) {
	c := graph.New("p0")
	v0, v1 := uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1, v0, true, "head")

	ser := &fakeSerializer{}
	echoResult := &testRecord{version: v1}
	d := New(ser, &fakeMerger{result: echoResult}, nil, nil, fakeResolver{}, nil, nil)

	rec, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)
	tr := rec.(*testRecord)
	assert.Equal(t, v1, tr.version)
	require.NotNil(t, tr.prev)
	assert.Equal(t, v1, *tr.prev) // single-leaf: previousVersion set to that leaf's own version
}

func TestMergedDataEmptyGraph(t *testing.T) {
	c := graph.New("p0")
	d := New(&fakeSerializer{}, &fakeMerger{}, nil, nil, fakeResolver{}, nil, nil)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestMergedDataDivergentFrontierMergeFailed(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	d := New(&fakeSerializer{}, &fakeMerger{result: nil}, nil, nil, fakeResolver{}, nil, nil)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	assert.ErrorIs(t, err, ErrMergeFailed)
}

func TestMergedDataMultiParentReconciliationTriggersWriteBack(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	merged := &testRecord{}
	authz := &fakeAuthz{allow: true}
	bridge := &fakeLogBridge{}
	d := New(&fakeSerializer{}, &fakeMerger{result: merged}, authz, bridge, fakeResolver{}, nil, nil)

	rec, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, []string{"write"})
	require.NoError(t, err)
	tr := rec.(*testRecord)

	assert.Nil(t, tr.prev) // true merge: previousVersion cleared
	assert.NotEqual(t, wire.Nil, tr.version) // fresh version minted
	assert.Len(t, tr.merges, 2)
	assert.Contains(t, tr.merges, v1a)
	assert.Contains(t, tr.merges, v1b)

	require.Len(t, bridge.writeBacks, 1)
	assert.Same(t, merged, bridge.writeBacks[0])
	assert.Equal(t, 1, authz.callCnt)
}

func TestMergedDataWriteBackSuppressedWhenUnauthorized(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	merged := &testRecord{}
	authz := &fakeAuthz{allow: false}
	bridge := &fakeLogBridge{}
	d := New(&fakeSerializer{}, &fakeMerger{result: merged}, authz, bridge, fakeResolver{}, nil, nil)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)
	assert.Empty(t, bridge.writeBacks)
}

func TestMergedDataAuthorizationErrorNeverPropagatesToReader(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	merged := &testRecord{}
	authz := &fakeAuthz{err: errors.New("log unavailable")}
	bridge := &fakeLogBridge{}
	d := New(&fakeSerializer{}, &fakeMerger{result: merged}, authz, bridge, fakeResolver{}, nil, nil)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)
	assert.Empty(t, bridge.writeBacks)
}

type fakeTrail struct {
	writeBacks []string
	denials    []string
}

func (tr *fakeTrail) WriteBack(partitionKey string, objectID, mergedInto wire.UUID, success bool, reason string) error {
	tr.writeBacks = append(tr.writeBacks, partitionKey)
	return nil
}

func (tr *fakeTrail) WriteDenied(partitionKey string, objectID wire.UUID, reason string) error {
	tr.denials = append(tr.denials, partitionKey)
	return nil
}

func TestMergedDataLogsWriteBackToTrail(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	merged := &testRecord{}
	authz := &fakeAuthz{allow: true}
	bridge := &fakeLogBridge{}
	trail := &fakeTrail{}
	d := New(&fakeSerializer{}, &fakeMerger{result: merged}, authz, bridge, fakeResolver{}, nil, nil)
	d.SetTrail(trail)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, []string{"write"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p0"}, trail.writeBacks)
	assert.Empty(t, trail.denials)
}

func TestMergedDataLogsDenialToTrail(t *testing.T) {
	c := graph.New("p0")
	v0, v1a, v1b := uuid.New(), uuid.New(), uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")
	addMsg(c, v1a, v0, true, "a")
	addMsg(c, v1b, v0, true, "b")

	merged := &testRecord{}
	authz := &fakeAuthz{allow: false}
	bridge := &fakeLogBridge{}
	trail := &fakeTrail{}
	d := New(&fakeSerializer{}, &fakeMerger{result: merged}, authz, bridge, fakeResolver{}, nil, nil)
	d.SetTrail(trail)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p0"}, trail.denials)
	assert.Empty(t, trail.writeBacks)
}

func TestMergedHeaderSingleLeaf(t *testing.T) {
	c := graph.New("p0")
	v0 := uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")

	d := New(&fakeSerializer{}, &fakeMerger{}, nil, nil, fakeResolver{}, nil, nil)
	h, err := d.MergedHeader(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, v0, h.Version)
}

func TestMergedHeaderEmptyGraph(t *testing.T) {
	c := graph.New("p0")
	d := New(&fakeSerializer{}, &fakeMerger{}, nil, nil, fakeResolver{}, nil, nil)
	_, err := d.MergedHeader(context.Background(), c)
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestDeserializeIsMemoized(t *testing.T) {
	c := graph.New("p0")
	v0 := uuid.New()
	addMsg(c, v0, wire.Nil, false, "base")

	ser := &fakeSerializer{}
	cache := newTestCache(t)
	d := New(ser, &fakeMerger{result: &testRecord{version: v0}}, nil, nil, fakeResolver{}, cache, nil)

	_, err := d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)
	_, err = d.MergedData(context.Background(), "obj-1", "p0", uuid.New(), c, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ser.calls)
}

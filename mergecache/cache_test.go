package mergecache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineagedb/lineage/wire"
)

type fakeRecord struct {
	version wire.UUID
	prev    *wire.UUID
	merges  wire.VersionSet
}

func (r *fakeRecord) Version() wire.UUID             { return r.version }
func (r *fakeRecord) SetPreviousVersion(v *wire.UUID) { r.prev = v }
func (r *fakeRecord) SetVersion(v wire.UUID)          { r.version = v }
func (r *fakeRecord) SetMerges(m wire.VersionSet)     { r.merges = m }

func TestGetMiss(t *testing.T) {
	c := New(2, 0)
	_, ok := c.Get(Key{ContainerID: "a", Version: uuid.New()})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestPutGet(t *testing.T) {
	c := New(2, 0)
	k := Key{ContainerID: "a", Version: uuid.New()}
	rec := &fakeRecord{version: k.Version}

	c.Put(k, rec)
	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0)
	k1 := Key{ContainerID: "a", Version: uuid.New()}
	k2 := Key{ContainerID: "a", Version: uuid.New()}
	k3 := Key{ContainerID: "a", Version: uuid.New()}

	c.Put(k1, &fakeRecord{version: k1.Version})
	c.Put(k2, &fakeRecord{version: k2.Version})
	c.Put(k3, &fakeRecord{version: k3.Version}) // evicts k1 (LRU)

	_, ok := c.Get(k1)
	assert.False(t, ok)
	_, ok = c.Get(k2)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
}

func TestExpiresAfterTTL(t *testing.T) {
	c := New(10, time.Millisecond)
	k := Key{ContainerID: "a", Version: uuid.New()}
	c.Put(k, &fakeRecord{version: k.Version})

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestInvalidateContainer(t *testing.T) {
	c := New(10, 0)
	kA := Key{ContainerID: "a", Version: uuid.New()}
	kB := Key{ContainerID: "b", Version: uuid.New()}
	c.Put(kA, &fakeRecord{version: kA.Version})
	c.Put(kB, &fakeRecord{version: kB.Version})

	c.InvalidateContainer("a")

	_, ok := c.Get(kA)
	assert.False(t, ok)
	_, ok = c.Get(kB)
	assert.True(t, ok)
}

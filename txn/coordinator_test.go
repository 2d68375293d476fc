package txn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineagedb/lineage/collab"
)

type fakeBridge struct {
	mu    sync.Mutex
	order []string
	err   map[string]error
}

func (b *fakeBridge) MergeAsyncWithoutValidation(collab.Record) {}

func (b *fakeBridge) Sync(_ context.Context, partitionKey string, token collab.SyncToken) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = append(b.order, partitionKey)
	if b.err != nil {
		if err, ok := b.err[partitionKey]; ok {
			return err
		}
	}
	return nil
}

func TestFinishDrainsInFIFOOrder(t *testing.T) {
	bridge := &fakeBridge{}
	c := New(bridge)

	c.Add("p1", "tok1")
	c.Add("p2", "tok2")
	c.Add("p3", "tok3")

	require.NoError(t, c.Finish(context.Background()))
	assert.Equal(t, []string{"p1", "p2", "p3"}, bridge.order)
}

func TestFinishOnEmptyQueueIsNoop(t *testing.T) {
	bridge := &fakeBridge{}
	c := New(bridge)
	require.NoError(t, c.Finish(context.Background()))
	assert.Empty(t, bridge.order)
}

func TestFinishContinuesPastErrorsAndReturnsFirst(t *testing.T) {
	bridge := &fakeBridge{err: map[string]error{"p2": errors.New("sync failed")}}
	c := New(bridge)

	c.Add("p1", "tok1")
	c.Add("p2", "tok2")
	c.Add("p3", "tok3")

	err := c.Finish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
	// all three were still attempted despite p2 failing
	assert.Equal(t, []string{"p1", "p2", "p3"}, bridge.order)
}

func TestAddAfterCloseIsDropped(t *testing.T) {
	bridge := &fakeBridge{}
	c := New(bridge)
	c.Close()
	c.Add("p1", "tok1")

	require.NoError(t, c.Finish(context.Background()))
	assert.Empty(t, bridge.order)
}

func TestConcurrentAddAndFinish(t *testing.T) {
	bridge := &fakeBridge{}
	c := New(bridge)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add("p", i)
		}(i)
	}
	wg.Wait()
	require.NoError(t, c.Finish(context.Background()))
	assert.Len(t, bridge.order, 50)
}

func TestOnSessionEventFlushesSilently(t *testing.T) {
	bridge := &fakeBridge{err: map[string]error{"p1": errors.New("boom")}}
	c := New(bridge)
	c.Add("p1", "tok1")
	c.OnSessionEvent(context.Background())
	assert.Equal(t, []string{"p1"}, bridge.order)
}

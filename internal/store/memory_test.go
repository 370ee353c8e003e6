package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterDoc struct {
	N int `json:"n"`
}

func TestMemoryStoreGetPutDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	var missing counterDoc
	require.ErrorIs(t, st.Get(ctx, "k", &missing), ErrNotFound)

	require.NoError(t, st.Put(ctx, "k", counterDoc{N: 3}))
	var got counterDoc
	require.NoError(t, st.Get(ctx, "k", &got))
	assert.Equal(t, 3, got.N)

	require.NoError(t, st.Delete(ctx, "k"))
	require.ErrorIs(t, st.Get(ctx, "k", &got), ErrNotFound)
}

func TestUpdateAppliesConcurrentIncrementsWithoutLoss(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "counter", counterDoc{}))

	const workers = 16
	var wg sync.WaitGroup
	var applied atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.Update(ctx, "counter", func(tx Txn) error {
				var c counterDoc
				if _, err := tx.Get("counter", &c); err != nil {
					return err
				}
				c.N++
				tx.Put("counter", &c)
				return nil
			})
			if err == nil {
				applied.Add(1)
			} else {
				// Only contention exhaustion is acceptable here.
				assert.ErrorIs(t, err, ErrUnavailable)
			}
		}()
	}
	wg.Wait()

	var final counterDoc
	require.NoError(t, st.Get(ctx, "counter", &final))
	assert.Equal(t, int(applied.Load()), final.N, "every committed read-modify-write must apply against fresh state")
	assert.Greater(t, final.N, 0)
}

func TestUpdateAbortWritesNothing(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "doc", counterDoc{N: 1}))

	boom := errors.New("precondition failed")
	err := st.Update(ctx, "doc", func(tx Txn) error {
		var c counterDoc
		if _, err := tx.Get("doc", &c); err != nil {
			return err
		}
		c.N = 99
		tx.Put("doc", &c)
		tx.Put("other", counterDoc{N: 7})
		return boom
	})
	require.ErrorIs(t, err, boom)

	var c counterDoc
	require.NoError(t, st.Get(ctx, "doc", &c))
	assert.Equal(t, 1, c.N)
	require.ErrorIs(t, st.Get(ctx, "other", &c), ErrNotFound)
}

func TestUpdateReadsOwnStagedWrites(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	err := st.Update(ctx, "a", func(tx Txn) error {
		tx.Put("a", counterDoc{N: 1})
		var c counterDoc
		ok, err := tx.Get("a", &c)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, c.N)

		tx.Delete("a")
		ok, err = tx.Get("a", &c)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestListFiltersByPrefixAndSkipsDeleted(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "queue/math/a", counterDoc{}))
	require.NoError(t, st.Put(ctx, "queue/math/b", counterDoc{}))
	require.NoError(t, st.Put(ctx, "queue/general/c", counterDoc{}))
	require.NoError(t, st.Delete(ctx, "queue/math/b"))

	keys, err := st.List(ctx, "queue/math/")
	require.NoError(t, err)
	assert.Equal(t, []string{"queue/math/a"}, keys)
}

func TestSubscribeStreamsCommittedWrites(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := st.Subscribe(ctx, "doc")
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "doc", counterDoc{N: 5}))

	select {
	case raw := <-ch:
		assert.JSONEq(t, `{"n":5}`, string(raw))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription update")
	}

	require.NoError(t, st.Delete(ctx, "doc"))
	select {
	case raw := <-ch:
		assert.Nil(t, raw, "deletes notify with a nil payload")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete notification")
	}
}

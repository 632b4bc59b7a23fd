// Package testkit holds the conformance suite every storage.Store backend runs.
package testkit

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
)

// NewStore constructs a fresh, empty store isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func addr(b byte) storage.Address {
	var a storage.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func account(size int) storage.Account {
	return storage.Account{Owner: addr(0xaa), Deposit: 2_282_880, Data: make([]byte, size)}
}

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("AllocateRead", func(t *testing.T) {
		s := newStore(t)
		want := account(32)
		want.Data[0] = 7
		require.NoError(t, s.Allocate(ctx, addr(1), want))

		got, err := s.Read(ctx, addr(1))
		require.NoError(t, err)
		assert.Equal(t, want.Owner, got.Owner)
		assert.Equal(t, want.Deposit, got.Deposit)
		assert.True(t, bytes.Equal(want.Data, got.Data))
	})

	t.Run("AllocateIsCreateOnce", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Allocate(ctx, addr(2), account(1)))
		err := s.Allocate(ctx, addr(2), account(32))
		assert.True(t, storage.IsAlreadyAllocated(err), "got %v", err)

		got, err := s.Read(ctx, addr(2))
		require.NoError(t, err)
		assert.Len(t, got.Data, 1)
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Has(ctx, addr(3))
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Read(ctx, addr(3))
		assert.True(t, storage.IsNotFound(err), "Read: %v", err)
		assert.True(t, storage.IsNotFound(s.Write(ctx, addr(3), []byte{1})), "Write")
		_, err = s.Deallocate(ctx, addr(3))
		assert.True(t, storage.IsNotFound(err), "Deallocate: %v", err)

		require.NoError(t, s.Allocate(ctx, addr(3), account(1)))
		ok, err = s.Has(ctx, addr(3))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("WriteKeepsSize", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Allocate(ctx, addr(4), account(1)))
		require.NoError(t, s.Write(ctx, addr(4), []byte{1}))
		err := s.Write(ctx, addr(4), make([]byte, 32))
		assert.ErrorIs(t, err, storage.ErrSizeMismatch)

		got, err := s.Read(ctx, addr(4))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got.Data)
	})

	t.Run("DeallocateReturnsAccount", func(t *testing.T) {
		s := newStore(t)
		acct := account(32)
		require.NoError(t, s.Allocate(ctx, addr(5), acct))
		got, err := s.Deallocate(ctx, addr(5))
		require.NoError(t, err)
		assert.Equal(t, acct.Deposit, got.Deposit)

		ok, err := s.Has(ctx, addr(5))
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, s.Allocate(ctx, addr(5), acct), "address is reusable after deallocation")
	})

	t.Run("ConcurrentAllocateOneWins", func(t *testing.T) {
		s := newStore(t)
		const n = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Allocate(ctx, addr(6), account(1)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("ScanOrdered", func(t *testing.T) {
		s := newStore(t)
		l, ok := s.(storage.Lister)
		if !ok {
			t.Skip("store does not implement storage.Lister")
		}
		for _, b := range []byte{9, 7, 8} {
			require.NoError(t, s.Allocate(ctx, addr(b), account(1)))
		}
		var seen []storage.Address
		require.NoError(t, l.Scan(ctx, func(a storage.Address, _ storage.Account) error {
			seen = append(seen, a)
			return nil
		}))
		assert.Equal(t, []storage.Address{addr(7), addr(8), addr(9)}, seen)
	})
}

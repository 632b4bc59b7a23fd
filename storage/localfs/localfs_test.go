package localfs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestLocalFS_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	addr := storage.Address{4, 2}
	require.NoError(t, s.Allocate(ctx, addr, storage.Account{Deposit: 10, Data: []byte{1}}))

	s2, err := New(dir)
	require.NoError(t, err)
	err = s2.Allocate(ctx, addr, storage.Account{Data: []byte{1}})
	assert.ErrorIs(t, err, storage.ErrAlreadyAllocated)
	got, err := s2.Read(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Deposit)
}

func TestLocalFS_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	addr := storage.Address{9}
	require.NoError(t, s.Allocate(ctx, addr, storage.Account{Data: []byte{1}}))

	require.NoError(t, os.WriteFile(s.pathFor(addr), []byte{0xff}, 0o644))
	_, err = s.Read(ctx, addr)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

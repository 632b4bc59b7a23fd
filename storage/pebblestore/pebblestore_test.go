package pebblestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/testkit"
)

func TestPebble_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := Open(nil, t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPebble_OpenLogsPath(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dir := t.TempDir()
	s, err := Open(zap.New(core), dir)
	require.NoError(t, err)
	defer s.Close()

	entries := logs.FilterMessage("ledger store opened").All()
	require.Len(t, entries, 1)
	assert.Equal(t, dir, entries[0].ContextMap()["path"])
}

func TestPebble_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(nil, dir)
	require.NoError(t, err)
	addr := storage.Address{1, 2, 3}
	require.NoError(t, s.Allocate(ctx, addr, storage.Account{Deposit: 5, Data: []byte{1}}))
	require.NoError(t, s.Close())

	s, err = Open(nil, dir)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.Has(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)
}

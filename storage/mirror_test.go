package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/memstore"
	"github.com/dikanevn/bf/storage/testkit"
)

func TestMirror_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return storage.Mirror{Backends: []storage.NamedStore{
			{Name: "a", Store: memstore.New()},
			{Name: "b", Store: memstore.New()},
		}}
	})
}

func TestMirror_AllocateRollsBack(t *testing.T) {
	ctx := context.Background()
	a, b := memstore.New(), memstore.New()
	require.NoError(t, b.Allocate(ctx, addr(1), storage.Account{Data: []byte{9}}))

	m := storage.Mirror{Backends: []storage.NamedStore{{Name: "a", Store: a}, {Name: "b", Store: b}}}
	err := m.Allocate(ctx, addr(1), storage.Account{Data: []byte{1}})
	assert.True(t, storage.IsAlreadyAllocated(err), "got %v", err)
	assert.Zero(t, a.Len(), "first backend rolled back")
}

func TestMirror_ReadFallsBack(t *testing.T) {
	ctx := context.Background()
	a, b := memstore.New(), memstore.New()
	require.NoError(t, b.Allocate(ctx, addr(2), storage.Account{Data: []byte{4}}))

	m := storage.Mirror{Backends: []storage.NamedStore{{Name: "a", Store: a}, {Name: "b", Store: b}}}
	got, err := m.Read(ctx, addr(2))
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got.Data)

	ok, err := m.Has(ctx, addr(2))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMirror_NoBackends(t *testing.T) {
	err := storage.Mirror{}.Allocate(context.Background(), addr(1), storage.Account{})
	assert.Error(t, err)
}

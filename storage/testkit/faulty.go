package testkit

import (
	"context"
	"errors"
	"sync"

	"github.com/dikanevn/bf/storage"
)

// ErrInjected is returned by FaultyStore for armed operations.
var ErrInjected = errors.New("testkit: injected fault")

// FaultyStore wraps a Store and fails chosen operations ("allocate", "read",
// "write", "deallocate", "has") a fixed number of times.
type FaultyStore struct {
	storage.Store

	mu     sync.Mutex
	armed  map[string]int
	Counts map[string]int
}

func NewFaultyStore(s storage.Store) *FaultyStore {
	return &FaultyStore{Store: s, armed: map[string]int{}, Counts: map[string]int{}}
}

// FailNext makes the next n calls of op fail with ErrInjected.
func (f *FaultyStore) FailNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[op] = n
}

func (f *FaultyStore) trip(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Counts[op]++
	if f.armed[op] > 0 {
		f.armed[op]--
		return ErrInjected
	}
	return nil
}

func (f *FaultyStore) Allocate(ctx context.Context, a storage.Address, acct storage.Account) error {
	if err := f.trip("allocate"); err != nil {
		return err
	}
	return f.Store.Allocate(ctx, a, acct)
}

func (f *FaultyStore) Read(ctx context.Context, a storage.Address) (storage.Account, error) {
	if err := f.trip("read"); err != nil {
		return storage.Account{}, err
	}
	return f.Store.Read(ctx, a)
}

func (f *FaultyStore) Write(ctx context.Context, a storage.Address, data []byte) error {
	if err := f.trip("write"); err != nil {
		return err
	}
	return f.Store.Write(ctx, a, data)
}

func (f *FaultyStore) Deallocate(ctx context.Context, a storage.Address) (storage.Account, error) {
	if err := f.trip("deallocate"); err != nil {
		return storage.Account{}, err
	}
	return f.Store.Deallocate(ctx, a)
}

func (f *FaultyStore) Has(ctx context.Context, a storage.Address) (bool, error) {
	if err := f.trip("has"); err != nil {
		return false, err
	}
	return f.Store.Has(ctx, a)
}

// Package memstore is an in-process storage.Store used by the simulated host
// and tests.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/dikanevn/bf/storage"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[storage.Address]storage.Account
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

func New() *Store {
	return &Store{accounts: make(map[storage.Address]storage.Account)}
}

func (s *Store) Allocate(_ context.Context, addr storage.Address, acct storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[addr]; ok {
		return storage.ErrAlreadyAllocated
	}
	s.accounts[addr] = acct.Clone()
	return nil
}

func (s *Store) Read(_ context.Context, addr storage.Address) (storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return storage.Account{}, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *Store) Write(_ context.Context, addr storage.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return storage.ErrNotFound
	}
	if len(data) != len(acct.Data) {
		return storage.ErrSizeMismatch
	}
	acct.Data = append([]byte(nil), data...)
	s.accounts[addr] = acct
	return nil
}

func (s *Store) Deallocate(_ context.Context, addr storage.Address) (storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return storage.Account{}, storage.ErrNotFound
	}
	delete(s.accounts, addr)
	return acct, nil
}

func (s *Store) Has(_ context.Context, addr storage.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[addr]
	return ok, nil
}

func (s *Store) Scan(ctx context.Context, fn func(storage.Address, storage.Account) error) error {
	s.mu.RLock()
	addrs := make([]storage.Address, 0, len(s.accounts))
	for a := range s.accounts {
		addrs = append(addrs, a)
	}
	s.mu.RUnlock()
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, a := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		acct, err := s.Read(ctx, a)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(a, acct); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of allocated accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Package pebblestore keeps ledger accounts in a Pebble database.
package pebblestore

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/storage"
)

var accountPrefix = []byte("acct/")

func key(addr storage.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// Store serializes mutations in-process; Pebble has no compare-and-set, so
// create-once holds for a single process owning the directory.
type Store struct {
	logger *zap.Logger
	db     *pebble.DB
	mu     sync.Mutex
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

func Open(logger *zap.Logger, path string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open pebble")
	}
	logger.Info("ledger store opened", zap.String("backend", "pebble"), zap.String("path", path))
	return &Store{logger: logger, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(addr storage.Address) (storage.Account, error) {
	value, closer, err := s.db.Get(key(addr))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, errors.Wrap(err, "get account")
	}
	defer closer.Close()
	return storage.DecodeAccount(value)
}

func (s *Store) set(addr storage.Address, acct storage.Account) error {
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	return errors.Wrap(s.db.Set(key(addr), b, &pebble.WriteOptions{Sync: true}), "set account")
}

func (s *Store) Allocate(_ context.Context, addr storage.Address, acct storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.get(addr)
	if err == nil {
		return storage.ErrAlreadyAllocated
	}
	if !storage.IsNotFound(err) {
		return err
	}
	return s.set(addr, acct)
}

func (s *Store) Read(_ context.Context, addr storage.Address) (storage.Account, error) {
	return s.get(addr)
}

func (s *Store) Write(_ context.Context, addr storage.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.get(addr)
	if err != nil {
		return err
	}
	if len(data) != len(acct.Data) {
		return storage.ErrSizeMismatch
	}
	acct.Data = data
	return s.set(addr, acct)
}

func (s *Store) Deallocate(_ context.Context, addr storage.Address) (storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.get(addr)
	if err != nil {
		return storage.Account{}, err
	}
	if err := s.db.Delete(key(addr), &pebble.WriteOptions{Sync: true}); err != nil {
		return storage.Account{}, errors.Wrap(err, "delete account")
	}
	return acct, nil
}

func (s *Store) Has(_ context.Context, addr storage.Address) (bool, error) {
	_, err := s.get(addr)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Scan(ctx context.Context, fn func(storage.Address, storage.Account) error) error {
	upper := append([]byte(nil), accountPrefix...)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: accountPrefix,
		UpperBound: upper,
	})
	if err != nil {
		return errors.Wrap(err, "scan accounts")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := iter.Key()
		if len(k) != len(accountPrefix)+32 {
			continue
		}
		var addr storage.Address
		copy(addr[:], k[len(accountPrefix):])
		acct, err := storage.DecodeAccount(append([]byte(nil), iter.Value()...))
		if err != nil {
			return errors.Wrapf(err, "decode %s", addr)
		}
		if err := fn(addr, acct); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Package badgerstore keeps ledger accounts in BadgerDB. Each mutation is one
// serializable transaction, so create-once holds under concurrent writers.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/storage"
)

var accountPrefix = []byte("acct/")

func key(addr storage.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

type Options struct {
	Dir string
	// InMemory keeps all data in memory; Dir is ignored.
	InMemory   bool
	SyncWrites bool
}

type Store struct {
	logger *zap.Logger
	db     *badgerdb.DB
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

func Open(logger *zap.Logger, opts Options) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bopts := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts = bopts.WithLogger(nil)

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	logger.Info("ledger store opened", zap.String("backend", "badger"), zap.String("path", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{logger: logger, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func getAccount(txn *badgerdb.Txn, addr storage.Address) (storage.Account, error) {
	item, err := txn.Get(key(addr))
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, err
	}
	b, err := item.ValueCopy(nil)
	if err != nil {
		return storage.Account{}, err
	}
	return storage.DecodeAccount(b)
}

func setAccount(txn *badgerdb.Txn, addr storage.Address, acct storage.Account) error {
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	return txn.Set(key(addr), b)
}

// update runs fn, mapping a transaction conflict on commit to conflictErr.
func (s *Store) update(fn func(txn *badgerdb.Txn) error, conflictErr error) error {
	err := s.db.Update(fn)
	if errors.Is(err, badgerdb.ErrConflict) {
		return conflictErr
	}
	return err
}

func (s *Store) Allocate(_ context.Context, addr storage.Address, acct storage.Account) error {
	return s.update(func(txn *badgerdb.Txn) error {
		_, err := getAccount(txn, addr)
		if err == nil {
			return storage.ErrAlreadyAllocated
		}
		if !storage.IsNotFound(err) {
			return err
		}
		return setAccount(txn, addr, acct)
	}, storage.ErrAlreadyAllocated)
}

func (s *Store) Read(_ context.Context, addr storage.Address) (storage.Account, error) {
	var out storage.Account
	err := s.db.View(func(txn *badgerdb.Txn) error {
		acct, err := getAccount(txn, addr)
		out = acct
		return err
	})
	return out, err
}

func (s *Store) Write(_ context.Context, addr storage.Address, data []byte) error {
	return s.update(func(txn *badgerdb.Txn) error {
		acct, err := getAccount(txn, addr)
		if err != nil {
			return err
		}
		if len(data) != len(acct.Data) {
			return storage.ErrSizeMismatch
		}
		acct.Data = data
		return setAccount(txn, addr, acct)
	}, badgerdb.ErrConflict)
}

func (s *Store) Deallocate(_ context.Context, addr storage.Address) (storage.Account, error) {
	var out storage.Account
	err := s.update(func(txn *badgerdb.Txn) error {
		acct, err := getAccount(txn, addr)
		if err != nil {
			return err
		}
		out = acct
		return txn.Delete(key(addr))
	}, storage.ErrNotFound)
	return out, err
}

func (s *Store) Has(ctx context.Context, addr storage.Address) (bool, error) {
	_, err := s.Read(ctx, addr)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Scan(ctx context.Context, fn func(storage.Address, storage.Account) error) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = accountPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			k := item.KeyCopy(nil)
			if len(k) != len(accountPrefix)+32 {
				continue
			}
			var addr storage.Address
			copy(addr[:], k[len(accountPrefix):])
			b, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			acct, err := storage.DecodeAccount(b)
			if err != nil {
				return err
			}
			if err := fn(addr, acct); err != nil {
				return err
			}
		}
		return nil
	})
}

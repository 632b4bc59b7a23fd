// Package localfs stores ledger accounts as one file per address.
//
// Allocation uses O_EXCL so create-once holds across processes sharing the
// directory. Writes replace the file through a rename.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dikanevn/bf/storage"
)

type Store struct {
	root string
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Lister = (*Store)(nil)
)

// New opens a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Allocate(_ context.Context, addr storage.Address, acct storage.Account) error {
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	path := s.pathFor(addr)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return storage.ErrAlreadyAllocated
		}
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func (s *Store) Read(_ context.Context, addr storage.Address) (storage.Account, error) {
	b, err := os.ReadFile(s.pathFor(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, err
	}
	return storage.DecodeAccount(b)
}

func (s *Store) Write(ctx context.Context, addr storage.Address, data []byte) error {
	acct, err := s.Read(ctx, addr)
	if err != nil {
		return err
	}
	if len(data) != len(acct.Data) {
		return storage.ErrSizeMismatch
	}
	acct.Data = data
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}

	path := s.pathFor(addr)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".write-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Deallocate(ctx context.Context, addr storage.Address) (storage.Account, error) {
	acct, err := s.Read(ctx, addr)
	if err != nil {
		return storage.Account{}, err
	}
	if err := os.Remove(s.pathFor(addr)); err != nil {
		if os.IsNotExist(err) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, err
	}
	return acct, nil
}

func (s *Store) Has(_ context.Context, addr storage.Address) (bool, error) {
	_, err := os.Stat(s.pathFor(addr))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Scan(ctx context.Context, fn func(storage.Address, storage.Account) error) error {
	var addrs []storage.Address
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		a, perr := storage.ParseAddress(d.Name())
		if perr != nil {
			return nil
		}
		addrs = append(addrs, a)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, a := range addrs {
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

func (s *Store) pathFor(addr storage.Address) string {
	name := addr.String()
	return filepath.Join(s.root, name[:2], name)
}

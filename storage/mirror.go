package storage

import (
	"context"
	"fmt"
)

// NamedStore associates a Store with a stable backend name.
type NamedStore struct {
	Name  string
	Store Store
}

// Mirror writes to every backend and reads from the first that has the account.
//
// Allocate is create-once across the set: if any backend refuses, backends that
// already accepted are rolled back and the refusal is returned.
type Mirror struct {
	Backends []NamedStore
}

var _ Store = Mirror{}

func (m Mirror) check() error {
	if len(m.Backends) == 0 {
		return fmt.Errorf("storage: mirror has no backends")
	}
	for _, b := range m.Backends {
		if b.Store == nil {
			return fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
	}
	return nil
}

func (m Mirror) Allocate(ctx context.Context, addr Address, acct Account) error {
	if err := m.check(); err != nil {
		return err
	}
	for i, b := range m.Backends {
		if err := b.Store.Allocate(ctx, addr, acct); err != nil {
			for j := i - 1; j >= 0; j-- {
				_, _ = m.Backends[j].Store.Deallocate(ctx, addr)
			}
			return fmt.Errorf("storage: mirror %q: %w", b.Name, err)
		}
	}
	return nil
}

func (m Mirror) Read(ctx context.Context, addr Address) (Account, error) {
	for _, b := range m.Backends {
		if b.Store == nil {
			continue
		}
		acct, err := b.Store.Read(ctx, addr)
		if err == nil {
			return acct, nil
		}
		if IsNotFound(err) {
			continue
		}
		return Account{}, err
	}
	return Account{}, ErrNotFound
}

func (m Mirror) Write(ctx context.Context, addr Address, data []byte) error {
	if err := m.check(); err != nil {
		return err
	}
	for _, b := range m.Backends {
		if err := b.Store.Write(ctx, addr, data); err != nil {
			return fmt.Errorf("storage: mirror %q: %w", b.Name, err)
		}
	}
	return nil
}

// Deallocate removes the account everywhere and returns the first backend's copy.
func (m Mirror) Deallocate(ctx context.Context, addr Address) (Account, error) {
	if err := m.check(); err != nil {
		return Account{}, err
	}
	var (
		out   Account
		found bool
	)
	for _, b := range m.Backends {
		acct, err := b.Store.Deallocate(ctx, addr)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return Account{}, fmt.Errorf("storage: mirror %q: %w", b.Name, err)
		}
		if !found {
			out, found = acct, true
		}
	}
	if !found {
		return Account{}, ErrNotFound
	}
	return out, nil
}

func (m Mirror) Has(ctx context.Context, addr Address) (bool, error) {
	for _, b := range m.Backends {
		if b.Store == nil {
			continue
		}
		ok, err := b.Store.Has(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Scan lists the first backend that implements Lister.
func (m Mirror) Scan(ctx context.Context, fn func(Address, Account) error) error {
	for _, b := range m.Backends {
		if l, ok := b.Store.(Lister); ok {
			return l.Scan(ctx, fn)
		}
	}
	return fmt.Errorf("storage: no mirror backend supports listing")
}

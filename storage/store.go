package storage

import "context"

// Store is the ledger's keyed byte-storage primitive.
//
// Contract:
// - Allocate MUST be create-once: a second Allocate at the same address fails
//   with ErrAlreadyAllocated, including when two callers race.
// - Write MUST NOT change the size of an allocated account (ErrSizeMismatch).
// - Read, Write and Deallocate MUST return ErrNotFound for absent addresses.
// - Deallocate returns the account as it was, so the caller can refund its deposit.
type Store interface {
	Allocate(ctx context.Context, addr Address, acct Account) error
	Read(ctx context.Context, addr Address) (Account, error)
	Write(ctx context.Context, addr Address, data []byte) error
	Deallocate(ctx context.Context, addr Address) (Account, error)
	Has(ctx context.Context, addr Address) (bool, error)
}

// Lister is implemented by stores that can enumerate their accounts.
// Scan visits addresses in ascending byte order.
type Lister interface {
	Scan(ctx context.Context, fn func(Address, Account) error) error
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type opKind uint8

const (
	opAllocate opKind = iota + 1
	opWrite
	opDeallocate
)

func (k opKind) String() string {
	switch k {
	case opAllocate:
		return "allocate"
	case opWrite:
		return "write"
	case opDeallocate:
		return "deallocate"
	default:
		return "unknown"
	}
}

type op struct {
	kind opKind
	addr Address
	acct Account
	data []byte
}

type stagedEntry struct {
	acct    Account
	present bool
}

// Batch stages mutations over a base Store. Reads see staged state; nothing
// reaches the base until Commit. Discarding a Batch leaves no effect.
type Batch struct {
	base Store

	mu     sync.Mutex
	staged map[Address]stagedEntry
	ops    []op
	done   bool
}

var _ Store = (*Batch)(nil)

func NewBatch(base Store) *Batch {
	return &Batch{base: base, staged: make(map[Address]stagedEntry)}
}

func (b *Batch) lookup(ctx context.Context, addr Address) (stagedEntry, error) {
	if e, ok := b.staged[addr]; ok {
		return e, nil
	}
	acct, err := b.base.Read(ctx, addr)
	if IsNotFound(err) {
		return stagedEntry{}, nil
	}
	if err != nil {
		return stagedEntry{}, err
	}
	return stagedEntry{acct: acct, present: true}, nil
}

func (b *Batch) Allocate(ctx context.Context, addr Address, acct Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.lookup(ctx, addr)
	if err != nil {
		return err
	}
	if e.present {
		return ErrAlreadyAllocated
	}
	acct = acct.Clone()
	b.staged[addr] = stagedEntry{acct: acct, present: true}
	b.ops = append(b.ops, op{kind: opAllocate, addr: addr, acct: acct})
	return nil
}

func (b *Batch) Read(ctx context.Context, addr Address) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.lookup(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	if !e.present {
		return Account{}, ErrNotFound
	}
	return e.acct.Clone(), nil
}

func (b *Batch) Write(ctx context.Context, addr Address, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.lookup(ctx, addr)
	if err != nil {
		return err
	}
	if !e.present {
		return ErrNotFound
	}
	if len(data) != len(e.acct.Data) {
		return ErrSizeMismatch
	}
	e.acct.Data = append([]byte(nil), data...)
	b.staged[addr] = e
	b.ops = append(b.ops, op{kind: opWrite, addr: addr, data: e.acct.Data})
	return nil
}

func (b *Batch) Deallocate(ctx context.Context, addr Address) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.lookup(ctx, addr)
	if err != nil {
		return Account{}, err
	}
	if !e.present {
		return Account{}, ErrNotFound
	}
	b.staged[addr] = stagedEntry{}
	b.ops = append(b.ops, op{kind: opDeallocate, addr: addr})
	return e.acct.Clone(), nil
}

func (b *Batch) Has(ctx context.Context, addr Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.lookup(ctx, addr)
	if err != nil {
		return false, err
	}
	return e.present, nil
}

// Touched returns the addresses with staged mutations, sorted.
func (b *Batch) Touched() []Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Address, 0, len(b.staged))
	for a := range b.staged {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}

// Len is the number of staged operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// CommitError reports which staged operation the base store rejected.
type CommitError struct {
	Op   string
	Addr Address
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("storage: commit %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Commit replays staged operations onto the base in order. If one fails,
// the operations already applied are undone in reverse and a *CommitError is
// returned. A Batch can be committed once.
func (b *Batch) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return fmt.Errorf("storage: batch already committed")
	}
	b.done = true

	var undo []func()
	for _, o := range b.ops {
		var err error
		switch o.kind {
		case opAllocate:
			err = b.base.Allocate(ctx, o.addr, o.acct)
			if err == nil {
				addr := o.addr
				undo = append(undo, func() { _, _ = b.base.Deallocate(ctx, addr) })
			}
		case opWrite:
			var prev Account
			prev, err = b.base.Read(ctx, o.addr)
			if err == nil {
				err = b.base.Write(ctx, o.addr, o.data)
			}
			if err == nil {
				addr, old := o.addr, prev.Data
				undo = append(undo, func() { _ = b.base.Write(ctx, addr, old) })
			}
		case opDeallocate:
			var prev Account
			prev, err = b.base.Deallocate(ctx, o.addr)
			if err == nil {
				addr := o.addr
				undo = append(undo, func() { _ = b.base.Allocate(ctx, addr, prev) })
			}
		}
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
			return &CommitError{Op: o.kind.String(), Addr: o.addr, Err: err}
		}
	}
	return nil
}

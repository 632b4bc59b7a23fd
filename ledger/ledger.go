// Package ledger keeps the create-once issuance records.
//
// A Ledger is a session scoped to one attempt: a record may only be written
// by the same Ledger that created it, and only once.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/storage"
)

var (
	ErrAlreadyIssued        = errors.New("ledger: record already issued")
	ErrInsufficientCapacity = errors.New("ledger: payer cannot cover record deposit")
	ErrAddressOccupied      = errors.New("ledger: address held by another owner")
	ErrNotCreated           = errors.New("ledger: record was not created in this session")
	ErrAlreadyWritten       = errors.New("ledger: record already written in this session")
	ErrKindMismatch         = errors.New("ledger: record kind mismatch")
	ErrNotIssued            = errors.New("ledger: no record at address")
	ErrNotOwned             = errors.New("ledger: record not owned by program")
	ErrNotClaimant          = errors.New("ledger: beneficiary is not the record's claimant")
)

// Rent is the deposit charged for a record of kind.
func Rent(kind derive.RecordKind) uint64 {
	return collab.RentExempt(kind.Size())
}

// Record is a decoded issuance record.
type Record struct {
	Address   common.PublicKey
	Kind      derive.RecordKind
	Issued    bool
	Reference *common.PublicKey
	Deposit   uint64
}

type sessionEntry struct {
	kind    derive.RecordKind
	written bool
}

type Ledger struct {
	store   storage.Store
	funds   collab.Funds
	program common.PublicKey
	logger  *zap.Logger

	created map[common.PublicKey]*sessionEntry
}

type Option func(*Ledger)

func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// New opens a ledger session for program over store. funds pays deposits
// and receives refunds.
func New(store storage.Store, funds collab.Funds, program common.PublicKey, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		funds:   funds,
		program: program,
		logger:  zap.NewNop(),
		created: make(map[common.PublicKey]*sessionEntry),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Program() common.PublicKey { return l.program }

// Exists reports whether addr holds a record owned by the program.
func (l *Ledger) Exists(ctx context.Context, addr common.PublicKey) (bool, error) {
	acct, err := l.store.Read(ctx, storage.Address(addr))
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acct.Owner == storage.Address(l.program), nil
}

// Create allocates the record at d.Address. The derivation is checked first,
// then existence, then the payer is charged.
func (l *Ledger) Create(ctx context.Context, d derive.Derivation, kind derive.RecordKind, payer common.PublicKey) error {
	if err := d.Verify(l.program); err != nil {
		return err
	}
	size := kind.Size()
	if size == 0 {
		return fmt.Errorf("%w: %v", ErrKindMismatch, kind)
	}
	addr := storage.Address(d.Address)

	acct, err := l.store.Read(ctx, addr)
	switch {
	case err == nil && acct.Owner == storage.Address(l.program):
		return fmt.Errorf("%w: %s", ErrAlreadyIssued, d.Address.ToBase58())
	case err == nil:
		return fmt.Errorf("%w: %s owned by %s", ErrAddressOccupied, d.Address.ToBase58(), acct.Owner)
	case !storage.IsNotFound(err):
		return err
	}

	rent := Rent(kind)
	if err := l.funds.Debit(ctx, payer, rent); err != nil {
		if errors.Is(err, collab.ErrInsufficientFunds) {
			return fmt.Errorf("%w: need %d lamports: %v", ErrInsufficientCapacity, rent, err)
		}
		return err
	}

	err = l.store.Allocate(ctx, addr, storage.Account{
		Owner:   storage.Address(l.program),
		Deposit: rent,
		Data:    make([]byte, size),
	})
	if err != nil {
		if cerr := l.funds.Credit(ctx, payer, rent); cerr != nil {
			err = errors.Join(err, fmt.Errorf("refund deposit: %w", cerr))
		}
		if storage.IsAlreadyAllocated(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyIssued, d.Address.ToBase58())
		}
		return err
	}
	l.created[d.Address] = &sessionEntry{kind: kind}
	l.logger.Debug("record created",
		zap.String("address", d.Address.ToBase58()),
		zap.Stringer("kind", kind),
		zap.Uint64("deposit", rent),
	)
	return nil
}

func (l *Ledger) claim(addr common.PublicKey, kind derive.RecordKind) error {
	e, ok := l.created[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCreated, addr.ToBase58())
	}
	if e.kind != kind {
		return fmt.Errorf("%w: created as %v, writing %v", ErrKindMismatch, e.kind, kind)
	}
	if e.written {
		return fmt.Errorf("%w: %s", ErrAlreadyWritten, addr.ToBase58())
	}
	return nil
}

// WriteFlag marks a freshly created flag record as issued.
func (l *Ledger) WriteFlag(ctx context.Context, addr common.PublicKey) error {
	if err := l.claim(addr, derive.KindFlag); err != nil {
		return err
	}
	if err := l.store.Write(ctx, storage.Address(addr), []byte{1}); err != nil {
		return err
	}
	l.created[addr].written = true
	return nil
}

// WriteReference stores the issued resource's address in a freshly created
// reference record.
func (l *Ledger) WriteReference(ctx context.Context, addr, value common.PublicKey) error {
	if err := l.claim(addr, derive.KindReference); err != nil {
		return err
	}
	if err := l.store.Write(ctx, storage.Address(addr), value[:]); err != nil {
		return err
	}
	l.created[addr].written = true
	return nil
}

// Read decodes the record at addr.
func (l *Ledger) Read(ctx context.Context, addr common.PublicKey) (Record, error) {
	acct, err := l.store.Read(ctx, storage.Address(addr))
	if storage.IsNotFound(err) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotIssued, addr.ToBase58())
	}
	if err != nil {
		return Record{}, err
	}
	if acct.Owner != storage.Address(l.program) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotOwned, addr.ToBase58())
	}
	kind, ok := derive.KindForSize(len(acct.Data))
	if !ok {
		return Record{}, fmt.Errorf("%w: %d byte record", ErrKindMismatch, len(acct.Data))
	}
	rec := Record{Address: addr, Kind: kind, Deposit: acct.Deposit}
	switch kind {
	case derive.KindFlag:
		rec.Issued = acct.Data[0] == 1
	case derive.KindReference:
		if !bytes.Equal(acct.Data, make([]byte, 32)) {
			ref := common.PublicKeyFromBytes(acct.Data)
			rec.Reference = &ref
			rec.Issued = true
		}
	}
	return rec, nil
}

// Reclaim closes the record proven by d and refunds its deposit to
// beneficiary, who must be the identity the record was derived for. It
// returns the refunded amount.
func (l *Ledger) Reclaim(ctx context.Context, d derive.Derivation, beneficiary common.PublicKey) (uint64, error) {
	if err := d.Verify(l.program); err != nil {
		return 0, err
	}
	if id, ok := d.Identity(); !ok || id != beneficiary {
		return 0, fmt.Errorf("%w: %s", ErrNotClaimant, beneficiary.ToBase58())
	}
	addr := storage.Address(d.Address)
	acct, err := l.store.Read(ctx, addr)
	if storage.IsNotFound(err) {
		return 0, fmt.Errorf("%w: %s", ErrNotIssued, d.Address.ToBase58())
	}
	if err != nil {
		return 0, err
	}
	if acct.Owner != storage.Address(l.program) {
		return 0, fmt.Errorf("%w: %s", ErrNotOwned, d.Address.ToBase58())
	}

	if err := l.store.Write(ctx, addr, make([]byte, len(acct.Data))); err != nil {
		return 0, err
	}
	prev, err := l.store.Deallocate(ctx, addr)
	if err != nil {
		return 0, err
	}
	if err := l.funds.Credit(ctx, beneficiary, prev.Deposit); err != nil {
		return 0, err
	}
	delete(l.created, d.Address)
	l.logger.Info("record reclaimed",
		zap.String("address", d.Address.ToBase58()),
		zap.String("beneficiary", beneficiary.ToBase58()),
		zap.Uint64("refund", prev.Deposit),
	)
	return prev.Deposit, nil
}

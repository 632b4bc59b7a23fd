// Package simhost is an in-process host for issuance attempts. Each attempt
// stages its ledger, token, metadata and balance effects privately; they are
// published together at commit or dropped.
package simhost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/memstore"
)

// ErrConflict is returned when an attempt's effects collide with state
// committed after the attempt read it.
var ErrConflict = errors.New("simhost: attempt conflicts with committed state")

// ErrInjected is returned by an armed fault.
var ErrInjected = errors.New("simhost: injected fault")

// MintInfo is a token mint as the host sees it.
type MintInfo struct {
	Decimals        uint8
	Supply          uint64
	MintAuthority   common.PublicKey
	FreezeAuthority *common.PublicKey
}

// HoldingInfo is an associated holding account.
type HoldingInfo struct {
	Owner  common.PublicKey
	Mint   common.PublicKey
	Amount uint64
}

// RecordInfo is a descriptive record and its edition state.
type RecordInfo struct {
	Content            collab.Content
	UpdateAuthority    common.PublicKey
	Creator            *common.PublicKey
	Collection         *common.PublicKey
	CollectionVerified bool
	MasterEdition      bool
	MaxSupply          *uint64
	// Edition is set on records printed from a master.
	Edition *EditionInfo
}

// EditionInfo places a printed record under its master.
type EditionInfo struct {
	Master common.PublicKey
	Number uint64
}

type editionKey struct {
	master common.PublicKey
	number uint64
}

type state struct {
	mints    map[common.PublicKey]MintInfo
	holdings map[common.PublicKey]HoldingInfo
	records  map[common.PublicKey]RecordInfo
	balances map[common.PublicKey]uint64
	// editions maps a printed edition number to its mint.
	editions map[editionKey]common.PublicKey
}

func newState() state {
	return state{
		mints:    map[common.PublicKey]MintInfo{},
		holdings: map[common.PublicKey]HoldingInfo{},
		records:  map[common.PublicKey]RecordInfo{},
		balances: map[common.PublicKey]uint64{},
		editions: map[editionKey]common.PublicKey{},
	}
}

// Host holds committed state. It is safe for concurrent attempts.
type Host struct {
	store  storage.Store
	logger *zap.Logger

	mu    sync.RWMutex
	state state

	faultMu sync.Mutex
	faults  map[string]int
	calls   map[string]int
}

var _ collab.Host = (*Host)(nil)

type Option func(*Host)

// WithStore keeps ledger accounts in s instead of a private memstore.
func WithStore(s storage.Store) Option {
	return func(h *Host) { h.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

func New(opts ...Option) *Host {
	h := &Host{
		store:  memstore.New(),
		logger: zap.NewNop(),
		state:  newState(),
		faults: map[string]int{},
		calls:  map[string]int{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Store is the committed ledger storage.
func (h *Host) Store() storage.Store { return h.store }

// FailNext makes the next n calls of op fail with ErrInjected. Operation
// names are "token.create_mint", "token.create_holding", "token.mint_unit",
// "metadata.create_record", "metadata.update_record",
// "metadata.verify_collection", "metadata.print_edition", "funds.debit", "funds.credit",
// "funds.transfer", "store.allocate", "store.read", "store.write",
// "store.deallocate", "store.has" and "commit".
func (h *Host) FailNext(op string, n int) {
	h.faultMu.Lock()
	defer h.faultMu.Unlock()
	h.faults[op] = n
}

// Calls reports how many times op was attempted.
func (h *Host) Calls(op string) int {
	h.faultMu.Lock()
	defer h.faultMu.Unlock()
	return h.calls[op]
}

func (h *Host) trip(op string) error {
	h.faultMu.Lock()
	defer h.faultMu.Unlock()
	h.calls[op]++
	if h.faults[op] > 0 {
		h.faults[op]--
		return fmt.Errorf("%w: %s", ErrInjected, op)
	}
	return nil
}

// Fund credits acct outside any attempt.
func (h *Host) Fund(acct common.PublicKey, lamports uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.balances[acct] += lamports
}

func (h *Host) Balance(acct common.PublicKey) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.balances[acct]
}

func (h *Host) Mint(mint common.PublicKey) (MintInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.state.mints[mint]
	return m, ok
}

func (h *Host) Holding(addr common.PublicKey) (HoldingInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.state.holdings[addr]
	return v, ok
}

// Record returns the descriptive record of mint.
func (h *Host) Record(mint common.PublicKey) (RecordInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.state.records[mint]
	return v, ok
}

// Edition returns the mint printed as edition number of master.
func (h *Host) Edition(master common.PublicKey, number uint64) (common.PublicKey, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.state.editions[editionKey{master, number}]
	return m, ok
}

// SeedCollection installs a collection mint and its descriptive record with
// the given update authority.
func (h *Host) SeedCollection(mint, updateAuthority common.PublicKey, content collab.Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.mints[mint] = MintInfo{Supply: 1, MintAuthority: updateAuthority}
	h.state.records[mint] = RecordInfo{Content: content, UpdateAuthority: updateAuthority, MasterEdition: true}
}

// Execute runs fn against a private view of the host and commits its effects
// if fn returns nil. Effects of a failed or conflicting attempt are dropped.
func (h *Host) Execute(ctx context.Context, fn func(ctx context.Context, env collab.Env) error) error {
	tx := newTx(h)
	if err := fn(ctx, tx.env()); err != nil {
		return err
	}
	return tx.commit(ctx)
}

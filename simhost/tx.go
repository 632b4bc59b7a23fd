package simhost

import (
	"context"
	"fmt"
	"math"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/storage"
)

// tx is one attempt's staged view.
type tx struct {
	host  *Host
	batch *storage.Batch

	mints    map[common.PublicKey]MintInfo
	holdings map[common.PublicKey]HoldingInfo
	records  map[common.PublicKey]RecordInfo
	editions map[editionKey]common.PublicKey
	// created lists accounts this attempt brought into existence, which must
	// still be absent at commit.
	created map[account]struct{}
	deltas  map[common.PublicKey]int64
}

type account struct {
	kind string
	addr common.PublicKey
	// n distinguishes edition numbers under one master.
	n uint64
}

var (
	_ collab.TokenProgram    = (*tx)(nil)
	_ collab.MetadataProgram = (*tx)(nil)
	_ collab.Funds           = (*tx)(nil)
)

func newTx(h *Host) *tx {
	return &tx{
		host:     h,
		batch:    storage.NewBatch(h.store),
		mints:    map[common.PublicKey]MintInfo{},
		holdings: map[common.PublicKey]HoldingInfo{},
		records:  map[common.PublicKey]RecordInfo{},
		editions: map[editionKey]common.PublicKey{},
		created:  map[account]struct{}{},
		deltas:   map[common.PublicKey]int64{},
	}
}

func (t *tx) env() collab.Env {
	return collab.Env{
		Store:    &txStore{host: t.host, Batch: t.batch},
		Token:    t,
		Metadata: t,
		Funds:    t,
	}
}

func (t *tx) mint(addr common.PublicKey) (MintInfo, bool) {
	if m, ok := t.mints[addr]; ok {
		return m, true
	}
	return t.host.Mint(addr)
}

func (t *tx) holding(addr common.PublicKey) (HoldingInfo, bool) {
	if v, ok := t.holdings[addr]; ok {
		return v, true
	}
	return t.host.Holding(addr)
}

func (t *tx) record(mint common.PublicKey) (RecordInfo, bool) {
	if v, ok := t.records[mint]; ok {
		return v, true
	}
	return t.host.Record(mint)
}

func (t *tx) edition(k editionKey) bool {
	if _, ok := t.editions[k]; ok {
		return true
	}
	_, ok := t.host.Edition(k.master, k.number)
	return ok
}

func (t *tx) balance(acct common.PublicKey) int64 {
	return int64(t.host.Balance(acct)) + t.deltas[acct]
}

func (t *tx) Balance(_ context.Context, acct common.PublicKey) (uint64, error) {
	return uint64(t.balance(acct)), nil
}

func (t *tx) Debit(_ context.Context, acct common.PublicKey, amount uint64) error {
	if err := t.host.trip("funds.debit"); err != nil {
		return err
	}
	return t.debit(acct, amount)
}

// Balances are tracked as signed deltas; amounts that do not fit an int64
// are refused before any arithmetic.
func (t *tx) debit(acct common.PublicKey, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: amount %d out of range", collab.ErrInvalidParams, amount)
	}
	if have := t.balance(acct); have < 0 || uint64(have) < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", collab.ErrInsufficientFunds, acct.ToBase58(), have, amount)
	}
	t.deltas[acct] -= int64(amount)
	return nil
}

func (t *tx) credit(acct common.PublicKey, amount uint64) error {
	if amount > math.MaxInt64 || t.balance(acct) > math.MaxInt64-int64(amount) {
		return fmt.Errorf("%w: credit of %d to %s overflows", collab.ErrInvalidParams, amount, acct.ToBase58())
	}
	t.deltas[acct] += int64(amount)
	return nil
}

func (t *tx) Credit(_ context.Context, acct common.PublicKey, amount uint64) error {
	if err := t.host.trip("funds.credit"); err != nil {
		return err
	}
	return t.credit(acct, amount)
}

func (t *tx) Transfer(_ context.Context, from, to common.PublicKey, amount uint64, sig authority.SignatureProof) error {
	if err := t.host.trip("funds.transfer"); err != nil {
		return err
	}
	if err := sig.Authorizes(from); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	return t.credit(to, amount)
}

func (t *tx) CreateMint(_ context.Context, p collab.CreateMintParams) error {
	if err := t.host.trip("token.create_mint"); err != nil {
		return err
	}
	if _, ok := t.mint(p.Mint); ok {
		return fmt.Errorf("%w: mint %s", collab.ErrAccountExists, p.Mint.ToBase58())
	}
	if err := t.debit(p.Payer, collab.RentExempt(collab.MintAccountSize)); err != nil {
		return err
	}
	t.mints[p.Mint] = MintInfo{Decimals: p.Decimals, MintAuthority: p.MintAuthority, FreezeAuthority: p.FreezeAuthority}
	t.created[account{kind: "mint", addr: p.Mint}] = struct{}{}
	return nil
}

func (t *tx) CreateHoldingAccount(_ context.Context, p collab.HoldingParams) (common.PublicKey, error) {
	if err := t.host.trip("token.create_holding"); err != nil {
		return common.PublicKey{}, err
	}
	if _, ok := t.mint(p.Mint); !ok {
		return common.PublicKey{}, fmt.Errorf("%w: mint %s", collab.ErrAccountMissing, p.Mint.ToBase58())
	}
	addr, err := derive.Holding(p.Owner, p.Mint)
	if err != nil {
		return common.PublicKey{}, err
	}
	if _, ok := t.holding(addr); ok {
		return common.PublicKey{}, fmt.Errorf("%w: holding %s", collab.ErrAccountExists, addr.ToBase58())
	}
	if err := t.debit(p.Payer, collab.RentExempt(collab.HoldingAccountSize)); err != nil {
		return common.PublicKey{}, err
	}
	t.holdings[addr] = HoldingInfo{Owner: p.Owner, Mint: p.Mint}
	t.created[account{kind: "holding", addr: addr}] = struct{}{}
	return addr, nil
}

func (t *tx) MintUnit(_ context.Context, p collab.MintUnitParams, sig authority.SignatureProof) error {
	if err := t.host.trip("token.mint_unit"); err != nil {
		return err
	}
	m, ok := t.mint(p.Mint)
	if !ok {
		return fmt.Errorf("%w: mint %s", collab.ErrAccountMissing, p.Mint.ToBase58())
	}
	if err := sig.Authorizes(m.MintAuthority); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	h, ok := t.holding(p.Holding)
	if !ok {
		return fmt.Errorf("%w: holding %s", collab.ErrAccountMissing, p.Holding.ToBase58())
	}
	if h.Mint != p.Mint {
		return fmt.Errorf("%w: holding %s is for mint %s", collab.ErrInvalidParams, p.Holding.ToBase58(), h.Mint.ToBase58())
	}
	m.Supply += p.Amount
	h.Amount += p.Amount
	t.mints[p.Mint] = m
	t.holdings[p.Holding] = h
	return nil
}

func (t *tx) CreateRecord(_ context.Context, p collab.RecordParams, sig authority.SignatureProof) error {
	if err := t.host.trip("metadata.create_record"); err != nil {
		return err
	}
	m, ok := t.mint(p.Mint)
	if !ok {
		return fmt.Errorf("%w: mint %s", collab.ErrAccountMissing, p.Mint.ToBase58())
	}
	if err := sig.Authorizes(m.MintAuthority); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	if _, ok := t.record(p.Mint); ok {
		return fmt.Errorf("%w: record for %s", collab.ErrAccountExists, p.Mint.ToBase58())
	}
	rent := collab.RentExempt(collab.MetadataAccountSize)
	if p.MasterEdition {
		if m.Decimals != 0 || m.Supply != 1 {
			return fmt.Errorf("%w: edition needs decimals 0 and supply 1", collab.ErrInvalidParams)
		}
		rent += collab.RentExempt(collab.MasterEditionAccountSize)
	}
	if err := t.debit(p.Payer, rent); err != nil {
		return err
	}
	t.records[p.Mint] = RecordInfo{
		Content:         p.Content,
		UpdateAuthority: p.UpdateAuthority,
		Creator:         p.Creator,
		Collection:      p.Collection,
		MasterEdition:   p.MasterEdition,
		MaxSupply:       p.MaxSupply,
	}
	t.created[account{kind: "record", addr: p.Mint}] = struct{}{}
	return nil
}

func (t *tx) UpdateRecord(_ context.Context, p collab.UpdateParams, sig authority.SignatureProof) error {
	if err := t.host.trip("metadata.update_record"); err != nil {
		return err
	}
	r, ok := t.record(p.Mint)
	if !ok {
		return fmt.Errorf("%w: record for %s", collab.ErrAccountMissing, p.Mint.ToBase58())
	}
	if err := sig.Authorizes(r.UpdateAuthority); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Creator != nil {
		c := *p.Creator
		r.Creator = &c
	}
	if p.NewUpdateAuthority != nil {
		r.UpdateAuthority = *p.NewUpdateAuthority
	}
	t.records[p.Mint] = r
	return nil
}

func (t *tx) VerifyCollectionMembership(_ context.Context, p collab.CollectionParams, sig authority.SignatureProof) error {
	if err := t.host.trip("metadata.verify_collection"); err != nil {
		return err
	}
	r, ok := t.record(p.Mint)
	if !ok {
		return fmt.Errorf("%w: record for %s", collab.ErrAccountMissing, p.Mint.ToBase58())
	}
	if r.Collection == nil || *r.Collection != p.Collection {
		return fmt.Errorf("%w: %s is not declared in collection %s", collab.ErrInvalidParams, p.Mint.ToBase58(), p.Collection.ToBase58())
	}
	coll, ok := t.record(p.Collection)
	if !ok {
		return fmt.Errorf("%w: collection record %s", collab.ErrAccountMissing, p.Collection.ToBase58())
	}
	if err := sig.Authorizes(coll.UpdateAuthority); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	r.CollectionVerified = true
	t.records[p.Mint] = r
	return nil
}

func (t *tx) PrintEdition(_ context.Context, p collab.PrintParams, sig authority.SignatureProof) error {
	if err := t.host.trip("metadata.print_edition"); err != nil {
		return err
	}
	m, ok := t.mint(p.NewMint)
	if !ok {
		return fmt.Errorf("%w: mint %s", collab.ErrAccountMissing, p.NewMint.ToBase58())
	}
	if err := sig.Authorizes(m.MintAuthority); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	if m.Decimals != 0 || m.Supply != 1 {
		return fmt.Errorf("%w: edition mint needs decimals 0 and supply 1", collab.ErrInvalidParams)
	}
	if _, ok := t.record(p.NewMint); ok {
		return fmt.Errorf("%w: record for %s", collab.ErrAccountExists, p.NewMint.ToBase58())
	}
	master, ok := t.record(p.Master)
	if !ok || !master.MasterEdition {
		return fmt.Errorf("%w: master edition of %s", collab.ErrAccountMissing, p.Master.ToBase58())
	}
	held, err := derive.Holding(p.Owner, p.Master)
	if err != nil {
		return err
	}
	if h, ok := t.holding(held); !ok || h.Amount == 0 {
		return fmt.Errorf("%w: %s does not hold %s", collab.ErrUnauthorized, p.Owner.ToBase58(), p.Master.ToBase58())
	}
	if p.Edition == 0 || (master.MaxSupply != nil && p.Edition > *master.MaxSupply) {
		limit := "unlimited"
		if master.MaxSupply != nil {
			limit = fmt.Sprint(*master.MaxSupply)
		}
		return fmt.Errorf("%w: edition %d of %s, max supply %s", collab.ErrSupplyExhausted, p.Edition, p.Master.ToBase58(), limit)
	}
	key := editionKey{p.Master, p.Edition}
	if t.edition(key) {
		return fmt.Errorf("%w: edition %d of %s", collab.ErrEditionTaken, p.Edition, p.Master.ToBase58())
	}
	rent := collab.RentExempt(collab.MetadataAccountSize) + collab.RentExempt(collab.EditionAccountSize)
	if err := t.debit(p.Payer, rent); err != nil {
		return err
	}
	t.records[p.NewMint] = RecordInfo{
		Content:         master.Content,
		UpdateAuthority: p.UpdateAuthority,
		Creator:         master.Creator,
		Collection:      master.Collection,
		Edition:         &EditionInfo{Master: p.Master, Number: p.Edition},
	}
	t.editions[key] = p.NewMint
	t.created[account{kind: "record", addr: p.NewMint}] = struct{}{}
	t.created[account{kind: "edition", addr: p.Master, n: p.Edition}] = struct{}{}
	return nil
}

func (t *tx) commit(ctx context.Context) error {
	h := t.host
	if err := h.trip("commit"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for a := range t.created {
		if h.existsLocked(a) {
			return fmt.Errorf("%w: %s %s created concurrently", ErrConflict, a.kind, a.addr.ToBase58())
		}
	}
	for acct, d := range t.deltas {
		if int64(h.state.balances[acct])+d < 0 {
			return fmt.Errorf("%w: %s: %w", ErrConflict, acct.ToBase58(), collab.ErrInsufficientFunds)
		}
	}
	if err := t.batch.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	for k, v := range t.mints {
		h.state.mints[k] = v
	}
	for k, v := range t.holdings {
		h.state.holdings[k] = v
	}
	for k, v := range t.records {
		h.state.records[k] = v
	}
	for k, v := range t.editions {
		h.state.editions[k] = v
	}
	for acct, d := range t.deltas {
		h.state.balances[acct] = uint64(int64(h.state.balances[acct]) + d)
	}
	h.logger.Debug("attempt committed",
		zap.Int("ledger_ops", t.batch.Len()),
		zap.Int("accounts_created", len(t.created)),
	)
	return nil
}

func (h *Host) existsLocked(a account) bool {
	var ok bool
	switch a.kind {
	case "mint":
		_, ok = h.state.mints[a.addr]
	case "holding":
		_, ok = h.state.holdings[a.addr]
	case "record":
		_, ok = h.state.records[a.addr]
	case "edition":
		_, ok = h.state.editions[editionKey{a.addr, a.n}]
	}
	return ok
}

// txStore trips store faults before delegating to the attempt's batch.
type txStore struct {
	host *Host
	*storage.Batch
}

func (s *txStore) Allocate(ctx context.Context, addr storage.Address, acct storage.Account) error {
	if err := s.host.trip("store.allocate"); err != nil {
		return err
	}
	return s.Batch.Allocate(ctx, addr, acct)
}

func (s *txStore) Read(ctx context.Context, addr storage.Address) (storage.Account, error) {
	if err := s.host.trip("store.read"); err != nil {
		return storage.Account{}, err
	}
	return s.Batch.Read(ctx, addr)
}

func (s *txStore) Write(ctx context.Context, addr storage.Address, data []byte) error {
	if err := s.host.trip("store.write"); err != nil {
		return err
	}
	return s.Batch.Write(ctx, addr, data)
}

func (s *txStore) Deallocate(ctx context.Context, addr storage.Address) (storage.Account, error) {
	if err := s.host.trip("store.deallocate"); err != nil {
		return storage.Account{}, err
	}
	return s.Batch.Deallocate(ctx, addr)
}

func (s *txStore) Has(ctx context.Context, addr storage.Address) (bool, error) {
	if err := s.host.trip("store.has"); err != nil {
		return false, err
	}
	return s.Batch.Has(ctx, addr)
}

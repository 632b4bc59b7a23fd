package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/ledger"
	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/storage"
)

// Issue runs req through d. The caller vouches that the claimant and the
// mint signed. A Receipt is returned whenever the request parsed, with
// Error set if the attempt was rejected.
func Issue(ctx context.Context, d *issuance.Dispatcher, req IssueRequest) (*Receipt, error) {
	v, ok := issuance.VariantByName(req.Variant)
	if !ok {
		return nil, NewError(ErrInvalidRequest, fmt.Sprintf("unknown variant %q", req.Variant))
	}
	claimant, err := parseKey("claimant", req.Claimant)
	if err != nil {
		return nil, err
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		return nil, err
	}
	claim := issuance.Claim{Round: req.Round, Position: req.Position}
	for i, s := range req.Proof {
		h, err := merkle.ParseHash(s)
		if err != nil {
			return nil, NewError(ErrInvalidRequest, fmt.Sprintf("proof[%d]: %v", i, err))
		}
		claim.Proof = append(claim.Proof, h)
	}

	inv, err := d.Pipeline().Accounts(v, req.Round, claimant, mint)
	if err != nil {
		return nil, mapErr(err)
	}
	input := append([]byte{v.Opcode}, claim.Bytes(v.Leaf)...)
	out, err := d.Dispatch(ctx, input, inv)

	rc := &Receipt{
		Variant:  v.Name,
		Opcode:   v.Opcode,
		Round:    req.Round,
		Claimant: claimant.ToBase58(),
		Mint:     mint.ToBase58(),
		Trace:    []string{},
	}
	if out != nil && out.Result != nil {
		r := out.Result
		rc.AttemptID = r.AttemptID
		if r.Holding != (common.PublicKey{}) {
			rc.Holding = r.Holding.ToBase58()
		}
		if r.Record != nil {
			rc.Record = r.Record.Address.ToBase58()
		}
		for _, s := range r.Trace {
			rc.Trace = append(rc.Trace, string(s))
		}
	}
	if err != nil {
		rc.Error = mapErr(err)
		return rc, rc.Error
	}
	rc.Committed = true
	return rc, nil
}

// ReadRecord decodes the record of claimant for (schema, round).
func ReadRecord(ctx context.Context, store storage.Store, program common.PublicKey, schema string, round uint8, claimant string) (*RecordView, error) {
	s, err := derive.SchemaByName(schema)
	if err != nil {
		return nil, NewError(ErrInvalidRequest, err.Error())
	}
	id, err := parseKey("claimant", claimant)
	if err != nil {
		return nil, err
	}
	d, err := derive.New(program).Record(s, round, id)
	if err != nil {
		return nil, mapErr(err)
	}
	rec, err := ledger.New(store, nil, program).Read(ctx, d.Address)
	if errors.Is(err, ledger.ErrNotIssued) {
		return nil, NewError(ErrNotFound, err.Error())
	}
	if err != nil {
		return nil, mapErr(err)
	}
	view := &RecordView{
		Address:  d.Address.ToBase58(),
		Schema:   s.Name,
		Round:    round,
		Claimant: id.ToBase58(),
		Kind:     rec.Kind.String(),
		Issued:   rec.Issued,
		Deposit:  rec.Deposit,
	}
	if rec.Reference != nil {
		view.Reference = rec.Reference.ToBase58()
	}
	return view, nil
}

func parseKey(field, s string) (common.PublicKey, error) {
	a, err := storage.ParseAddress(s)
	if err != nil {
		return common.PublicKey{}, NewError(ErrInvalidRequest, fmt.Sprintf("%s: %v", field, err))
	}
	return common.PublicKey(a), nil
}

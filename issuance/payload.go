package issuance

import (
	"encoding/binary"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/merkle"
)

// Claim is a gated variant's payload: the round, the optional allowlist
// position, and the membership proof.
//
//	identity leaf:   [round:1][proof:N*32]
//	positioned leaf: [round:1][position:2 LE][proof:N*32]
type Claim struct {
	Round    uint8
	Position *uint16
	Proof    merkle.Proof
}

// ParseClaim decodes payload for a variant using leaf mode m.
func ParseClaim(m LeafMode, payload []byte) (Claim, error) {
	if m == LeafNone {
		return Claim{}, nil
	}
	head := 1
	if m == LeafPositioned {
		head = 3
	}
	if len(payload) < head {
		return Claim{}, newError(KindParse, CodeMalformedData, fmt.Sprintf("payload is %d bytes, need at least %d", len(payload), head))
	}
	c := Claim{Round: payload[0]}
	if m == LeafPositioned {
		pos := binary.LittleEndian.Uint16(payload[1:3])
		c.Position = &pos
	}
	proof, err := merkle.ParseProof(payload[head:])
	if err != nil {
		return Claim{}, wrapError(KindParse, CodeMalformedProof, "malformed proof", err)
	}
	c.Proof = proof
	return c, nil
}

// Bytes encodes c for leaf mode m.
func (c Claim) Bytes(m LeafMode) []byte {
	if m == LeafNone {
		return nil
	}
	out := []byte{c.Round}
	if m == LeafPositioned {
		var pos uint16
		if c.Position != nil {
			pos = *c.Position
		}
		out = binary.LittleEndian.AppendUint16(out, pos)
	}
	return append(out, c.Proof.Bytes()...)
}

// ReclaimRequest is the reclaim payload: [schema:1][round:1].
type ReclaimRequest struct {
	Schema derive.Schema
	Round  uint8
}

func ParseReclaim(payload []byte) (ReclaimRequest, error) {
	if len(payload) != 2 {
		return ReclaimRequest{}, newError(KindParse, CodeMalformedData, fmt.Sprintf("reclaim payload is %d bytes, want 2", len(payload)))
	}
	s, err := derive.SchemaByID(payload[0])
	if err != nil {
		return ReclaimRequest{}, wrapError(KindParse, CodeMalformedData, "reclaim schema", err)
	}
	return ReclaimRequest{Schema: s, Round: payload[1]}, nil
}

// WithdrawRequest is the withdraw payload: [amount:8 LE].
type WithdrawRequest struct {
	Amount uint64
}

func ParseWithdraw(payload []byte) (WithdrawRequest, error) {
	if len(payload) != 8 {
		return WithdrawRequest{}, newError(KindParse, CodeMalformedData, fmt.Sprintf("withdraw payload is %d bytes, want 8", len(payload)))
	}
	return WithdrawRequest{Amount: binary.LittleEndian.Uint64(payload)}, nil
}

// PrintRequest is the print payload: [edition:8 LE]. Edition numbers start
// at 1.
type PrintRequest struct {
	Edition uint64
}

func ParsePrint(payload []byte) (PrintRequest, error) {
	if len(payload) != 8 {
		return PrintRequest{}, newError(KindParse, CodeMalformedData, fmt.Sprintf("print payload is %d bytes, want 8", len(payload)))
	}
	n := binary.LittleEndian.Uint64(payload)
	if n == 0 {
		return PrintRequest{}, newError(KindParse, CodeMalformedData, "edition number 0")
	}
	return PrintRequest{Edition: n}, nil
}

func (r PrintRequest) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, r.Edition)
}

// UpdateVersion is the only accepted update payload version.
const UpdateVersion = 1

// Update payload tags. Each appears at most once as [tag:1][len:2 LE][value].
const (
	tagMint            byte = 1
	tagName            byte = 2
	tagSymbol          byte = 3
	tagURI             byte = 4
	tagSellerFee       byte = 5
	tagCreator         byte = 6
	tagUpdateAuthority byte = 7
)

// UpdateRequest changes a descriptive record. Name, symbol and URI are
// replaced together; the seller fee defaults to zero when they are given
// without it.
type UpdateRequest struct {
	Mint               common.PublicKey
	Content            *collab.Content
	Creator            *common.PublicKey
	NewUpdateAuthority *common.PublicKey
}

// ParseUpdate decodes [version:1] followed by TLV fields. The mint is required.
func ParseUpdate(payload []byte) (UpdateRequest, error) {
	bad := func(msg string) (UpdateRequest, error) {
		return UpdateRequest{}, newError(KindParse, CodeMalformedData, "update payload: "+msg)
	}
	if len(payload) == 0 {
		return bad("empty")
	}
	if payload[0] != UpdateVersion {
		return bad(fmt.Sprintf("unsupported version %d", payload[0]))
	}

	fields := map[byte][]byte{}
	rest := payload[1:]
	for len(rest) > 0 {
		if len(rest) < 3 {
			return bad("truncated field header")
		}
		tag, n := rest[0], int(binary.LittleEndian.Uint16(rest[1:3]))
		rest = rest[3:]
		if len(rest) < n {
			return bad(fmt.Sprintf("field %d truncated", tag))
		}
		if _, dup := fields[tag]; dup {
			return bad(fmt.Sprintf("field %d repeated", tag))
		}
		fields[tag] = rest[:n]
		rest = rest[n:]
	}

	key := func(tag byte) (*common.PublicKey, error) {
		v, ok := fields[tag]
		if !ok {
			return nil, nil
		}
		if len(v) != 32 {
			return nil, fmt.Errorf("field %d is %d bytes, want 32", tag, len(v))
		}
		pk := common.PublicKeyFromBytes(v)
		return &pk, nil
	}

	var req UpdateRequest
	mint, err := key(tagMint)
	if err != nil {
		return bad(err.Error())
	}
	if mint == nil {
		return bad("missing mint")
	}
	req.Mint = *mint
	if req.Creator, err = key(tagCreator); err != nil {
		return bad(err.Error())
	}
	if req.NewUpdateAuthority, err = key(tagUpdateAuthority); err != nil {
		return bad(err.Error())
	}

	name, hasName := fields[tagName]
	symbol, hasSymbol := fields[tagSymbol]
	uri, hasURI := fields[tagURI]
	fee, hasFee := fields[tagSellerFee]
	switch {
	case hasName && hasSymbol && hasURI:
		c := &collab.Content{Name: string(name), Symbol: string(symbol), URI: string(uri)}
		if hasFee {
			if len(fee) != 2 {
				return bad("seller fee must be 2 bytes")
			}
			c.SellerFeeBps = binary.LittleEndian.Uint16(fee)
		}
		req.Content = c
	case hasName || hasSymbol || hasURI || hasFee:
		return bad("name, symbol and uri must be given together")
	}

	for tag := range fields {
		if tag < tagMint || tag > tagUpdateAuthority {
			return bad(fmt.Sprintf("unknown field %d", tag))
		}
	}
	return req, nil
}

// Bytes encodes r as a version 1 update payload with fields in tag order.
func (r UpdateRequest) Bytes() []byte {
	out := []byte{UpdateVersion}
	put := func(tag byte, v []byte) {
		out = append(out, tag)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(v)))
		out = append(out, v...)
	}
	put(tagMint, r.Mint[:])
	if r.Content != nil {
		put(tagName, []byte(r.Content.Name))
		put(tagSymbol, []byte(r.Content.Symbol))
		put(tagURI, []byte(r.Content.URI))
		put(tagSellerFee, binary.LittleEndian.AppendUint16(nil, r.Content.SellerFeeBps))
	}
	if r.Creator != nil {
		put(tagCreator, r.Creator[:])
	}
	if r.NewUpdateAuthority != nil {
		put(tagUpdateAuthority, r.NewUpdateAuthority[:])
	}
	return out
}

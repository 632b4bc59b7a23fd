package issuance

import (
	"fmt"

	"github.com/dikanevn/bf/derive"
)

// LeafMode selects how a claimant's allowlist leaf is formed.
type LeafMode uint8

const (
	// LeafNone marks an ungated variant.
	LeafNone LeafMode = iota
	// LeafIdentity hashes the identity alone.
	LeafIdentity
	// LeafPositioned hashes the identity with its allowlist position.
	LeafPositioned
)

func (m LeafMode) String() string {
	switch m {
	case LeafNone:
		return "none"
	case LeafIdentity:
		return "identity"
	case LeafPositioned:
		return "identity+position"
	default:
		return fmt.Sprintf("LeafMode(%d)", uint8(m))
	}
}

// Variant is one issuance entry point. Variants differ only in these
// switches; the pipeline is shared.
type Variant struct {
	Opcode byte
	Name   string
	Leaf   LeafMode
	// Schema is the replay-guard layout; nil means no ledger record.
	Schema *derive.Schema
	// Descriptive creates a metadata record and master edition.
	Descriptive bool
	// Collection declares and verifies membership in the configured collection.
	Collection bool
	// Retired variants are only accepted in permissive compliance mode.
	Retired bool
}

func (v Variant) Gated() bool { return v.Leaf != LeafNone }

func schema(s derive.Schema) *derive.Schema { return &s }

// Variants is the closed set of issuance entry points.
var Variants = []Variant{
	{Opcode: 9, Name: "mint"},
	{Opcode: 13, Name: "merkle-mint", Leaf: LeafIdentity},
	{Opcode: 14, Name: "merkle-mint-flag", Leaf: LeafIdentity, Schema: schema(derive.SchemaFlag), Retired: true},
	{Opcode: 17, Name: "merkle-mint-ref", Leaf: LeafIdentity, Schema: schema(derive.SchemaReference)},
	{Opcode: 36, Name: "merkle-mint-collection", Leaf: LeafIdentity, Schema: schema(derive.SchemaReference), Descriptive: true, Collection: true},
	{Opcode: 46, Name: "merkle-mint-positioned", Leaf: LeafPositioned, Schema: schema(derive.SchemaMinted), Descriptive: true, Collection: true},
}

// Non-issuance operations.
const (
	OpInitialize   byte = 0
	OpReclaim      byte = 15
	OpPrintEdition byte = 29
	OpWithdraw     byte = 42
	OpUpdateRecord byte = 43
)

// VariantByOpcode finds the issuance variant for op.
func VariantByOpcode(op byte) (Variant, bool) {
	for _, v := range Variants {
		if v.Opcode == op {
			return v, true
		}
	}
	return Variant{}, false
}

func VariantByName(name string) (Variant, bool) {
	for _, v := range Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

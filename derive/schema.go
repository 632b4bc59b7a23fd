package derive

import (
	"encoding/binary"
	"fmt"
)

// RecordKind is the payload shape of an issuance record.
type RecordKind uint8

const (
	// KindFlag records hold one byte, 1 meaning issued.
	KindFlag RecordKind = iota + 1
	// KindReference records hold the 32-byte address of the issued mint.
	KindReference
)

// Size is the record payload length in bytes.
func (k RecordKind) Size() int {
	switch k {
	case KindFlag:
		return 1
	case KindReference:
		return 32
	default:
		return 0
	}
}

func (k RecordKind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("RecordKind(%d)", uint8(k))
	}
}

// KindForSize maps a stored payload length back to its kind.
func KindForSize(n int) (RecordKind, bool) {
	switch n {
	case 1:
		return KindFlag, true
	case 32:
		return KindReference, true
	default:
		return 0, false
	}
}

// RoundEncoding is how the round id is laid out in the address seeds.
type RoundEncoding uint8

const (
	RoundU8 RoundEncoding = iota
	RoundU64LE
)

// Schema is one closed variant of the ledger record layout. Distinct tags give
// disjoint address spaces.
type Schema struct {
	Name  string
	Tag   string
	Round RoundEncoding
	Kind  RecordKind
}

var (
	SchemaFlag      = Schema{Name: "flag", Tag: "is_minted", Round: RoundU8, Kind: KindFlag}
	SchemaReference = Schema{Name: "reference", Tag: "is_minted_ext", Round: RoundU8, Kind: KindReference}
	SchemaMinted    = Schema{Name: "minted", Tag: "minted", Round: RoundU64LE, Kind: KindReference}
)

// Schemas lists every supported layout, oldest first.
func Schemas() []Schema {
	return []Schema{SchemaFlag, SchemaReference, SchemaMinted}
}

// SchemaByName finds a schema by Name or Tag.
func SchemaByName(name string) (Schema, error) {
	for _, s := range Schemas() {
		if s.Name == name || s.Tag == name {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("derive: unknown record schema %q", name)
}

// SchemaByID maps the one-byte wire selector (1, 2, 3) to a schema.
func SchemaByID(id byte) (Schema, error) {
	all := Schemas()
	if id == 0 || int(id) > len(all) {
		return Schema{}, fmt.Errorf("derive: unknown record schema id %d", id)
	}
	return all[id-1], nil
}

func (s Schema) roundSeed(round uint8) []byte {
	if s.Round == RoundU64LE {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(round))
		return b
	}
	return []byte{round}
}

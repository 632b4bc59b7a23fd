package storage

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Address is a 32-byte account key, rendered in base58.
type Address [32]byte

func (a Address) String() string { return base58.Encode(a[:]) }

// ParseAddress decodes a base58 address and checks its length.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MarshalText lets addresses key JSON and YAML maps.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

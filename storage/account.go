package storage

import (
	"fmt"

	"github.com/near/borsh-go"
)

// Account is the state stored at an address.
type Account struct {
	// Owner is the program allowed to write the account.
	Owner Address
	// Deposit is the storage-cost deposit refunded on deallocation.
	Deposit uint64
	Data    []byte
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

const accountVersion = 1

type accountWire struct {
	Version uint8
	Owner   [32]byte
	Deposit uint64
	Data    []byte
}

// EncodeAccount serializes a in the borsh layout shared by every backend.
func EncodeAccount(a Account) ([]byte, error) {
	return borsh.Serialize(accountWire{
		Version: accountVersion,
		Owner:   a.Owner,
		Deposit: a.Deposit,
		Data:    a.Data,
	})
}

func DecodeAccount(b []byte) (Account, error) {
	var w accountWire
	if err := borsh.Deserialize(&w, b); err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if w.Version != accountVersion {
		return Account{}, fmt.Errorf("%w: version %d", ErrCorrupt, w.Version)
	}
	return Account{Owner: w.Owner, Deposit: w.Deposit, Data: w.Data}, nil
}

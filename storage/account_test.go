package storage_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
)

func TestEncodeAccount_Layout(t *testing.T) {
	acct := storage.Account{Owner: addr(0xaa), Deposit: 1_197_120, Data: []byte{1}}
	b, err := storage.EncodeAccount(acct)
	require.NoError(t, err)
	// version(1) owner(32) deposit(8) len(4) data
	require.Len(t, b, 1+32+8+4+1)
	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, byte(0xaa), b[1])
	assert.Equal(t, byte(1), b[len(b)-1])

	got, err := storage.DecodeAccount(b)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestDecodeAccount_RejectsUnknownVersion(t *testing.T) {
	b, err := storage.EncodeAccount(storage.Account{Data: []byte{}})
	require.NoError(t, err)
	b[0] = 9
	_, err = storage.DecodeAccount(b)
	assert.ErrorIs(t, err, storage.ErrCorrupt)

	_, err = storage.DecodeAccount([]byte{1, 2})
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestAccount_CloneIsDeep(t *testing.T) {
	a := storage.Account{Data: []byte{1}}
	c := a.Clone()
	c.Data[0] = 2
	assert.Equal(t, byte(1), a.Data[0])
}

func TestAddress_TextRoundTrip(t *testing.T) {
	a := addr(7)
	parsed, err := storage.ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	b, err := json.Marshal(map[storage.Address]int{a: 1})
	require.NoError(t, err)
	var back map[storage.Address]int
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 1, back[a])

	_, err = storage.ParseAddress("11")
	assert.ErrorIs(t, err, storage.ErrInvalidAddress)
	_, err = storage.ParseAddress("0OIl")
	assert.ErrorIs(t, err, storage.ErrInvalidAddress)
}

package keys

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(start byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = start + byte(i)
	}
	return seed
}

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := seq(0)

	a, err := DeriveRoleSeed(root, "operator")
	require.NoError(t, err)
	b, err := DeriveRoleSeed(root, "operator")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveRoleSeed(root, "treasury")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	assert.Len(t, c, ed25519.SeedSize)

	_, err = DeriveRoleSeed(root[:31], "operator")
	assert.Error(t, err)
	_, err = DeriveRoleSeed(root, "bad role")
	assert.Error(t, err)
}

func TestAccountFromSeed(t *testing.T) {
	seed := seq(0x42)
	acct, err := AccountFromSeed(seed)
	require.NoError(t, err)

	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.True(t, bytes.Equal(pub, acct.PublicKey[:]))

	addr, err := AddressFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, acct.PublicKey, addr)

	_, err = AccountFromSeed(seed[:16])
	assert.Error(t, err)
}

package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStoreRoundTrip(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	root, err := ks.Init("issuer", seq(7), false)
	require.NoError(t, err)
	_, err = ks.Init("issuer", seq(8), false)
	assert.Error(t, err, "existing root key is kept")

	op, err := ks.DeriveRole("issuer", "operator", false)
	require.NoError(t, err)
	assert.NotEqual(t, root.PublicKey, op.PublicKey)

	again, err := ks.Account("issuer", "operator")
	require.NoError(t, err)
	assert.Equal(t, op.PublicKey, again.PublicKey)

	seed, err := ks.Resolve("", "", "issuer", "")
	require.NoError(t, err)
	assert.Equal(t, seq(7), seed)

	seed, err = ks.Resolve("0x"+hex.EncodeToString(seq(3)), "", "issuer", "")
	require.NoError(t, err)
	assert.Equal(t, seq(3), seed)

	_, err = ks.Resolve("", "", "", "")
	assert.Error(t, err)

	_, err = ks.DeriveRole("nobody", "operator", false)
	assert.Error(t, err)

	entries, err := ks.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "issuer", entries[0].Name)
	assert.Equal(t, root.PublicKey.ToBase58(), entries[0].Address)
	assert.Equal(t, []string{"operator"}, entries[0].Roles)
}

func TestKeyStoreFiles(t *testing.T) {
	dir := t.TempDir()
	ks, err := Open(dir)
	require.NoError(t, err)
	_, err = ks.Init("a", seq(0), false)
	require.NoError(t, err)

	path := filepath.Join(dir, "a", "root.key")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	seed, err := ks.Resolve("", path, "", "")
	require.NoError(t, err)
	assert.Equal(t, seq(0), seed)

	empty, err := Open(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	entries, err := empty.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestKeyNames(t *testing.T) {
	require.NoError(t, CheckKeyName("issuer-1_a"))
	assert.Error(t, CheckKeyName(""))
	assert.Error(t, CheckKeyName("../x"))
	assert.Error(t, CheckRole("a b"))

	_, err := ParseSeedHex("abcd")
	assert.Error(t, err)
	_, err = ParseSeedHex("zz")
	assert.Error(t, err)
}

package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestEd25519SignVerify(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(seq(0))
	signer, err := SignerKeyEd25519(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	msg := []byte("rounds manifest")
	for _, alg := range []string{"sha256", "sha512", "sha3-256"} {
		sig, err := SignEd25519(msg, alg, priv)
		require.NoError(t, err)
		require.NoError(t, Verify(signer, alg, msg, sig), alg)
		assert.ErrorIs(t, Verify(signer, alg, []byte("other"), sig), ErrBadSignature, alg)
	}

	_, err = SignEd25519(msg, "md5", priv)
	assert.Error(t, err)
	_, err = SignerKeyEd25519(make([]byte, 31))
	assert.Error(t, err)
}

func TestDilithium3SignVerify(t *testing.T) {
	pk, sk, err := GenerateDilithium3Keypair(io.Reader(&deterministicReader{}))
	require.NoError(t, err)
	signer, err := SignerKeyDilithium3(pk)
	require.NoError(t, err)

	msg := []byte("rounds manifest")
	sigB64, err := SignDilithium3(msg, "sha3-256", sk)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)
	assert.Len(t, sig, mode3.SignatureSize)

	require.NoError(t, Verify(signer, "sha3-256", msg, sigB64))
	assert.ErrorIs(t, Verify(signer, "sha256", msg, sigB64), ErrBadSignature)

	_, err = SignDilithium3(msg, "sha256", nil)
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedKeys(t *testing.T) {
	sig := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	for _, key := range []string{"nokey", "rsa:abc", "ed25519:0OIl", "dilithium3:!!"} {
		assert.Error(t, Verify(key, "sha256", []byte("m"), sig), key)
	}
	priv := ed25519.NewKeyFromSeed(seq(1))
	signer, err := SignerKeyEd25519(priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	assert.Error(t, Verify(signer, "sha256", []byte("m"), "%%%"))
}

func TestDilithium3FromSeed(t *testing.T) {
	pk1, sk, err := Dilithium3FromSeed(seq(3))
	require.NoError(t, err)
	pk2, _, err := Dilithium3FromSeed(seq(3))
	require.NoError(t, err)
	assert.True(t, pk1.Equal(pk2))

	signer, err := SignerKeyDilithium3(pk1)
	require.NoError(t, err)
	sig, err := SignDilithium3([]byte("m"), "sha256", sk)
	require.NoError(t, err)
	require.NoError(t, Verify(signer, "sha256", []byte("m"), sig))

	_, _, err = Dilithium3FromSeed(seq(3)[:16])
	assert.Error(t, err)
}

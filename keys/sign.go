package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

var ErrBadSignature = errors.New("keys: signature invalid")

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// SignerKeyEd25519 renders pub as "ed25519:<base58>".
func SignerKeyEd25519(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base58.Encode(pub), nil
}

// SignerKeyDilithium3 renders pk as "dilithium3:<base64>".
func SignerKeyDilithium3(pk *mode3.PublicKey) (string, error) {
	b, err := pk.MarshalBinary()
	if err != nil {
		return "", err
	}
	return "dilithium3:" + base64.StdEncoding.EncodeToString(b), nil
}

// SignEd25519 returns a base64 signature over hash(message).
func SignEd25519(message []byte, hashAlg string, privateKey ed25519.PrivateKey) (string, error) {
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(privateKey, digest)), nil
}

// SignDilithium3 returns a base64 dilithium3 signature over hash(message).
// hashAlg must be one of: sha256, sha512, sha3-256.
func SignDilithium3(message []byte, hashAlg string, privateKey *mode3.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("missing private key")
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// Dilithium3FromSeed expands a 32-byte seed into a Dilithium3 keypair.
func Dilithium3FromSeed(seed []byte) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	if len(seed) != mode3.SeedSize {
		return nil, nil, fmt.Errorf("expected seed length of %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	pk, sk := mode3.NewKeyFromSeed((*[mode3.SeedSize]byte)(seed))
	return pk, sk, nil
}

// Verify checks a base64 signature by signerKey over hash(message).
func Verify(signerKey, hashAlg string, message []byte, signature string) error {
	alg, enc, ok := strings.Cut(signerKey, ":")
	if !ok {
		return fmt.Errorf("keys: signer key %q has no algorithm prefix", signerKey)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("keys: signature base64: %w", err)
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return err
	}

	switch alg {
	case "ed25519":
		pub, err := base58.Decode(enc)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("keys: invalid ed25519 signer key %q", signerKey)
		}
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return ErrBadSignature
		}
		return nil
	case "dilithium3":
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return fmt.Errorf("keys: dilithium3 signer key base64: %w", err)
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("keys: invalid dilithium3 signer key: %w", err)
		}
		if len(sig) != mode3.SignatureSize || !mode3.Verify(&pk, digest, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("keys: unsupported signer algorithm %q", alg)
	}
}

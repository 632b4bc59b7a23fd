package rounds

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"gopkg.in/yaml.v2"

	"github.com/dikanevn/bf/keys"
)

// ManifestDomain prefixes the signed bytes of every manifest.
const ManifestDomain = "bf-rounds-manifest-v1"

var (
	ErrFingerprintMismatch = errors.New("rounds: manifest does not describe this registry")
	ErrUnsigned            = errors.New("rounds: manifest has no signatures")
)

// Manifest binds a registry fingerprint to the program it gates, and carries
// operator signatures over that binding.
type Manifest struct {
	Program     string      `yaml:"program"`
	Fingerprint string      `yaml:"fingerprint"`
	Rounds      int         `yaml:"rounds"`
	Signatures  []Signature `yaml:"signatures,omitempty"`
}

type Signature struct {
	Signer string `yaml:"signer"`
	Hash   string `yaml:"hash"`
	Value  string `yaml:"value"`
}

func NewManifest(program common.PublicKey, r *Registry) (*Manifest, error) {
	fp, err := r.Fingerprint()
	if err != nil {
		return nil, err
	}
	return &Manifest{Program: program.ToBase58(), Fingerprint: fp.String(), Rounds: r.Len()}, nil
}

// SigningBytes is the exact message every signature covers.
func (m *Manifest) SigningBytes() []byte {
	s := ManifestDomain + "\n" +
		"program:" + m.Program + "\n" +
		"fingerprint:" + m.Fingerprint + "\n" +
		"rounds:" + strconv.Itoa(m.Rounds) + "\n"
	return []byte(s)
}

func (m *Manifest) SignEd25519(priv ed25519.PrivateKey, hashAlg string) error {
	signer, err := keys.SignerKeyEd25519(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	sig, err := keys.SignEd25519(m.SigningBytes(), hashAlg, priv)
	if err != nil {
		return err
	}
	m.Signatures = append(m.Signatures, Signature{Signer: signer, Hash: hashAlg, Value: sig})
	return nil
}

func (m *Manifest) SignDilithium3(pub *mode3.PublicKey, priv *mode3.PrivateKey, hashAlg string) error {
	signer, err := keys.SignerKeyDilithium3(pub)
	if err != nil {
		return err
	}
	sig, err := keys.SignDilithium3(m.SigningBytes(), hashAlg, priv)
	if err != nil {
		return err
	}
	m.Signatures = append(m.Signatures, Signature{Signer: signer, Hash: hashAlg, Value: sig})
	return nil
}

// Verify checks that m describes r under program and that every signature
// is valid. trusted, when non-empty, lists the signer keys that must all
// appear.
func (m *Manifest) Verify(program common.PublicKey, r *Registry, trusted ...string) error {
	want, err := NewManifest(program, r)
	if err != nil {
		return err
	}
	if m.Program != want.Program || m.Fingerprint != want.Fingerprint || m.Rounds != want.Rounds {
		return fmt.Errorf("%w: have %s/%s/%d, registry is %s/%s/%d", ErrFingerprintMismatch,
			m.Program, m.Fingerprint, m.Rounds, want.Program, want.Fingerprint, want.Rounds)
	}
	if len(m.Signatures) == 0 {
		return ErrUnsigned
	}
	seen := map[string]bool{}
	for i, s := range m.Signatures {
		if err := keys.Verify(s.Signer, s.Hash, m.SigningBytes(), s.Value); err != nil {
			return fmt.Errorf("rounds: manifest signature %d by %s: %w", i, s.Signer, err)
		}
		seen[s.Signer] = true
	}
	for _, k := range trusted {
		if !seen[k] {
			return fmt.Errorf("rounds: manifest lacks a signature by %s", k)
		}
	}
	return nil
}

func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(b, &m); err != nil {
		return nil, fmt.Errorf("rounds: parse manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

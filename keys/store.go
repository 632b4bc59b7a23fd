package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
)

// KeyStore keeps ed25519 seeds under Directory:
//
//	<name>/root.key
//	<name>/roles/<role>.key
//
// Each file holds one hex-encoded seed.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name    string
	Address string
	Roles   []string
}

func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bf", "keys"), nil
}

// Open returns a KeyStore rooted at directory, or at DefaultDirectory when
// directory is empty.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		if directory, err = DefaultDirectory(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdent(what, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", c, what)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }

func CheckRole(role string) error { return checkIdent("role", role) }

// ParseSeedHex accepts a 32-byte seed as hex, optionally 0x-prefixed.
func ParseSeedHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// Init stores seed as the root key of name and returns its account.
func (ks *KeyStore) Init(name string, seed []byte, overwrite bool) (types.Account, error) {
	if err := CheckKeyName(name); err != nil {
		return types.Account{}, err
	}
	if err := writeSeed(ks.rootPath(name), seed, overwrite); err != nil {
		return types.Account{}, err
	}
	return AccountFromSeed(seed)
}

// DeriveRole derives and stores the role key of name.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (types.Account, error) {
	if err := CheckKeyName(name); err != nil {
		return types.Account{}, err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return types.Account{}, err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return types.Account{}, err
	}
	if err := writeSeed(ks.rolePath(name, role), seed, overwrite); err != nil {
		return types.Account{}, err
	}
	return AccountFromSeed(seed)
}

// Seed loads the root seed of name, or its role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// Account loads the signing account of name (and role).
func (ks *KeyStore) Account(name, role string) (types.Account, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return types.Account{}, err
	}
	return AccountFromSeed(seed)
}

// Resolve picks a seed from the first source given: a hex seed, a key file,
// or a stored name and role.
func (ks *KeyStore) Resolve(seedHex, keyFile, name, role string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return readSeed(keyFile)
	case name != "":
		return ks.Seed(name, role)
	}
	return nil, errors.New("no signer provided")
}

// List returns every stored name with its root address and roles, sorted.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []KeyEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		entry := KeyEntry{Name: e.Name()}
		if seed, err := readSeed(ks.rootPath(e.Name())); err == nil {
			if addr, err := AddressFromSeed(seed); err == nil {
				entry.Address = addr.ToBase58()
			}
		}
		roles, _ := os.ReadDir(filepath.Join(ks.Directory, e.Name(), "roles"))
		for _, r := range roles {
			if !r.IsDir() && strings.HasSuffix(r.Name(), ".key") {
				entry.Roles = append(entry.Roles, strings.TrimSuffix(r.Name(), ".key"))
			}
		}
		sort.Strings(entry.Roles)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

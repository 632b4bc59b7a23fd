// Package config loads an issuer deployment from YAML:
//
//	program: BJZpNCrvPDRdbD3w2GUUWPoiF2Ww17wuY6fLNxsD3pRA
//	rounds:
//	  file: rounds.yaml
//	  manifest: rounds.manifest.yaml
//	  trusted_signers: ["ed25519:..."]
//	collection: HjDkVP7sYuse7UyirbngnjMJD5PgVkPSfcX6dLWbfE4a
//	treasury: ...
//	operator: ...
//	compliance: strict
//	content: {name: Pass, symbol: PASS, uri: "https://...", seller_fee_bps: 500}
//	print_supply: 10
//	storage:
//	  backends: [{name: pebble, config: {pebble-dir: /var/lib/bf}}]
//	log: {level: info}
//
// Relative paths are resolved against the config file's directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/compliance"
	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/logging"
	"github.com/dikanevn/bf/rounds"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeconfig"
)

type Config struct {
	Program    string         `yaml:"program"`
	Rounds     RoundsConfig   `yaml:"rounds"`
	Collection string         `yaml:"collection,omitempty"`
	Treasury   string         `yaml:"treasury"`
	Operator   string         `yaml:"operator,omitempty"`
	Compliance string         `yaml:"compliance,omitempty"`
	Content    collab.Content `yaml:"content"`
	// PrintSupply caps the editions printable from each issued resource.
	PrintSupply uint64             `yaml:"print_supply,omitempty"`
	Storage     storeconfig.Config `yaml:"storage"`
	Log         logging.Config     `yaml:"log"`

	dir string
}

type RoundsConfig struct {
	// File is a rounds YAML; empty selects the built-in table.
	File string `yaml:"file,omitempty"`
	// Manifest, when set, must carry valid signatures over the loaded table.
	Manifest       string   `yaml:"manifest,omitempty"`
	TrustedSigners []string `yaml:"trusted_signers,omitempty"`
}

func Parse(b []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return c, fmt.Errorf("config: parse yaml: %w", err)
	}
	c = c.WithDefaults()
	return c, c.Validate()
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := Parse(b)
	if err != nil {
		return c, err
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// WithDefaults fills unset values: strict compliance, an in-memory store
// and the logging defaults.
func (c Config) WithDefaults() Config {
	if c.Compliance == "" {
		c.Compliance = compliance.Strict.String()
	}
	if len(c.Storage.Backends) == 0 {
		c.Storage.Backends = []storeconfig.BackendConfig{{Name: "mem"}}
	}
	c.Log = c.Log.WithDefaults()
	return c
}

func (c Config) Validate() error {
	if c.Program == "" {
		return errors.New("config: program is required")
	}
	if c.Treasury == "" {
		return errors.New("config: treasury is required")
	}
	for field, v := range map[string]string{"program": c.Program, "treasury": c.Treasury, "operator": c.Operator, "collection": c.Collection} {
		if v == "" {
			continue
		}
		if _, err := storage.ParseAddress(v); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	if _, err := compliance.Parse(c.Compliance); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.Rounds.TrustedSigners) > 0 && c.Rounds.Manifest == "" {
		return errors.New("config: rounds.trusted_signers needs rounds.manifest")
	}
	return c.Storage.Validate()
}

func (c Config) path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func key(s string) common.PublicKey {
	a, _ := storage.ParseAddress(s)
	return common.PublicKey(a)
}

func (c Config) ProgramID() common.PublicKey { return key(c.Program) }

func (c Config) Mode() compliance.ComplianceMode {
	m, _ := compliance.Parse(c.Compliance)
	return m
}

// Registry loads the round table and checks it against the manifest.
func (c Config) Registry() (*rounds.Registry, error) {
	reg := rounds.Default()
	if c.Rounds.File != "" {
		var err error
		if reg, err = rounds.LoadFile(c.path(c.Rounds.File)); err != nil {
			return nil, err
		}
	}
	if c.Rounds.Manifest == "" {
		return reg, nil
	}
	b, err := os.ReadFile(c.path(c.Rounds.Manifest))
	if err != nil {
		return nil, err
	}
	m, err := rounds.ParseManifest(b)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(c.ProgramID(), reg, c.Rounds.TrustedSigners...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Pipeline assembles the issuance pipeline this deployment describes.
func (c Config) Pipeline(logger *zap.Logger) (*issuance.Pipeline, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	auth, err := authority.Derive(c.ProgramID())
	if err != nil {
		return nil, err
	}
	pc := issuance.Config{
		Registry:    reg,
		Authority:   auth,
		Content:     c.Content,
		Treasury:    key(c.Treasury),
		PrintSupply: c.PrintSupply,
		Logger:      logger,
	}
	if c.Operator != "" {
		pc.Operator = key(c.Operator)
	}
	if c.Collection != "" {
		coll := key(c.Collection)
		pc.Collection = &coll
	}
	return issuance.NewPipeline(pc)
}

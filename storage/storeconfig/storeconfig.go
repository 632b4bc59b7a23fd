// Package storeconfig opens ledger stores from configuration through
// storeregistry. Binaries still link the backends they want via blank imports.
package storeconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

// Write policies.
const (
	// PolicySingle uses exactly one backend.
	PolicySingle = "single"
	// PolicyMirror writes every backend and reads in order (storage.Mirror).
	PolicyMirror = "mirror"
)

// Config selects one or more backends.
//
//	write_policy: mirror
//	backends:
//	  - name: pebble
//	    config: {pebble-dir: /var/lib/bf/ledger}
//	  - name: redis
//	    id: shared
//	    config: {redis-addr: 127.0.0.1:6379}
//
// Config keys are backend flag names.
type Config struct {
	WritePolicy string          `yaml:"write_policy,omitempty" json:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends" json:"backends"`
}

type BackendConfig struct {
	// Name is the storeregistry backend to open.
	Name string `yaml:"name" json:"name"`
	// ID is an optional alias used in logs and error messages. Defaults to Name.
	ID     string            `yaml:"id,omitempty" json:"id,omitempty"`
	Config map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("storeconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Policy resolves the effective write policy.
func (c Config) Policy() string {
	if c.WritePolicy != "" {
		return c.WritePolicy
	}
	if len(c.Backends) == 1 {
		return PolicySingle
	}
	return PolicyMirror
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("storeconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("storeconfig: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("storeconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.Policy() {
	case PolicySingle:
		if len(c.Backends) != 1 {
			return fmt.Errorf("storeconfig: write_policy %q needs exactly one backend, have %d", PolicySingle, len(c.Backends))
		}
		return nil
	case PolicyMirror:
		return nil
	default:
		return fmt.Errorf("storeconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend and combines them per the write policy.
func (c Config) Open(usage storeregistry.Usage) (storage.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedStore, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Backends {
		s, closeFn, err := storeregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("storeconfig: open %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if c.Policy() == PolicySingle {
		return named[0].Store, closeAll, nil
	}
	return storage.Mirror{Backends: named}, closeAll, nil
}

package rounds

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dikanevn/bf/merkle"
)

// File is the YAML form of a registry:
//
//	rounds:
//	  - id: 0
//	    root: 15b2605f...
//	    note: genesis drop
type File struct {
	Rounds []Entry `yaml:"rounds"`
}

type Entry struct {
	ID   uint   `yaml:"id"`
	Root string `yaml:"root"`
	Note string `yaml:"note,omitempty"`
}

// Parse builds a registry from YAML. Ids must run 0..N-1 in order.
func Parse(b []byte) (*Registry, error) {
	var f File
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, fmt.Errorf("rounds: parse yaml: %w", err)
	}
	roots := make([]merkle.Hash, 0, len(f.Rounds))
	for i, e := range f.Rounds {
		if e.ID != uint(i) {
			return nil, fmt.Errorf("rounds: entry %d has id %d; ids must be contiguous from 0", i, e.ID)
		}
		h, err := merkle.ParseHash(e.Root)
		if err != nil {
			return nil, fmt.Errorf("rounds: round %d: %w", e.ID, err)
		}
		roots = append(roots, h)
	}
	return New(roots)
}

func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Marshal renders r as YAML accepted by Parse. notes may be nil.
func Marshal(r *Registry, notes map[uint]string) ([]byte, error) {
	f := File{Rounds: make([]Entry, 0, r.Len())}
	for i, h := range r.roots {
		f.Rounds = append(f.Rounds, Entry{ID: uint(i), Root: h.String(), Note: notes[uint(i)]})
	}
	return yaml.Marshal(f)
}

// Package compliance selects which issuance entry points and record layouts
// a deployment accepts.
package compliance

import (
	"fmt"
	"strings"

	"github.com/dikanevn/bf/derive"
)

// ComplianceMode selects how aggressively the engine rejects legacy surface.
//
// Strict mode refuses retired variants and the one-byte flag record layout.
// Permissive mode keeps them available for ledgers that still hold flag
// records.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// Parse accepts "strict" or "permissive"; empty means strict.
func Parse(s string) (ComplianceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "permissive", "legacy":
		return Permissive, nil
	default:
		return Strict, fmt.Errorf("compliance: unknown mode %q", s)
	}
}

// AllowsRetired reports whether retired variants may run.
func (m ComplianceMode) AllowsRetired() bool { return m == Permissive }

// AllowsSchema reports whether new records may be written with s.
func (m ComplianceMode) AllowsSchema(s derive.Schema) bool {
	return m == Permissive || s.Kind != derive.KindFlag
}

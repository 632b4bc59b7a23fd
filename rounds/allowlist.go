package rounds

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/dikanevn/bf/merkle"
)

// Member is one allowlist line: an identity and, for positioned lists, its
// slot.
type Member struct {
	Identity [32]byte
	Position *uint16
}

// Leaf is the tree leaf committing to m.
func (m Member) Leaf() merkle.Hash {
	if m.Position != nil {
		return merkle.PositionedLeaf(m.Identity, *m.Position)
	}
	return merkle.Leaf(m.Identity)
}

// ParseAllowlist reads one member per line:
//
//	<base58 identity>
//	<base58 identity> <position>
//
// Blank lines and lines starting with '#' are skipped. A list is either
// entirely positioned or not at all, and repeats are rejected.
func ParseAllowlist(r io.Reader) ([]Member, error) {
	var out []Member
	seen := map[merkle.Hash]int{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) > 2 {
			return nil, fmt.Errorf("allowlist line %d: want identity [position]", line)
		}
		raw, err := base58.Decode(fields[0])
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("allowlist line %d: invalid identity %q", line, fields[0])
		}
		var m Member
		copy(m.Identity[:], raw)
		if len(fields) == 2 {
			p, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("allowlist line %d: position: %w", line, err)
			}
			pos := uint16(p)
			m.Position = &pos
		}
		if len(out) > 0 && (out[0].Position == nil) != (m.Position == nil) {
			return nil, fmt.Errorf("allowlist line %d: mixes positioned and plain entries", line)
		}
		leaf := m.Leaf()
		if prev, dup := seen[leaf]; dup {
			return nil, fmt.Errorf("allowlist line %d: repeats line %d", line, prev)
		}
		seen[leaf] = line
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func LoadAllowlist(path string) ([]Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAllowlist(f)
}

// Tree builds the commitment tree over members.
func Tree(members []Member) (*merkle.Tree, error) {
	leaves := make([]merkle.Hash, len(members))
	for i, m := range members {
		leaves[i] = m.Leaf()
	}
	return merkle.NewTree(leaves)
}

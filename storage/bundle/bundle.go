// Package bundle moves ledger accounts between stores as a deterministic TAR.
//
// Layout:
//
//	accounts/<base58 address>   storage.EncodeAccount bytes
//	index.json                  optional, lists each entry's CID
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dikanevn/bf/cidutil"
	"github.com/dikanevn/bf/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

const accountsDir = "accounts/"

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Owner, when set, restricts the export to accounts owned by that program.
	Owner *storage.Address
	// Label is free-form, non-authoritative text stored in index.json.
	Label string
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes every account src holds to w. Entries are ordered by address
// and TAR headers are normalized, so equal ledgers produce equal bytes.
// It returns the number of accounts written.
func Export(ctx context.Context, w io.Writer, src storage.Lister, opts ExportOptions) (int, error) {
	if src == nil {
		return 0, fmt.Errorf("bundle: nil store")
	}

	tw := tar.NewWriter(w)
	var entries []indexEntry
	err := src.Scan(ctx, func(addr storage.Address, acct storage.Account) error {
		if opts.Owner != nil && acct.Owner != *opts.Owner {
			return nil
		}
		b, err := storage.EncodeAccount(acct)
		if err != nil {
			return err
		}
		if err := writeFile(tw, accountsDir+addr.String(), b); err != nil {
			return err
		}
		entries = append(entries, indexEntry{Address: addr.String(), CID: cidutil.String(b), Size: len(b)})
		return nil
	})
	if err != nil {
		_ = tw.Close()
		return 0, err
	}

	if opts.IncludeIndex {
		b, err := marshalCanonicalIndexJSON(indexJSON{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Label:     opts.Label,
			Accounts:  entries,
		})
		if err != nil {
			_ = tw.Close()
			return 0, err
		}
		if err := writeFile(tw, "index.json", b); err != nil {
			_ = tw.Close()
			return 0, err
		}
	}
	return len(entries), tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
	// SkipExisting leaves accounts already allocated in dst untouched instead
	// of failing.
	SkipExisting bool
}

// Import reads a bundle from r and allocates every account in dst. When the
// bundle carries index.json, each account's bytes must match its listed CID
// and every listed account must be present.
func Import(ctx context.Context, r io.Reader, dst storage.Store, opts ImportOptions) (int, error) {
	if dst == nil {
		return 0, fmt.Errorf("bundle: nil store")
	}

	tr := tar.NewReader(r)
	accounts := map[storage.Address][]byte{}
	var idx *indexJSON

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return 0, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return 0, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return 0, err
		}

		switch {
		case name == "index.json":
			var parsed indexJSON
			if err := json.Unmarshal(payload, &parsed); err != nil {
				return 0, fmt.Errorf("bundle: index.json: %w", err)
			}
			if parsed.Version != FormatVersion {
				return 0, fmt.Errorf("bundle: unsupported index version %d", parsed.Version)
			}
			idx = &parsed
		case strings.HasPrefix(name, accountsDir):
			addr, err := storage.ParseAddress(strings.TrimPrefix(name, accountsDir))
			if err != nil {
				return 0, err
			}
			if _, dup := accounts[addr]; dup {
				return 0, fmt.Errorf("bundle: duplicate account entry: %s", addr)
			}
			accounts[addr] = payload
		default:
			if !opts.IgnoreUnknown {
				return 0, fmt.Errorf("bundle: unknown entry: %s", name)
			}
		}
	}

	if idx != nil {
		if len(idx.Accounts) != len(accounts) {
			return 0, fmt.Errorf("bundle: index lists %d accounts, bundle has %d", len(idx.Accounts), len(accounts))
		}
		for _, e := range idx.Accounts {
			addr, err := storage.ParseAddress(e.Address)
			if err != nil {
				return 0, err
			}
			b, ok := accounts[addr]
			if !ok {
				return 0, fmt.Errorf("bundle: index lists missing account %s", e.Address)
			}
			if err := cidutil.Check(e.CID, b); err != nil {
				return 0, fmt.Errorf("bundle: account %s: %w", e.Address, err)
			}
		}
	}

	addrs := make([]storage.Address, 0, len(accounts))
	for a := range accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	n := 0
	for _, addr := range addrs {
		acct, err := storage.DecodeAccount(accounts[addr])
		if err != nil {
			return n, fmt.Errorf("bundle: account %s: %w", addr, err)
		}
		err = dst.Allocate(ctx, addr, acct)
		if storage.IsAlreadyAllocated(err) && opts.SkipExisting {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("bundle: account %s: %w", addr, err)
		}
		n++
	}
	return n, nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Label     string       `json:"label,omitempty"`
	Accounts  []indexEntry `json:"accounts"`
}

type indexEntry struct {
	Address string `json:"address"`
	CID     string `json:"cid"`
	Size    int    `json:"size"`
}

func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}

package localfs

import (
	"flag"
	"fmt"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

var flagLocalDir string

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem ledger store (one file per account)",
		Usage:       storeregistry.UsageCLI | storeregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "Ledger directory (for --backend=localfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			if flagLocalDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			s, err := New(flagLocalDir)
			return s, nil, err
		},
	})
}

package memstore

import (
	"flag"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:          "mem",
		Description:   "In-memory ledger store (lost on exit)",
		Usage:         storeregistry.UsageCLI | storeregistry.UsageDaemon,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.Store, func() error, error) {
			return New(), nil, nil
		},
	})
}

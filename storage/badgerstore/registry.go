package badgerstore

import (
	"flag"
	"fmt"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

var (
	flagDir      string
	flagInMemory bool
	flagSync     bool
)

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:        "badger",
		Description: "BadgerDB transactional ledger store",
		Usage:       storeregistry.UsageCLI | storeregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "badger-dir", "", "Badger directory (for --backend=badger)")
			fs.BoolVar(&flagInMemory, "badger-in-memory", false, "Keep the badger store in memory")
			fs.BoolVar(&flagSync, "badger-sync", true, "Sync badger writes to disk")
		},
		Open: func() (storage.Store, func() error, error) {
			if flagDir == "" && !flagInMemory {
				return nil, nil, fmt.Errorf("missing --badger-dir")
			}
			s, err := Open(nil, Options{Dir: flagDir, InMemory: flagInMemory, SyncWrites: flagSync})
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}

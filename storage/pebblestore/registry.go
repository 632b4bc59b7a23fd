package pebblestore

import (
	"flag"
	"fmt"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

var flagDir string

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:        "pebble",
		Description: "Pebble key-value ledger store",
		Usage:       storeregistry.UsageCLI | storeregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "pebble-dir", "", "Pebble database directory (for --backend=pebble)")
		},
		Open: func() (storage.Store, func() error, error) {
			if flagDir == "" {
				return nil, nil, fmt.Errorf("missing --pebble-dir")
			}
			s, err := Open(nil, flagDir)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}

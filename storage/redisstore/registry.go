package redisstore

import (
	"flag"
	"fmt"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"
)

var (
	flagAddr     string
	flagPassword string
	flagDB       int
	flagPrefix   string
)

func init() {
	storeregistry.MustRegister(storeregistry.Backend{
		Name:        "redis",
		Description: "Redis ledger store shared between issuers",
		Usage:       storeregistry.UsageCLI | storeregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagAddr, "redis-addr", "", "Redis host:port (for --backend=redis)")
			fs.StringVar(&flagPassword, "redis-password", "", "Redis password")
			fs.IntVar(&flagDB, "redis-db", 0, "Redis database number")
			fs.StringVar(&flagPrefix, "redis-prefix", "bf:acct:", "Key prefix for ledger accounts")
		},
		Open: func() (storage.Store, func() error, error) {
			if flagAddr == "" {
				return nil, nil, fmt.Errorf("missing --redis-addr")
			}
			s, err := New(Options{Addr: flagAddr, Password: flagPassword, DB: flagDB, Prefix: flagPrefix})
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		},
	})
}

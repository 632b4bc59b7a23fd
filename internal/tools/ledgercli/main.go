// ledgercli inspects raw ledger accounts in any registered store backend.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dikanevn/bf/cidutil"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"

	_ "github.com/dikanevn/bf/storage/badgerstore"
	_ "github.com/dikanevn/bf/storage/grpcstore"
	_ "github.com/dikanevn/bf/storage/localfs"
	_ "github.com/dikanevn/bf/storage/pebblestore"
	_ "github.com/dikanevn/bf/storage/redisstore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "scan":
		return cmdScan(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ledgercli: raw ledger account inspection")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ledgercli get --backend localfs --localfs-dir <dir> --address <base58>")
	fmt.Fprintln(w, "  ledgercli scan --backend pebble --pebble-dir <dir>")
	fmt.Fprintln(w, "  ledgercli get --backend grpc --grpc-target <host:port> --address <base58>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - grpc backend talks to bf-ledgerd")
	fmt.Fprintln(w, "  - scan needs a backend that can list accounts")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "Ledger store backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	storeregistry.RegisterFlags(fs, storeregistry.UsageCLI)
}

func (c *commonFlags) open() (storage.Store, func() error, error) {
	return storeregistry.Open(c.backend, storeregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range storeregistry.List(storeregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func describe(w io.Writer, addr storage.Address, acct storage.Account) error {
	raw, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\towner=%s\tdeposit=%d\tdata=%s\tcid=%s\n",
		addr, acct.Owner, acct.Deposit, hex.EncodeToString(acct.Data), cidutil.String(raw))
	return err
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var address string
	fs.StringVar(&address, "address", "", "Account address (base58)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if address == "" {
		fmt.Fprintln(errOut, "missing --address")
		return 2
	}
	addr, err := storage.ParseAddress(address)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --address: %v\n", err)
		return 2
	}

	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	acct, err := store.Read(context.Background(), addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := describe(out, addr, acct); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdScan(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}

	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	lister, ok := store.(storage.Lister)
	if !ok {
		fmt.Fprintf(errOut, "backend %s cannot list accounts\n", common.backend)
		return 1
	}
	err = lister.Scan(context.Background(), func(addr storage.Address, acct storage.Account) error {
		return describe(out, addr, acct)
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

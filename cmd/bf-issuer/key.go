package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dikanevn/bf/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "show":
		return cmdKeyShow(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "bf-issuer key: local seed storage for operators and manifest signers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bf-issuer key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  bf-issuer key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  bf-issuer key list")
	fmt.Fprintln(w, "  bf-issuer key show --name <name> [--role <role>]")
}

func openKeys(errOut io.Writer) (*keys.KeyStore, bool) {
	ks, err := keys.Open(os.Getenv("BF_KEYS_DIR"))
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, false
	}
	return ks, true
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool

	fs.StringVar(&name, "name", "", "Key name (directory under ~/.bf/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if seedHex != "" {
		var err error
		if seed, err = keys.ParseSeedHex(seedHex); err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	ks, ok := openKeys(errOut)
	if !ok {
		return 1
	}
	acct, err := ks.Init(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "Created root key: %s\n", acct.PublicKey.ToBase58())
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. operator, treasury, rounds)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" || role == "" {
		fmt.Fprintln(errOut, "missing --from or --role")
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, ok := openKeys(errOut)
	if !ok {
		return 1
	}
	acct, err := ks.DeriveRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "Created role key: %s\n", acct.PublicKey.ToBase58())
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer key list")
		return 2
	}
	ks, ok := openKeys(errOut)
	if !ok {
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		roles := "-"
		if len(e.Roles) > 0 {
			roles = strings.Join(e.Roles, ",")
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", e.Name, e.Address, roles)
	}
	return 0
}

// cmdKeyShow prints the address and the manifest signer key of a stored seed.
func cmdKeyShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, role string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, ok := openKeys(errOut)
	if !ok {
		return 1
	}
	seed, err := ks.Seed(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "read key: %v\n", err)
		return 1
	}
	priv := ed25519.NewKeyFromSeed(seed)
	signer, err := keys.SignerKeyEd25519(priv.Public().(ed25519.PublicKey))
	if err != nil {
		fmt.Fprintf(errOut, "signer key: %v\n", err)
		return 1
	}
	pk, _, err := keys.Dilithium3FromSeed(seed)
	if err != nil {
		fmt.Fprintf(errOut, "dilithium3 key: %v\n", err)
		return 1
	}
	pq, err := keys.SignerKeyDilithium3(pk)
	if err != nil {
		fmt.Fprintf(errOut, "dilithium3 key: %v\n", err)
		return 1
	}
	addr, err := keys.AddressFromSeed(seed)
	if err != nil {
		fmt.Fprintf(errOut, "address: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "address: %s\n", addr.ToBase58())
	_, _ = fmt.Fprintf(out, "ed25519: %s\n", signer)
	_, _ = fmt.Fprintf(out, "dilithium3: %s\n", pq)
	return 0
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/model"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/bundle"
)

func cmdLedger(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer ledger <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: show, export, import")
		return 2
	}
	switch args[0] {
	case "show":
		return cmdLedgerShow(args[1:], out, errOut)
	case "export":
		return cmdLedgerExport(args[1:], out, errOut)
	case "import":
		return cmdLedgerImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown ledger subcommand: %s\n", args[0])
		return 2
	}
}

func cmdLedgerShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("ledger show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, schema, claimant string
	var round int
	fs.StringVar(&configPath, "config", "", "Deployment config (YAML)")
	fs.StringVar(&schema, "schema", derive.SchemaReference.Name, "Record schema: flag, reference or minted")
	fs.IntVar(&round, "round", -1, "Round id")
	fs.StringVar(&claimant, "claimant", "", "Claimant identity (base58)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	r, err := roundFlag(round)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	d, err := openDeployment(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "open deployment: %v\n", err)
		return 1
	}
	defer d.Close()

	view, err := model.ReadRecord(context.Background(), d.store, d.cfg.ProgramID(), schema, r, claimant)
	if err != nil {
		fmt.Fprintf(errOut, "ledger show: %v\n", err)
		return 1
	}
	if err := writeJSON(out, view); err != nil {
		fmt.Fprintf(errOut, "write record: %v\n", err)
		return 1
	}
	return 0
}

func cmdLedgerExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("ledger export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, outPath, owner, label string
	var index bool
	fs.StringVar(&configPath, "config", "", "Deployment config (YAML)")
	fs.StringVar(&outPath, "out", "", "Bundle file to write")
	fs.StringVar(&owner, "owner", "", "Only export accounts owned by this program (base58)")
	fs.StringVar(&label, "label", "", "Free-form label stored in the bundle index")
	fs.BoolVar(&index, "index", true, "Include index.json with per-account CIDs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "usage: bf-issuer ledger export --config <file> --out <bundle.tar> [--owner <base58>] [--index]")
		return 2
	}
	opts := bundle.ExportOptions{Label: label, IncludeIndex: index}
	if owner != "" {
		a, err := storage.ParseAddress(owner)
		if err != nil {
			fmt.Fprintf(errOut, "--owner: %v\n", err)
			return 2
		}
		opts.Owner = &a
	}

	d, err := openDeployment(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "open deployment: %v\n", err)
		return 1
	}
	defer d.Close()

	lister, ok := d.store.(storage.Lister)
	if !ok {
		fmt.Fprintln(errOut, "ledger export: configured store cannot list accounts")
		return 1
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create --out: %v\n", err)
		return 1
	}
	n, err := bundle.Export(context.Background(), f, lister, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(errOut, "ledger export: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "exported %d accounts\n", n)
	return 0
}

func cmdLedgerImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("ledger import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, inPath string
	var skipExisting, ignoreUnknown bool
	fs.StringVar(&configPath, "config", "", "Deployment config (YAML)")
	fs.StringVar(&inPath, "in", "", "Bundle file to read")
	fs.BoolVar(&skipExisting, "skip-existing", false, "Leave accounts that already exist untouched")
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Ignore unknown bundle entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if inPath == "" {
		fmt.Fprintln(errOut, "usage: bf-issuer ledger import --config <file> --in <bundle.tar> [--skip-existing]")
		return 2
	}

	d, err := openDeployment(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "open deployment: %v\n", err)
		return 1
	}
	defer d.Close()

	f, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(errOut, "open --in: %v\n", err)
		return 1
	}
	defer f.Close()
	n, err := bundle.Import(context.Background(), f, d.store, bundle.ImportOptions{
		SkipExisting:  skipExisting,
		IgnoreUnknown: ignoreUnknown,
	})
	if err != nil {
		fmt.Fprintf(errOut, "ledger import: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "imported %d accounts\n", n)
	return 0
}

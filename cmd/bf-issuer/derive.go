package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dikanevn/bf/derive"
)

func cmdDerive(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer derive <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: authority, record")
		return 2
	}
	switch args[0] {
	case "authority":
		fs := flag.NewFlagSet("derive authority", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var program string
		fs.StringVar(&program, "program", "", "Program id (base58)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		prog, err := parseKey("program", program)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		d, err := derive.New(prog).Authority()
		if err != nil {
			fmt.Fprintf(errOut, "derive: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\tbump=%d\n", d.Address.ToBase58(), d.Bump)
		return 0
	case "record":
		fs := flag.NewFlagSet("derive record", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var program, schema, claimant string
		var round int
		fs.StringVar(&program, "program", "", "Program id (base58)")
		fs.StringVar(&schema, "schema", derive.SchemaReference.Name, "Record schema: flag, reference or minted")
		fs.IntVar(&round, "round", -1, "Round id")
		fs.StringVar(&claimant, "claimant", "", "Claimant identity (base58)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		prog, err := parseKey("program", program)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		id, err := parseKey("claimant", claimant)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		r, err := roundFlag(round)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		s, err := derive.SchemaByName(schema)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		d, err := derive.New(prog).Record(s, r, id)
		if err != nil {
			fmt.Fprintf(errOut, "derive: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\tbump=%d\n", d.Address.ToBase58(), d.Bump)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown derive subcommand: %s\n", args[0])
		return 2
	}
}

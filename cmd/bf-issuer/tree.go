package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
)

func cmdTree(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer tree <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: build, proof")
		return 2
	}
	switch args[0] {
	case "build":
		fs := flag.NewFlagSet("tree build", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: bf-issuer tree build <allowlist>")
			return 2
		}
		members, err := rounds.LoadAllowlist(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read allowlist: %v\n", err)
			return 1
		}
		tree, err := rounds.Tree(members)
		if err != nil {
			fmt.Fprintf(errOut, "build tree: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "root: %s\n", tree.Root())
		_, _ = fmt.Fprintf(out, "leaves: %d\n", len(members))
		_, _ = fmt.Fprintf(out, "depth: %d\n", tree.Depth())
		return 0
	case "proof":
		fs := flag.NewFlagSet("tree proof", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var identity string
		var position int
		fs.StringVar(&identity, "identity", "", "Member identity (base58)")
		fs.IntVar(&position, "position", -1, "Member position for positioned allowlists")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 || identity == "" {
			fmt.Fprintln(errOut, "usage: bf-issuer tree proof --identity <base58> [--position <n>] <allowlist>")
			return 2
		}
		id, err := parseKey("identity", identity)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		pos, err := positionFlag(position)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		proof, err := allowlistProof(fs.Arg(0), issuance.LeafFor(id, pos))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, h := range proof {
			_, _ = fmt.Fprintln(out, h)
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown tree subcommand: %s\n", args[0])
		return 2
	}
}

func allowlistProof(path string, leaf merkle.Hash) (merkle.Proof, error) {
	members, err := rounds.LoadAllowlist(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	tree, err := rounds.Tree(members)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	proof, err := tree.Proof(leaf)
	if err != nil {
		return nil, fmt.Errorf("proof: %w", err)
	}
	return proof, nil
}

func cmdProof(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "verify" {
		fmt.Fprintln(errOut, "usage: bf-issuer proof verify --root <hex> --identity <base58> [--position <n>] [--proof <hex,hex,...>]")
		return 2
	}
	fs := flag.NewFlagSet("proof verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var rootHex, identity, proofList string
	var position int
	fs.StringVar(&rootHex, "root", "", "Round root (hex)")
	fs.StringVar(&identity, "identity", "", "Member identity (base58)")
	fs.IntVar(&position, "position", -1, "Member position for positioned roots")
	fs.StringVar(&proofList, "proof", "", "Comma-separated sibling hashes, leaf side first")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if rootHex == "" || identity == "" {
		fmt.Fprintln(errOut, "usage: bf-issuer proof verify --root <hex> --identity <base58> [--position <n>] [--proof <hex,hex,...>]")
		return 2
	}
	root, err := merkle.ParseHash(rootHex)
	if err != nil {
		fmt.Fprintf(errOut, "--root: %v\n", err)
		return 2
	}
	id, err := parseKey("identity", identity)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	pos, err := positionFlag(position)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	var proof merkle.Proof
	for i, s := range splitList(proofList) {
		h, err := merkle.ParseHash(s)
		if err != nil {
			fmt.Fprintf(errOut, "--proof[%d]: %v\n", i, err)
			return 2
		}
		proof = append(proof, h)
	}
	if !merkle.Verify(issuance.LeafFor(id, pos), proof, root) {
		fmt.Fprintln(errOut, "invalid: proof does not reach root")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

// roots_gen builds a rounds YAML from allowlist files, one round per file in
// argument order.
//
//	go run ./internal/tools/roots_gen round0.txt round1.txt > rounds.yaml
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: roots_gen <allowlist> [<allowlist> ...]")
		os.Exit(2)
	}

	roots := make([]merkle.Hash, 0, len(os.Args)-1)
	notes := map[uint]string{}
	for i, path := range os.Args[1:] {
		members, err := rounds.LoadAllowlist(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		tree, err := rounds.Tree(members)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		roots = append(roots, tree.Root())
		notes[uint(i)] = fmt.Sprintf("%s (%d members)", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), len(members))
	}

	reg, err := rounds.New(roots)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out, err := rounds.Marshal(reg, notes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		os.Exit(1)
	}
}

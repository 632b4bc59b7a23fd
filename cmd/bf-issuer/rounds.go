package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dikanevn/bf/keys"
	"github.com/dikanevn/bf/rounds"
)

type multiString []string

func (m *multiString) String() string { return strings.Join(*m, ",") }

func (m *multiString) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func loadRounds(path string) (*rounds.Registry, error) {
	if path == "" {
		return rounds.Default(), nil
	}
	return rounds.LoadFile(path)
}

func cmdRounds(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer rounds <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: fingerprint, sign, verify")
		return 2
	}
	switch args[0] {
	case "fingerprint":
		fs := flag.NewFlagSet("rounds fingerprint", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var file string
		fs.StringVar(&file, "file", "", "Rounds YAML; the built-in table when empty")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		reg, err := loadRounds(file)
		if err != nil {
			fmt.Fprintf(errOut, "load rounds: %v\n", err)
			return 1
		}
		fp, err := reg.Fingerprint()
		if err != nil {
			fmt.Fprintf(errOut, "fingerprint: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, fp)
		return 0
	case "sign":
		return cmdRoundsSign(args[1:], out, errOut)
	case "verify":
		return cmdRoundsVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown rounds subcommand: %s\n", args[0])
		return 2
	}
}

func cmdRoundsSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("rounds sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var program, file, manifestIn, outPath, alg, hashAlg string
	var seedHex, signerName, signerRole, keyFile string
	fs.StringVar(&program, "program", "", "Program id (base58)")
	fs.StringVar(&file, "file", "", "Rounds YAML; the built-in table when empty")
	fs.StringVar(&manifestIn, "manifest", "", "Existing manifest to add a signature to")
	fs.StringVar(&outPath, "out", "", "Write the manifest here instead of stdout")
	fs.StringVar(&alg, "alg", "ed25519", "Signature algorithm: ed25519 or dilithium3")
	fs.StringVar(&hashAlg, "hash", "sha256", "Digest: sha256, sha512 or sha3-256")
	fs.StringVar(&seedHex, "seed-hex", "", "32-byte signing seed (hex)")
	fs.StringVar(&signerName, "signer", "", "Stored key name")
	fs.StringVar(&signerRole, "signer-role", "", "Role of the stored key")
	fs.StringVar(&keyFile, "key-file", "", "File holding a hex seed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prog, err := parseKey("program", program)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	ks, err := keys.Open(os.Getenv("BF_KEYS_DIR"))
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.Resolve(seedHex, keyFile, signerName, signerRole)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	reg, err := loadRounds(file)
	if err != nil {
		fmt.Fprintf(errOut, "load rounds: %v\n", err)
		return 1
	}
	var m *rounds.Manifest
	if manifestIn != "" {
		b, err := os.ReadFile(manifestIn)
		if err != nil {
			fmt.Fprintf(errOut, "read --manifest: %v\n", err)
			return 1
		}
		if m, err = rounds.ParseManifest(b); err != nil {
			fmt.Fprintf(errOut, "invalid manifest: %v\n", err)
			return 1
		}
		fresh, err := rounds.NewManifest(prog, reg)
		if err != nil {
			fmt.Fprintf(errOut, "manifest: %v\n", err)
			return 1
		}
		if m.Program != fresh.Program || m.Fingerprint != fresh.Fingerprint || m.Rounds != fresh.Rounds {
			fmt.Fprintln(errOut, "--manifest describes a different table or program")
			return 1
		}
	} else if m, err = rounds.NewManifest(prog, reg); err != nil {
		fmt.Fprintf(errOut, "manifest: %v\n", err)
		return 1
	}

	switch alg {
	case "ed25519":
		err = m.SignEd25519(ed25519.NewKeyFromSeed(seed), hashAlg)
	case "dilithium3":
		pk, sk, derr := keys.Dilithium3FromSeed(seed)
		if derr != nil {
			err = derr
			break
		}
		err = m.SignDilithium3(pk, sk, hashAlg)
	default:
		fmt.Fprintf(errOut, "unsupported --alg %q\n", alg)
		return 2
	}
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}

	b, err := m.Marshal()
	if err != nil {
		fmt.Fprintf(errOut, "marshal manifest: %v\n", err)
		return 1
	}
	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		fmt.Fprintf(errOut, "write --out: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "signer: %s\n", m.Signatures[len(m.Signatures)-1].Signer)
	return 0
}

func cmdRoundsVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("rounds verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var program, file, manifestPath string
	var trusted multiString
	fs.StringVar(&program, "program", "", "Program id (base58)")
	fs.StringVar(&file, "file", "", "Rounds YAML; the built-in table when empty")
	fs.StringVar(&manifestPath, "manifest", "", "Manifest file")
	fs.Var(&trusted, "trusted", "Trusted signer key (repeatable); any signer when omitted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prog, err := parseKey("program", program)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if manifestPath == "" {
		fmt.Fprintln(errOut, "usage: bf-issuer rounds verify --program <base58> --manifest <file> [--file <rounds.yaml>] [--trusted <signer> ...]")
		return 2
	}
	reg, err := loadRounds(file)
	if err != nil {
		fmt.Fprintf(errOut, "load rounds: %v\n", err)
		return 1
	}
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --manifest: %v\n", err)
		return 1
	}
	m, err := rounds.ParseManifest(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid manifest: %v\n", err)
		return 1
	}
	if err := m.Verify(prog, reg, trusted...); err != nil {
		fmt.Fprintf(errOut, "invalid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

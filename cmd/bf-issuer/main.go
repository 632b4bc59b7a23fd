package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/config"
	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/logging"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/storeregistry"

	_ "github.com/dikanevn/bf/storage/badgerstore"
	_ "github.com/dikanevn/bf/storage/grpcstore"
	_ "github.com/dikanevn/bf/storage/localfs"
	_ "github.com/dikanevn/bf/storage/memstore"
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
	case "backends":
		return cmdBackends(args[1:], out, errOut)
	case "derive":
		return cmdDerive(args[1:], out, errOut)
	case "issue":
		return cmdIssue(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "ledger":
		return cmdLedger(args[1:], out, errOut)
	case "plan":
		return cmdPlan(args[1:], out, errOut)
	case "proof":
		return cmdProof(args[1:], out, errOut)
	case "reclaim":
		return cmdReclaim(args[1:], out, errOut)
	case "rounds":
		return cmdRounds(args[1:], out, errOut)
	case "tree":
		return cmdTree(args[1:], out, errOut)
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
	fmt.Fprintln(w, "bf-issuer: allowlist-gated issuance tooling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bf-issuer tree build <allowlist>")
	fmt.Fprintln(w, "  bf-issuer tree proof --identity <base58> [--position <n>] <allowlist>")
	fmt.Fprintln(w, "  bf-issuer proof verify --root <hex> --identity <base58> [--position <n>] [--proof <hex,hex,...>]")
	fmt.Fprintln(w, "  bf-issuer derive authority --program <base58>")
	fmt.Fprintln(w, "  bf-issuer derive record --program <base58> --schema <flag|reference|minted> --round <n> --claimant <base58>")
	fmt.Fprintln(w, "  bf-issuer issue --config <file> --variant <name> --claimant <base58> --round <n> [--mint <base58>] [--position <n>] (--proof <hex,...> | --allowlist <file>) [--fund <lamports>]")
	fmt.Fprintln(w, "  bf-issuer plan --config <file> --variant <name> --claimant <base58> --round <n> [--mint <base58>] [--position <n>] (--proof <hex,...> | --allowlist <file>) [--payer <base58>] [--blockhash <hash>]")
	fmt.Fprintln(w, "  bf-issuer reclaim --config <file> --schema <name> --round <n> --claimant <base58> [--fund <lamports>]")
	fmt.Fprintln(w, "  bf-issuer rounds fingerprint [--file <rounds.yaml>]")
	fmt.Fprintln(w, "  bf-issuer rounds sign --program <base58> [--file <rounds.yaml>] [--manifest <in>] [--out <file>] [--alg ed25519|dilithium3] [--hash sha256] (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>)")
	fmt.Fprintln(w, "  bf-issuer rounds verify --program <base58> --manifest <file> [--file <rounds.yaml>] [--trusted <signer> ...]")
	fmt.Fprintln(w, "  bf-issuer ledger show --config <file> --schema <name> --round <n> --claimant <base58>")
	fmt.Fprintln(w, "  bf-issuer ledger export --config <file> --out <bundle.tar> [--owner <base58>] [--index]")
	fmt.Fprintln(w, "  bf-issuer ledger import --config <file> --in <bundle.tar> [--skip-existing]")
	fmt.Fprintln(w, "  bf-issuer key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  bf-issuer key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  bf-issuer key list")
	fmt.Fprintln(w, "  bf-issuer key show --name <name> [--role <role>]")
	fmt.Fprintln(w, "  bf-issuer backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - allowlists hold one base58 identity per line, optionally followed by a position")
	fmt.Fprintln(w, "  - issue and reclaim run against a simulated host over the configured store")
	fmt.Fprintln(w, "  - plan prints the Solana instructions an attempt would invoke without executing them")
	fmt.Fprintln(w, "  - keys are stored under ~/.bf/keys/<name> (0600 seed files); override with BF_KEYS_DIR")
}

func cmdBackends(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(errOut, "usage: bf-issuer backends")
		return 2
	}
	for _, b := range storeregistry.List(storeregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}

// deployment is an opened config: logger, store and pipeline.
type deployment struct {
	cfg      config.Config
	logger   *zap.Logger
	store    storage.Store
	pipeline *issuance.Pipeline

	closers []func() error
}

func openDeployment(path string) (*deployment, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	d := &deployment{cfg: cfg, logger: logger}
	d.closers = append(d.closers, func() error {
		_ = logger.Sync()
		return logCloser.Close()
	})

	store, closeStore, err := cfg.Storage.Open(storeregistry.UsageCLI)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.store = store
	if closeStore != nil {
		d.closers = append(d.closers, closeStore)
	}

	if d.pipeline, err = cfg.Pipeline(logger); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *deployment) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
	d.closers = nil
}

func parseKey(flagName, s string) (common.PublicKey, error) {
	if s == "" {
		return common.PublicKey{}, fmt.Errorf("--%s is required", flagName)
	}
	a, err := storage.ParseAddress(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("--%s: %w", flagName, err)
	}
	return common.PublicKey(a), nil
}

// positionFlag converts the -1 sentinel used by --position.
func positionFlag(n int) (*uint16, error) {
	if n < 0 {
		return nil, nil
	}
	if n > 0xffff {
		return nil, fmt.Errorf("--position %d out of range", n)
	}
	p := uint16(n)
	return &p, nil
}

func roundFlag(n int) (uint8, error) {
	if n < 0 || n > 0xff {
		return 0, fmt.Errorf("--round %d out of range", n)
	}
	return uint8(n), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

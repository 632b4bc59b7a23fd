package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/model"
	"github.com/dikanevn/bf/simhost"
	"github.com/dikanevn/bf/solanaix"
)

// defaultFunding is the simulated claimant balance: enough for any record
// deposit.
const defaultFunding = 1_000_000_000

type claimFlags struct {
	variant   string
	claimant  string
	mint      string
	round     int
	position  int
	proof     string
	allowlist string
}

func (c *claimFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.variant, "variant", "", "Issuance variant name")
	fs.StringVar(&c.claimant, "claimant", "", "Claimant identity (base58)")
	fs.StringVar(&c.mint, "mint", "", "Mint address (base58); a fresh one when empty")
	fs.IntVar(&c.round, "round", -1, "Round id")
	fs.IntVar(&c.position, "position", -1, "Allowlist position for positioned variants")
	fs.StringVar(&c.proof, "proof", "", "Comma-separated sibling hashes, leaf side first")
	fs.StringVar(&c.allowlist, "allowlist", "", "Allowlist file to compute the proof from")
}

// request validates the flags and resolves the proof.
func (c *claimFlags) request() (model.IssueRequest, error) {
	if c.variant == "" {
		return model.IssueRequest{}, errors.New("--variant is required")
	}
	v, ok := issuance.VariantByName(c.variant)
	if !ok {
		return model.IssueRequest{}, fmt.Errorf("unknown variant %q", c.variant)
	}
	claimant, err := parseKey("claimant", c.claimant)
	if err != nil {
		return model.IssueRequest{}, err
	}
	round, err := roundFlag(c.round)
	if err != nil {
		return model.IssueRequest{}, err
	}
	pos, err := positionFlag(c.position)
	if err != nil {
		return model.IssueRequest{}, err
	}
	if c.proof != "" && c.allowlist != "" {
		return model.IssueRequest{}, errors.New("--proof and --allowlist are exclusive")
	}

	req := model.IssueRequest{
		Variant:  v.Name,
		Claimant: claimant.ToBase58(),
		Mint:     c.mint,
		Round:    round,
		Position: pos,
		Proof:    splitList(c.proof),
	}
	if req.Mint == "" {
		req.Mint = types.NewAccount().PublicKey.ToBase58()
	}
	if c.allowlist != "" {
		leafPos := pos
		if v.Leaf != issuance.LeafPositioned {
			leafPos = nil
		}
		proof, err := allowlistProof(c.allowlist, issuance.LeafFor(claimant, leafPos))
		if err != nil {
			return model.IssueRequest{}, err
		}
		req.Proof = []string{}
		for _, h := range proof {
			req.Proof = append(req.Proof, h.String())
		}
	}
	return req, nil
}

// simulate builds a simulated host over the deployment's store with the
// collection seeded and claimant funded.
func (d *deployment) simulate(claimant common.PublicKey, funding uint64) *simhost.Host {
	host := simhost.New(simhost.WithStore(d.store), simhost.WithLogger(d.logger))
	if coll := d.pipeline.Collection(); coll != nil {
		host.SeedCollection(*coll, d.pipeline.Authority(), d.pipeline.Content())
	}
	host.Fund(claimant, funding)
	return host
}

func cmdIssue(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath string
	var funding uint64
	var claim claimFlags
	fs.StringVar(&configPath, "config", "", "Deployment config (YAML)")
	fs.Uint64Var(&funding, "fund", defaultFunding, "Simulated claimant balance in lamports")
	claim.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	req, err := claim.request()
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

	claimant, _ := parseKey("claimant", req.Claimant)
	host := d.simulate(claimant, funding)
	disp := issuance.NewDispatcher(d.pipeline, host,
		issuance.WithMode(d.cfg.Mode()),
		issuance.WithLogger(d.logger),
	)
	rc, err := model.Issue(context.Background(), disp, req)
	if rc != nil {
		if werr := writeJSON(out, rc); werr != nil {
			fmt.Fprintf(errOut, "write receipt: %v\n", werr)
			return 1
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "issue: %v\n", err)
		return 1
	}
	return 0
}

func cmdPlan(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, payer, blockhash string
	var claim claimFlags
	fs.StringVar(&configPath, "config", "", "Deployment config (YAML)")
	fs.StringVar(&payer, "payer", "", "Fee payer (base58); defaults to the claimant")
	fs.StringVar(&blockhash, "blockhash", "", "Recent blockhash; when set the serialized message is printed")
	claim.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	req, err := claim.request()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if payer == "" {
		payer = req.Claimant
	}
	payerKey, err := parseKey("payer", payer)
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

	planner := &solanaix.Planner{Program: d.cfg.ProgramID(), Payer: payerKey, Base: d.store}
	disp := issuance.NewDispatcher(d.pipeline, planner,
		issuance.WithMode(d.cfg.Mode()),
		issuance.WithLogger(d.logger),
	)
	if _, err := model.Issue(context.Background(), disp, req); err != nil {
		fmt.Fprintf(errOut, "plan: %v\n", err)
		return 1
	}
	plan := planner.Last()
	id, err := plan.ID()
	if err != nil {
		fmt.Fprintf(errOut, "plan id: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "plan: %s\n", id)
	for i, name := range plan.Names() {
		_, _ = fmt.Fprintf(out, "%2d %s\n", i, name)
	}
	if blockhash != "" {
		msg := plan.Message(blockhash)
		raw, err := msg.Serialize()
		if err != nil {
			fmt.Fprintf(errOut, "serialize message: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "message: %s\n", base64.StdEncoding.EncodeToString(raw))
	}
	return 0
}

func schemaID(s derive.Schema) byte {
	for i, known := range derive.Schemas() {
		if known == s {
			return byte(i + 1)
		}
	}
	return 0
}

func cmdReclaim(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("reclaim", flag.ContinueOnError)
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

	d, err := openDeployment(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "open deployment: %v\n", err)
		return 1
	}
	defer d.Close()

	host := d.simulate(id, 0)
	disp := issuance.NewDispatcher(d.pipeline, host,
		issuance.WithMode(d.cfg.Mode()),
		issuance.WithLogger(d.logger),
	)
	inv := issuance.Invocation{Signers: []common.PublicKey{id}, Claimant: id}
	res, err := disp.Dispatch(context.Background(), []byte{issuance.OpReclaim, schemaID(s), r}, inv)
	if err != nil {
		fmt.Fprintf(errOut, "reclaim: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "refund: %d\n", res.Refund)
	return 0
}

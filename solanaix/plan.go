// Package solanaix turns an issuance attempt into the Solana instructions a
// deployed program would invoke, without touching a cluster.
package solanaix

import (
	"bytes"
	"encoding/binary"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/ipfs/go-cid"

	"github.com/dikanevn/bf/cidutil"
)

// Step is one planned instruction.
type Step struct {
	Name        string
	Instruction types.Instruction
	// SignerSeeds is set when the program signs the instruction with a
	// derived address.
	SignerSeeds [][]byte
}

// Plan is the ordered instruction list of one attempt.
type Plan struct {
	Program  common.PublicKey
	FeePayer common.PublicKey
	Steps    []Step
}

func (p *Plan) add(name string, ix types.Instruction, seeds [][]byte) {
	p.Steps = append(p.Steps, Step{Name: name, Instruction: ix, SignerSeeds: seeds})
}

func (p *Plan) Instructions() []types.Instruction {
	out := make([]types.Instruction, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Instruction)
	}
	return out
}

// Names lists step names in order.
func (p *Plan) Names() []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Name)
	}
	return out
}

// Message assembles the unsigned transaction message.
func (p *Plan) Message(recentBlockhash string) types.Message {
	return types.NewMessage(types.NewMessageParam{
		FeePayer:        p.FeePayer,
		RecentBlockhash: recentBlockhash,
		Instructions:    p.Instructions(),
	})
}

// Bytes is a canonical encoding of the plan: program, fee payer, then each
// instruction's program id, account metas and data, length-prefixed.
func (p *Plan) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(p.Program[:])
	buf.Write(p.FeePayer[:])
	u32 := func(n int) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	}
	u32(len(p.Steps))
	for _, s := range p.Steps {
		ix := s.Instruction
		buf.Write(ix.ProgramID[:])
		u32(len(ix.Accounts))
		for _, a := range ix.Accounts {
			buf.Write(a.PubKey[:])
			var flags byte
			if a.IsSigner {
				flags |= 1
			}
			if a.IsWritable {
				flags |= 2
			}
			buf.WriteByte(flags)
		}
		u32(len(ix.Data))
		buf.Write(ix.Data)
		u32(len(s.SignerSeeds))
		for _, seed := range s.SignerSeeds {
			u32(len(seed))
			buf.Write(seed)
		}
	}
	return buf.Bytes()
}

// ID names the plan by content.
func (p *Plan) ID() (cid.Cid, error) {
	return cidutil.Sum(p.Bytes())
}

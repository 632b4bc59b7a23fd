package solanaix

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"

	"github.com/dikanevn/bf/collab"
)

// Token metadata program instruction discriminators not covered by the SDK
// builders used here.
const (
	ixUpdateMetadataAccountV2 uint8 = 15
	ixVerifyCollection        uint8 = 18
)

type creatorWire struct {
	Address  common.PublicKey
	Verified bool
	Share    uint8
}

type collectionWire struct {
	Verified bool
	Key      common.PublicKey
}

type usesWire struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

type dataV2Wire struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]creatorWire
	Collection           *collectionWire
	Uses                 *usesWire
}

type updateMetadataV2Wire struct {
	Instruction         uint8
	Data                *dataV2Wire
	NewUpdateAuthority  *common.PublicKey
	PrimarySaleHappened *bool
	IsMutable           *bool
}

// updateMetadataAccountV2 builds UpdateMetadataAccountV2. Content and creator
// are only written when set.
func updateMetadataAccountV2(metadata, updateAuthority common.PublicKey, p collab.UpdateParams, collection *common.PublicKey) (types.Instruction, error) {
	w := updateMetadataV2Wire{
		Instruction:        ixUpdateMetadataAccountV2,
		NewUpdateAuthority: p.NewUpdateAuthority,
	}
	if p.Content != nil {
		d := &dataV2Wire{
			Name:                 p.Content.Name,
			Symbol:               p.Content.Symbol,
			URI:                  p.Content.URI,
			SellerFeeBasisPoints: p.Content.SellerFeeBps,
		}
		if p.Creator != nil {
			d.Creators = &[]creatorWire{{Address: *p.Creator, Share: 100}}
		}
		if collection != nil {
			d.Collection = &collectionWire{Key: *collection}
		}
		w.Data = d
	}
	data, err := borsh.Serialize(w)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("solanaix: encode update metadata: %w", err)
	}
	return types.Instruction{
		ProgramID: common.MetaplexTokenMetaProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: metadata, IsSigner: false, IsWritable: true},
			{PubKey: updateAuthority, IsSigner: true, IsWritable: false},
		},
		Data: data,
	}, nil
}

// verifyCollection builds VerifyCollection for an item already declared in
// the collection.
func verifyCollection(metadata, authority, payer, collectionMint, collectionMetadata, collectionEdition common.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: common.MetaplexTokenMetaProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: metadata, IsSigner: false, IsWritable: true},
			{PubKey: authority, IsSigner: true, IsWritable: true},
			{PubKey: payer, IsSigner: true, IsWritable: true},
			{PubKey: collectionMint, IsSigner: false, IsWritable: false},
			{PubKey: collectionMetadata, IsSigner: false, IsWritable: false},
			{PubKey: collectionEdition, IsSigner: false, IsWritable: false},
		},
		Data: []byte{ixVerifyCollection},
	}
}

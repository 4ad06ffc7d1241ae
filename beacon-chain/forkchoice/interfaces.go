package forkchoice

import (
	"context"

	types "github.com/prysmaticlabs/eth2-types"

	"github.com/mbaxter/artemis/beacon-chain/forkchoice/protoarray"
)

// ForkChoicer represents the full fork choice interface composed of all the sub-interfaces.
type ForkChoicer interface {
	HeadRetriever        // to compute head.
	BlockProcessor       // to track new block for fork choice.
	AttestationProcessor // to track new attestation for fork choice.
	Pruner               // to clean old data for fork choice.
	Getter               // to retrieve fork choice information.
}

// HeadRetriever retrieves head root of the current chain.
type HeadRetriever interface {
	Head(context.Context, types.Epoch, [32]byte, []uint64, types.Epoch) ([32]byte, error)
}

// BlockProcessor processes the block that's used for accounting fork choice.
type BlockProcessor interface {
	ProcessBlock(context.Context, types.Slot, [32]byte, [32]byte, [32]byte, types.Epoch, types.Epoch) error
}

// AttestationProcessor processes the attestation that's used for accounting fork choice.
type AttestationProcessor interface {
	ProcessAttestation(context.Context, []uint64, [32]byte, types.Epoch)
}

// Pruner prunes the fork choice upon new finalization. This is used to keep fork choice sane.
type Pruner interface {
	Prune(context.Context, [32]byte, types.Epoch) error
}

// Getter returns fork choice related information.
type Getter interface {
	Nodes() []*protoarray.Node
	Node([32]byte) *protoarray.Node
	NodeCount() int
	HasNode([32]byte) bool
	HasParent([32]byte) bool
	Weight([32]byte) (uint64, error)
	IsCanonical([32]byte) bool
	AncestorRoot(context.Context, [32]byte, types.Slot) ([32]byte, error)
	JustifiedEpoch() types.Epoch
	FinalizedEpoch() types.Epoch
	FinalizedRoot() [32]byte
}

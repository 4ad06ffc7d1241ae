package protoarray

import (
	"context"
	"testing"

	types "github.com/prysmaticlabs/eth2-types"

	"github.com/mbaxter/artemis/testing/assert"
	"github.com/mbaxter/artemis/testing/require"
)

func TestStore_LeadsToViableHead(t *testing.T) {
	tests := []struct {
		n              *Node
		justifiedEpoch types.Epoch
		finalizedEpoch types.Epoch
		want           bool
	}{
		{&Node{bestDescendant: NonExistentNode}, 0, 0, true},
		{&Node{bestDescendant: NonExistentNode}, 1, 0, false},
		{&Node{bestDescendant: NonExistentNode}, 0, 1, false},
		{&Node{bestDescendant: NonExistentNode, finalizedEpoch: 1, justifiedEpoch: 1}, 1, 1, true},
		{&Node{bestDescendant: NonExistentNode, finalizedEpoch: 1, justifiedEpoch: 1}, 2, 2, false},
		{&Node{bestDescendant: NonExistentNode, finalizedEpoch: 3, justifiedEpoch: 4}, 4, 3, true},
	}
	for _, tc := range tests {
		s := &Store{
			justifiedEpoch: tc.justifiedEpoch,
			finalizedEpoch: tc.finalizedEpoch,
			nodes:          []*Node{tc.n},
		}
		got, err := s.leadsToViableHead(context.Background(), tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestStore_ViableForHead(t *testing.T) {
	tests := []struct {
		n              *Node
		justifiedEpoch types.Epoch
		finalizedEpoch types.Epoch
		want           bool
	}{
		{&Node{}, 0, 0, true},
		{&Node{}, 1, 0, false},
		{&Node{}, 0, 1, false},
		{&Node{finalizedEpoch: 1, justifiedEpoch: 1}, 1, 1, true},
		{&Node{finalizedEpoch: 1, justifiedEpoch: 1}, 2, 2, false},
		{&Node{finalizedEpoch: 3, justifiedEpoch: 4}, 4, 3, true},
	}
	for _, tc := range tests {
		s := &Store{
			justifiedEpoch: tc.justifiedEpoch,
			finalizedEpoch: tc.finalizedEpoch,
		}
		assert.Equal(t, tc.want, s.viableForHead(context.Background(), tc.n))
	}
}

func TestForkChoice_NodeAndNodeCount(t *testing.T) {
	f := setup(1, 1)
	ctx := context.Background()

	require.NoError(t, f.ProcessBlock(ctx, 100, indexToHash(1), [32]byte{}, [32]byte{'s'}, 1, 1))
	require.Equal(t, 2, f.NodeCount())

	n := f.Node(indexToHash(1))
	require.NotNil(t, n)
	assert.Equal(t, types.Slot(100), n.Slot())
	assert.Equal(t, indexToHash(1), n.Root())
	assert.Equal(t, [32]byte{}, n.ParentRoot())
	assert.Equal(t, [32]byte{'s'}, n.StateRoot())
	assert.Equal(t, types.Epoch(1), n.JustifiedEpoch())
	assert.Equal(t, types.Epoch(1), n.FinalizedEpoch())
	assert.Equal(t, uint64(0), n.Weight())

	// Unknown root returns nil.
	var unknown *Node
	assert.Equal(t, unknown, f.Node([32]byte{'z'}))
}

func TestForkChoice_Nodes_ReturnsCopy(t *testing.T) {
	f := setup(1, 1)
	ctx := context.Background()

	require.NoError(t, f.ProcessBlock(ctx, 100, indexToHash(1), [32]byte{}, [32]byte{}, 1, 1))
	nodes := f.Nodes()
	require.Equal(t, 2, len(nodes))

	// Mutating the returned nodes must not reach into the store.
	nodes[1].weight = 1000000
	w, err := f.Weight(indexToHash(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), w)
}

func TestForkChoice_HasParent(t *testing.T) {
	f := setup(1, 1)
	ctx := context.Background()

	require.NoError(t, f.ProcessBlock(ctx, 100, indexToHash(1), [32]byte{}, [32]byte{}, 1, 1))
	// The anchor has no parent in the store.
	assert.Equal(t, false, f.HasParent([32]byte{}))
	assert.Equal(t, true, f.HasParent(indexToHash(1)))
	assert.Equal(t, false, f.HasParent(indexToHash(2)))
}

func TestForkChoice_Weight_UnknownRoot(t *testing.T) {
	f := setup(1, 1)

	_, err := f.Weight([32]byte{'z'})
	assert.ErrorContains(t, errNilNode.Error(), err)
}

func TestForkChoice_IsCanonical(t *testing.T) {
	balances := make([]uint64, 16)
	f := setup(1, 1)
	ctx := context.Background()

	// Two competing branches, a single head computation marks the winning
	// branch canonical. A vote on block 3 swings the head to its branch.
	require.NoError(t, f.ProcessBlock(ctx, 1, indexToHash(1), [32]byte{}, [32]byte{}, 1, 1))
	require.NoError(t, f.ProcessBlock(ctx, 2, indexToHash(2), [32]byte{}, [32]byte{}, 1, 1))
	require.NoError(t, f.ProcessBlock(ctx, 3, indexToHash(3), indexToHash(1), [32]byte{}, 1, 1))

	balances[0] = 10
	f.ProcessAttestation(ctx, []uint64{0}, indexToHash(3), 2)

	r, err := f.Head(ctx, 1, [32]byte{}, balances, 1)
	require.NoError(t, err)
	assert.Equal(t, indexToHash(3), r)

	assert.Equal(t, true, f.IsCanonical([32]byte{}))
	assert.Equal(t, true, f.IsCanonical(indexToHash(1)))
	assert.Equal(t, false, f.IsCanonical(indexToHash(2)))
	assert.Equal(t, true, f.IsCanonical(indexToHash(3)))
}

func TestForkChoice_AncestorRoot(t *testing.T) {
	f := setup(1, 1)
	ctx := context.Background()

	require.NoError(t, f.ProcessBlock(ctx, 1, indexToHash(1), [32]byte{}, [32]byte{}, 1, 1))
	require.NoError(t, f.ProcessBlock(ctx, 2, indexToHash(2), indexToHash(1), [32]byte{}, 1, 1))
	require.NoError(t, f.ProcessBlock(ctx, 5, indexToHash(3), indexToHash(2), [32]byte{}, 1, 1))

	r, err := f.AncestorRoot(ctx, indexToHash(3), 2)
	require.NoError(t, err)
	assert.Equal(t, indexToHash(2), r)

	r, err = f.AncestorRoot(ctx, indexToHash(3), 1)
	require.NoError(t, err)
	assert.Equal(t, indexToHash(1), r)

	// The block at the requested slot itself is returned.
	r, err = f.AncestorRoot(ctx, indexToHash(2), 2)
	require.NoError(t, err)
	assert.Equal(t, indexToHash(2), r)

	_, err = f.AncestorRoot(ctx, indexToHash(9), 1)
	assert.ErrorContains(t, errNilNode.Error(), err)
}

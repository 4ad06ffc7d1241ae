package protoarray

import (
	"context"
	"testing"

	"github.com/mbaxter/artemis/config/params"
	"github.com/mbaxter/artemis/testing/assert"
	"github.com/mbaxter/artemis/testing/require"
)

func TestComputeDeltas_ZeroHash(t *testing.T) {
	validatorCount := uint64(16)
	balances := make([]uint64, 0)
	votes := make([]Vote, 0)
	blockIndices := make(map[[32]byte]uint64)

	for i := uint64(0); i < validatorCount; i++ {
		blockIndices[indexToHash(i)] = i
		votes = append(votes, Vote{params.BeaconConfig().ZeroHash, params.BeaconConfig().ZeroHash, 0})
		balances = append(balances, 0)
	}

	// Zero hash votes are no votes, they never move weight.
	delta, newVotes, err := computeDeltas(context.Background(), blockIndices, votes, balances, balances)
	require.NoError(t, err)
	assert.Equal(t, int(validatorCount), len(delta))
	for _, d := range delta {
		assert.Equal(t, 0, d)
	}
	for _, v := range newVotes {
		assert.Equal(t, params.BeaconConfig().ZeroHash, v.currentRoot)
	}
}

func TestComputeDeltas_AllVoteTheSame(t *testing.T) {
	validatorCount := uint64(16)
	balance := uint64(32)
	balances := make([]uint64, 0)
	votes := make([]Vote, 0)
	blockIndices := make(map[[32]byte]uint64)

	for i := uint64(0); i < validatorCount; i++ {
		blockIndices[indexToHash(i)] = i
		votes = append(votes, Vote{params.BeaconConfig().ZeroHash, indexToHash(0), 0})
		balances = append(balances, balance)
	}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, balances, balances)
	require.NoError(t, err)

	for i, d := range delta {
		if i == 0 {
			assert.Equal(t, int(balance*validatorCount), d)
		} else {
			assert.Equal(t, 0, d)
		}
	}
}

func TestComputeDeltas_DifferentVotes(t *testing.T) {
	validatorCount := uint64(16)
	balance := uint64(32)
	balances := make([]uint64, 0)
	votes := make([]Vote, 0)
	blockIndices := make(map[[32]byte]uint64)

	// Each validator votes for its own block.
	for i := uint64(0); i < validatorCount; i++ {
		blockIndices[indexToHash(i)] = i
		votes = append(votes, Vote{params.BeaconConfig().ZeroHash, indexToHash(i), 0})
		balances = append(balances, balance)
	}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, balances, balances)
	require.NoError(t, err)

	for _, d := range delta {
		assert.Equal(t, int(balance), d)
	}
}

func TestComputeDeltas_MovingVotes(t *testing.T) {
	validatorCount := uint64(16)
	balance := uint64(32)
	balances := make([]uint64, 0)
	votes := make([]Vote, 0)
	blockIndices := make(map[[32]byte]uint64)

	lastIndex := validatorCount - 1
	for i := uint64(0); i < validatorCount; i++ {
		blockIndices[indexToHash(i)] = i
		// Everyone moves their vote from block 0 to the last block.
		votes = append(votes, Vote{indexToHash(0), indexToHash(lastIndex), 0})
		balances = append(balances, balance)
	}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, balances, balances)
	require.NoError(t, err)

	for i, d := range delta {
		if i == 0 {
			assert.Equal(t, -int(balance*validatorCount), d)
		} else if uint64(i) == lastIndex {
			assert.Equal(t, int(balance*validatorCount), d)
		} else {
			assert.Equal(t, 0, d)
		}
	}
}

func TestComputeDeltas_UnknownNextRootStaysPending(t *testing.T) {
	balance := uint64(32)
	blockIndices := map[[32]byte]uint64{indexToHash(1): 0}

	// A vote to a block that is not in the tree moves no weight and does not
	// rotate, it stays pending until the block arrives.
	votes := []Vote{
		{indexToHash(1), [32]byte{'A'}, 0},
		{params.BeaconConfig().ZeroHash, [32]byte{'A'}, 0},
	}
	balances := []uint64{balance, balance}

	delta, newVotes, err := computeDeltas(context.Background(), blockIndices, votes, balances, balances)
	require.NoError(t, err)
	require.Equal(t, 1, len(delta))
	assert.Equal(t, 0, delta[0])
	assert.Equal(t, indexToHash(1), newVotes[0].currentRoot)
	assert.Equal(t, params.BeaconConfig().ZeroHash, newVotes[1].currentRoot)

	// The block shows up, the pending votes resolve on the next pass.
	blockIndices[[32]byte{'A'}] = 1
	delta, newVotes, err = computeDeltas(context.Background(), blockIndices, newVotes, balances, balances)
	require.NoError(t, err)
	require.Equal(t, 2, len(delta))
	assert.Equal(t, -int(balance), delta[0])
	assert.Equal(t, 2*int(balance), delta[1])
	assert.Equal(t, [32]byte{'A'}, newVotes[0].currentRoot)
	assert.Equal(t, [32]byte{'A'}, newVotes[1].currentRoot)
}

func TestComputeDeltas_ChangingBalances(t *testing.T) {
	oldBalance := uint64(32)
	newBalance := uint64(16)
	validatorCount := uint64(16)
	balances := make([]uint64, 0)
	votes := make([]Vote, 0)
	blockIndices := make(map[[32]byte]uint64)

	// Everyone already voted block 0 and the vote has not moved, only the
	// balances shrink. The correction applies on the unchanged root.
	for i := uint64(0); i < validatorCount; i++ {
		blockIndices[indexToHash(i)] = i
		votes = append(votes, Vote{indexToHash(0), indexToHash(0), 0})
		balances = append(balances, oldBalance)
	}
	newBalances := make([]uint64, validatorCount)
	for i := range newBalances {
		newBalances[i] = newBalance
	}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, balances, newBalances)
	require.NoError(t, err)

	for i, d := range delta {
		if i == 0 {
			assert.Equal(t, -int((oldBalance-newBalance)*validatorCount), d)
		} else {
			assert.Equal(t, 0, d)
		}
	}
}

func TestComputeDeltas_ValidatorAppears(t *testing.T) {
	balance := uint64(32)
	blockIndices := map[[32]byte]uint64{indexToHash(1): 0, indexToHash(2): 1}

	// Both validators move their vote from block 1 to block 2, the second
	// validator has no balance in the old list.
	votes := []Vote{
		{indexToHash(1), indexToHash(2), 0},
		{indexToHash(1), indexToHash(2), 0},
	}
	oldBalances := []uint64{balance}
	newBalances := []uint64{balance, balance}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, oldBalances, newBalances)
	require.NoError(t, err)
	assert.Equal(t, -int(balance), delta[0])
	assert.Equal(t, 2*int(balance), delta[1])
}

func TestComputeDeltas_ValidatorDisappears(t *testing.T) {
	balance := uint64(32)
	blockIndices := map[[32]byte]uint64{indexToHash(1): 0, indexToHash(2): 1}

	// The second validator drops out of the balance list, its old weight is
	// removed and nothing is added back.
	votes := []Vote{
		{indexToHash(1), indexToHash(2), 0},
		{indexToHash(1), indexToHash(2), 0},
	}
	oldBalances := []uint64{balance, balance}
	newBalances := []uint64{balance}

	delta, _, err := computeDeltas(context.Background(), blockIndices, votes, oldBalances, newBalances)
	require.NoError(t, err)
	assert.Equal(t, -2*int(balance), delta[0])
	assert.Equal(t, int(balance), delta[1])
}

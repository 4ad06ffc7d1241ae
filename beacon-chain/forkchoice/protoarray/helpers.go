package protoarray

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/mbaxter/artemis/config/params"
)

// computeDeltas returns the changes of validator balance changes in a list of deltas.
// The deltas are indexed by the block indices in the fork choice store, they can be
// negative values due to vote changes and balance changes.
// It also returns the updated votes, the vote of a validator commits once its
// pending weight move has been turned into a delta.
func computeDeltas(ctx context.Context, blockIndices map[[32]byte]uint64, votes []Vote, oldBalances, newBalances []uint64) ([]int, []Vote, error) {
	_, span := trace.StartSpan(ctx, "protoArrayForkChoice.computeDeltas")
	defer span.End()

	deltas := make([]int, len(blockIndices))

	for validatorIndex, vote := range votes {
		oldBalance := uint64(0)
		newBalance := uint64(0)

		// Skip if validator has never voted for current root and next root (i.e. if the
		// votes are zero hash aka genesis block), there's nothing to compute.
		if vote.currentRoot == params.BeaconConfig().ZeroHash && vote.nextRoot == params.BeaconConfig().ZeroHash {
			continue
		}

		// If the validator index did not exist in `oldBalances` or `newBalances` list above,
		// the balance is just 0.
		if validatorIndex < len(oldBalances) {
			oldBalance = oldBalances[validatorIndex]
		}
		if validatorIndex < len(newBalances) {
			newBalance = newBalances[validatorIndex]
		}

		// Perform delta only if the validator's balance or vote has changed. A zero
		// hash root means the validator has no vote on that side yet, it never
		// moves weight on the node list.
		if vote.currentRoot != vote.nextRoot || oldBalance != newBalance {
			// A vote for a block the store has not seen stays pending, neither
			// side of the move is applied and the vote does not rotate. Once the
			// block arrives the vote contributes on the next delta pass.
			nextResolvable := vote.nextRoot == params.BeaconConfig().ZeroHash
			if !nextResolvable {
				nextDeltaIndex, ok := blockIndices[vote.nextRoot]
				if ok {
					// Protection against out of bound, the `nextDeltaIndex` which defines
					// the block location in the dag can not exceed the total `deltas` length.
					if nextDeltaIndex >= uint64(len(deltas)) {
						return nil, nil, errInvalidNodeDelta
					}
					deltas[nextDeltaIndex] += int(newBalance)
					nextResolvable = true
				}
			}
			if !nextResolvable {
				continue
			}

			// The current root may have left the store through pruning, its
			// weight went away with the pruned subtree.
			if vote.currentRoot != params.BeaconConfig().ZeroHash {
				currentDeltaIndex, ok := blockIndices[vote.currentRoot]
				if ok {
					// Protection against out of bound (same as above).
					if currentDeltaIndex >= uint64(len(deltas)) {
						return nil, nil, errInvalidNodeDelta
					}
					deltas[currentDeltaIndex] -= int(oldBalance)
				}
			}
		}

		// Rotate the validator vote.
		vote.currentRoot = vote.nextRoot
		votes[validatorIndex] = vote
	}

	return deltas, votes, nil
}

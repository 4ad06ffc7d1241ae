package protoarray

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/eth2-types"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/mbaxter/artemis/config/params"
	"github.com/mbaxter/artemis/encoding/bytesutil"
)

// New initializes a new fork choice store whose single starting node is the
// latest finalized block.
func New(justifiedEpoch, finalizedEpoch types.Epoch, finalizedRoot [32]byte, finalizedSlot types.Slot, stateRoot [32]byte, pruneThreshold uint64) *ForkChoice {
	s := &Store{
		justifiedEpoch: justifiedEpoch,
		finalizedEpoch: finalizedEpoch,
		finalizedRoot:  finalizedRoot,
		pruneThreshold: pruneThreshold,
		nodes:          make([]*Node, 0),
		nodesIndices:   make(map[[32]byte]uint64),
		canonicalNodes: make(map[[32]byte]bool),
	}

	n := &Node{
		slot:           finalizedSlot,
		root:           finalizedRoot,
		parentRoot:     params.BeaconConfig().ZeroHash,
		stateRoot:      stateRoot,
		parent:         NonExistentNode,
		justifiedEpoch: justifiedEpoch,
		finalizedEpoch: finalizedEpoch,
		bestChild:      NonExistentNode,
		bestDescendant: NonExistentNode,
	}
	s.nodes = append(s.nodes, n)
	s.nodesIndices[finalizedRoot] = 0
	nodeCount.Set(float64(len(s.nodes)))

	b := make([]uint64, 0)
	v := make([]Vote, 0)
	return &ForkChoice{store: s, balances: b, votes: v}
}

// Head returns the head root from fork choice store.
// It firsts computes validator's balance changes then recalculates block tree from leaves to root.
func (f *ForkChoice) Head(ctx context.Context, justifiedEpoch types.Epoch, justifiedRoot [32]byte, justifiedStateBalances []uint64, finalizedEpoch types.Epoch) ([32]byte, error) {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.Head")
	defer span.End()
	calledHeadCount.Inc()

	f.votesLock.Lock()
	defer f.votesLock.Unlock()

	f.store.nodesLock.RLock()
	deltas, newVotes, err := computeDeltas(ctx, f.store.nodesIndices, f.votes, f.balances, justifiedStateBalances)
	f.store.nodesLock.RUnlock()
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not compute deltas")
	}
	f.votes = newVotes

	if err := f.store.applyWeightChanges(ctx, justifiedEpoch, finalizedEpoch, deltas); err != nil {
		return [32]byte{}, errors.Wrap(err, "could not apply score changes")
	}
	f.balances = justifiedStateBalances

	return f.store.head(ctx, justifiedRoot)
}

// ProcessAttestation processes attestation for vote accounting, it iterates around validator indices,
// and update their votes accordingly.
func (f *ForkChoice) ProcessAttestation(ctx context.Context, validatorIndices []uint64, blockRoot [32]byte, targetEpoch types.Epoch) {
	_, span := trace.StartSpan(ctx, "protoArrayForkChoice.ProcessAttestation")
	defer span.End()

	f.votesLock.Lock()
	defer f.votesLock.Unlock()

	for _, index := range validatorIndices {
		// Validator indices will grow the vote cache.
		for index >= uint64(len(f.votes)) {
			f.votes = append(f.votes, Vote{currentRoot: params.BeaconConfig().ZeroHash, nextRoot: params.BeaconConfig().ZeroHash})
		}

		// Vote gets updated only if it has a strictly higher target epoch.
		if targetEpoch > f.votes[index].nextEpoch {
			f.votes[index].nextEpoch = targetEpoch
			f.votes[index].nextRoot = blockRoot
		}
	}

	processedAttestationCount.Inc()
}

// ProcessBlock processes a new block by inserting it to the fork choice store.
func (f *ForkChoice) ProcessBlock(ctx context.Context, slot types.Slot, blockRoot, parentRoot, stateRoot [32]byte, justifiedEpoch, finalizedEpoch types.Epoch) error {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.ProcessBlock")
	defer span.End()

	return f.store.insert(ctx, slot, blockRoot, parentRoot, stateRoot, justifiedEpoch, finalizedEpoch)
}

// Prune prunes the fork choice store with the new finalized root. The store is
// only pruned after a head computation committed the pending vote changes, so
// that deltas on the about to be pruned nodes have already been applied.
func (f *ForkChoice) Prune(ctx context.Context, finalizedRoot [32]byte, finalizedEpoch types.Epoch) error {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.Prune")
	defer span.End()

	f.store.nodesLock.Lock()
	f.store.finalizedEpoch = finalizedEpoch
	f.store.nodesLock.Unlock()

	return f.store.prune(ctx, finalizedRoot)
}

// NewSlot mirrors the clock tick, it only feeds the slot progression gauge.
func (f *ForkChoice) NewSlot(ctx context.Context, slot types.Slot) {
	_, span := trace.StartSpan(ctx, "protoArrayForkChoice.NewSlot")
	defer span.End()

	currentSlotNumber.Set(float64(slot))
}

// JustifiedEpoch of fork choice store.
func (f *ForkChoice) JustifiedEpoch() types.Epoch {
	return f.store.JustifiedEpoch()
}

// FinalizedEpoch of fork choice store.
func (f *ForkChoice) FinalizedEpoch() types.Epoch {
	return f.store.FinalizedEpoch()
}

// FinalizedRoot of fork choice store.
func (f *ForkChoice) FinalizedRoot() [32]byte {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()
	return f.store.finalizedRoot
}

// PruneThreshold of fork choice store.
func (s *Store) PruneThreshold() uint64 {
	return s.pruneThreshold
}

// JustifiedEpoch of fork choice store.
func (s *Store) JustifiedEpoch() types.Epoch {
	return s.justifiedEpoch
}

// FinalizedEpoch of fork choice store.
func (s *Store) FinalizedEpoch() types.Epoch {
	return s.finalizedEpoch
}

// head starts from justified root and then follows the best descendant links
// to find the best block for head.
func (s *Store) head(ctx context.Context, justifiedRoot [32]byte) ([32]byte, error) {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.head")
	defer span.End()

	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	// Justified index has to be valid in node indices map, and can not be out of bound.
	justifiedIndex, ok := s.nodesIndices[justifiedRoot]
	if !ok {
		return [32]byte{}, errUnknownJustifiedRoot
	}
	if justifiedIndex >= uint64(len(s.nodes)) {
		return [32]byte{}, errInvalidJustifiedIndex
	}

	justifiedNode := s.nodes[justifiedIndex]
	bestDescendantIndex := justifiedNode.bestDescendant
	// If the justified node doesn't have a best descendant, the best node is itself.
	if bestDescendantIndex == NonExistentNode {
		bestDescendantIndex = justifiedIndex
	}
	if bestDescendantIndex >= uint64(len(s.nodes)) {
		return [32]byte{}, errInvalidBestDescendantIndex
	}
	bestNode := s.nodes[bestDescendantIndex]

	if !s.viableForHead(ctx, bestNode) {
		return [32]byte{}, errors.Wrapf(errInvalidBestNode,
			"head at slot %d with weight %d is not eligible, finalizedEpoch %d != %d, justifiedEpoch %d != %d",
			bestNode.slot, bestNode.weight/params.BeaconConfig().GweiPerEth,
			bestNode.finalizedEpoch, s.finalizedEpoch, bestNode.justifiedEpoch, s.justifiedEpoch)
	}

	// Update the canonical mapping from the new head back to the root of the store.
	if err := s.updateCanonicalNodes(ctx, bestNode.root); err != nil {
		return [32]byte{}, err
	}

	// Update metrics and tracked head root.
	if bestNode.root != lastHeadRoot {
		headChangesCount.Inc()
		headSlotNumber.Set(float64(bestNode.slot))
		lastHeadRoot = bestNode.root
		log.WithFields(logrus.Fields{
			"slot": bestNode.slot,
			"root": fmt.Sprintf("%#x", bytesutil.Trunc(bestNode.root[:])),
		}).Debug("Head changed")
	}

	return bestNode.root, nil
}

// insert registers a new block node to the fork choice store's node list.
// It then updates the new node's parent with best child and descendant node.
func (s *Store) insert(ctx context.Context,
	slot types.Slot,
	root, parentRoot, stateRoot [32]byte,
	justifiedEpoch, finalizedEpoch types.Epoch) error {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.insert")
	defer span.End()

	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	// Return if the block has been inserted into Store before.
	if _, ok := s.nodesIndices[root]; ok {
		return nil
	}

	index := uint64(len(s.nodes))
	parentIndex, ok := s.nodesIndices[parentRoot]
	// Mark genesis block's parent as non existent.
	if !ok {
		parentIndex = NonExistentNode
	}

	n := &Node{
		slot:           slot,
		root:           root,
		parentRoot:     parentRoot,
		stateRoot:      stateRoot,
		parent:         parentIndex,
		justifiedEpoch: justifiedEpoch,
		finalizedEpoch: finalizedEpoch,
		bestChild:      NonExistentNode,
		bestDescendant: NonExistentNode,
	}

	s.nodesIndices[root] = index
	s.nodes = append(s.nodes, n)

	// Update parent with the best child and descendant only if it's available.
	if n.parent != NonExistentNode {
		if err := s.updateBestChildAndDescendant(ctx, parentIndex, index); err != nil {
			return err
		}
	}

	processedBlockCount.Inc()
	nodeCount.Set(float64(len(s.nodes)))

	return nil
}

// applyWeightChanges iterates backwards through the nodes in store. It checks all nodes parent
// and its best child. For each node, it updates the weight with input delta and
// back propagates the nodes' delta to its parents' delta. After scoring changes,
// the best child is then updated along with the best descendant.
func (s *Store) applyWeightChanges(ctx context.Context, justifiedEpoch, finalizedEpoch types.Epoch, delta []int) error {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.applyWeightChanges")
	defer span.End()

	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	// The length of the nodes can not be different than length of the delta.
	if len(s.nodes) != len(delta) {
		return errInvalidDeltaLength
	}

	// Update the justified / finalized epochs in store if necessary.
	if s.justifiedEpoch != justifiedEpoch || s.finalizedEpoch != finalizedEpoch {
		s.justifiedEpoch = justifiedEpoch
		s.finalizedEpoch = finalizedEpoch
	}

	// Compute the new weights first, the changes only commit once every node
	// clears the underflow check. A failed delta pass leaves the node weights
	// untouched, the epochs above are already updated.
	weights := make([]uint64, len(s.nodes))
	for i := len(s.nodes) - 1; i >= 0; i-- {
		n := s.nodes[i]
		nodeDelta := delta[i]

		if nodeDelta < 0 {
			// A node's weight can not be negative, the negative delta can not
			// exceed what the node has accumulated.
			if n.weight < uint64(-nodeDelta) {
				return errors.Wrapf(errDeltaOverflow, "node weight %d with delta %d at index %d", n.weight, nodeDelta, i)
			}
			weights[i] = n.weight - uint64(-nodeDelta)
		} else {
			weights[i] = n.weight + uint64(nodeDelta)
		}

		if n.parent != NonExistentNode {
			// Protection against node parent index out of bound. This should not happen.
			if int(n.parent) >= len(delta) {
				return errInvalidParentDelta
			}
			// Back propagate the nodes' delta to its parent.
			delta[n.parent] += nodeDelta
		}
	}
	for i, n := range s.nodes {
		n.weight = weights[i]
	}

	// Back propagate the best child and descendant, every descendant already
	// carries its final weight by the time its parent is visited.
	for i := len(s.nodes) - 1; i >= 0; i-- {
		n := s.nodes[i]
		if n.parent != NonExistentNode {
			if err := s.updateBestChildAndDescendant(ctx, n.parent, uint64(i)); err != nil {
				return err
			}
		}
	}

	return nil
}

// updateBestChildAndDescendant updates parent node's best child and descendant.
// It looks at input parent node and input child node and potentially modifies parent's best
// child and best descendant indices.
// There are four outcomes:
// 1.)  The child is already the best child but it's now invalid due to a FFG change and should be removed.
// 2.)  The child is already the best child and the parent is updated with the new best descendant.
// 3.)  The child is not the best child but becomes the best child.
// 4.)  The child is not the best child and does not become the best child.
func (s *Store) updateBestChildAndDescendant(ctx context.Context, parentIndex, childIndex uint64) error {
	// Protection against parent index out of bound, this should not happen.
	if parentIndex >= uint64(len(s.nodes)) {
		return errInvalidNodeIndex
	}
	parent := s.nodes[parentIndex]

	// Protection against child index out of bound, again this should not happen.
	if childIndex >= uint64(len(s.nodes)) {
		return errInvalidNodeIndex
	}
	child := s.nodes[childIndex]

	// Is the child viable to become head? Based on justification and finalization rules.
	childLeadsToViableHead, err := s.leadsToViableHead(ctx, child)
	if err != nil {
		return err
	}

	// Define 3 variables for the outcomes mentioned above. This is to
	// set `parent.bestChild` and `parent.bestDescendant` to. These
	// aliases are to assist readability.
	changeToNone := []uint64{NonExistentNode, NonExistentNode}
	bestDescendant := child.bestDescendant
	if bestDescendant == NonExistentNode {
		bestDescendant = childIndex
	}
	changeToChild := []uint64{childIndex, bestDescendant}
	noChange := []uint64{parent.bestChild, parent.bestDescendant}
	var newParentChild []uint64

	if parent.bestChild != NonExistentNode {
		if parent.bestChild == childIndex && !childLeadsToViableHead {
			// If the child is already the best child of the parent but it's not viable for head,
			// we should remove it. (Outcome 1)
			newParentChild = changeToNone
		} else if parent.bestChild == childIndex {
			// If the child is already the best child of the parent, set it again to ensure best
			// descendant is also updated. (Outcome 2)
			newParentChild = changeToChild
		} else {
			// Protection against parent's best child going out of bound.
			if parent.bestChild >= uint64(len(s.nodes)) {
				return errInvalidBestChildIndex
			}
			bestChild := s.nodes[parent.bestChild]
			// Is current parent's best child viable to be head? Based on justification and finalization rules.
			bestChildLeadsToViableHead, err := s.leadsToViableHead(ctx, bestChild)
			if err != nil {
				return err
			}

			if childLeadsToViableHead && !bestChildLeadsToViableHead {
				// The child leads to a viable head, but the current parent's best child doesn't.
				newParentChild = changeToChild
			} else if !childLeadsToViableHead {
				// The child doesn't lead to a viable head, the current parent's best child is kept.
				newParentChild = noChange
			} else if child.weight == bestChild.weight {
				// Tie-breaker of equal weights by root. The larger root wins so that
				// every correct implementation lands on the same head.
				if bytes.Compare(child.root[:], bestChild.root[:]) > 0 {
					newParentChild = changeToChild
				} else {
					newParentChild = noChange
				}
			} else {
				// Choose the winner by weight.
				if child.weight > bestChild.weight {
					newParentChild = changeToChild
				} else {
					newParentChild = noChange
				}
			}
		}
	} else {
		if childLeadsToViableHead {
			// If parent doesn't have a best child and the child is viable.
			newParentChild = changeToChild
		} else {
			// If parent doesn't have a best child and the child is not viable.
			newParentChild = noChange
		}
	}

	parent.bestChild = newParentChild[0]
	parent.bestDescendant = newParentChild[1]

	return nil
}

// prune prunes the store with the new finalized root. The tree is only
// pruned if the number of nodes before the finalized node in the node list
// has met the prune threshold.
func (s *Store) prune(ctx context.Context, finalizedRoot [32]byte) error {
	_, span := trace.StartSpan(ctx, "protoArrayForkChoice.prune")
	defer span.End()

	s.nodesLock.Lock()
	defer s.nodesLock.Unlock()

	finalizedIndex, ok := s.nodesIndices[finalizedRoot]
	if !ok {
		return errUnknownFinalizedRoot
	}
	s.finalizedRoot = finalizedRoot

	// The number of the nodes to prune is small, so keep the nodes for now and
	// amortize the index shifting.
	if finalizedIndex < s.pruneThreshold {
		return nil
	}

	// Only the finalized node and its descendants survive the prune. Remaining
	// nodes are remapped onto a fresh zero based layout.
	canonicalNodesMap := make(map[uint64]uint64, uint64(len(s.nodes))-finalizedIndex)
	canonicalNodes := make([]*Node, 1, uint64(len(s.nodes))-finalizedIndex)
	finalizedNode := s.nodes[finalizedIndex]
	finalizedNode.parent = NonExistentNode
	canonicalNodes[0] = finalizedNode
	canonicalNodesMap[finalizedIndex] = uint64(0)

	for idx := finalizedIndex + 1; idx < uint64(len(s.nodes)); idx++ {
		node := s.nodes[idx]
		parentIdx, ok := canonicalNodesMap[node.parent]
		if !ok {
			// Remove the node that is not a descendant of the finalized root.
			delete(s.nodesIndices, node.root)
			delete(s.canonicalNodes, node.root)
			continue
		}
		canonicalNodesMap[idx] = uint64(len(canonicalNodes))
		s.nodesIndices[node.root] = uint64(len(canonicalNodes))
		node.parent = parentIdx
		canonicalNodes = append(canonicalNodes, node)
	}

	// Drop the nodes that sit before the finalized node in the array.
	for idx := uint64(0); idx < finalizedIndex; idx++ {
		if int(idx) >= len(s.nodes) {
			return errInvalidNodeIndex
		}
		delete(s.nodesIndices, s.nodes[idx].root)
		delete(s.canonicalNodes, s.nodes[idx].root)
	}
	s.nodesIndices[finalizedRoot] = uint64(0)
	s.nodes = canonicalNodes

	// Remap the best child and best descendant cursors onto the new layout. The
	// cursors always point into the surviving subtree, so every remap must hit.
	for _, node := range s.nodes {
		if node.bestChild != NonExistentNode {
			newIdx, ok := canonicalNodesMap[node.bestChild]
			if !ok {
				return errInvalidBestChildIndex
			}
			node.bestChild = newIdx
		}
		if node.bestDescendant != NonExistentNode {
			newIdx, ok := canonicalNodesMap[node.bestDescendant]
			if !ok {
				return errInvalidBestDescendantIndex
			}
			node.bestDescendant = newIdx
		}
	}

	prunedCount.Inc()
	nodeCount.Set(float64(len(s.nodes)))
	log.WithFields(logrus.Fields{
		"finalizedRoot": fmt.Sprintf("%#x", bytesutil.Trunc(finalizedRoot[:])),
		"nodeCount":     len(s.nodes),
	}).Debug("Pruned fork choice nodes")

	return nil
}

// updateCanonicalNodes updates the canonical nodes mapping given the input
// block root. The map traces the canonical chain of the store, going from the
// head root towards the root of the store.
func (s *Store) updateCanonicalNodes(ctx context.Context, root [32]byte) error {
	_, span := trace.StartSpan(ctx, "protoArrayForkChoice.updateCanonicalNodes")
	defer span.End()

	s.canonicalNodes = make(map[[32]byte]bool)
	idx, ok := s.nodesIndices[root]
	if !ok {
		return errNilNode
	}
	for idx != NonExistentNode {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if idx >= uint64(len(s.nodes)) {
			return errInvalidNodeIndex
		}
		node := s.nodes[idx]
		s.canonicalNodes[node.root] = true
		idx = node.parent
	}

	return nil
}

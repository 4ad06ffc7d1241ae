package protoarray

import (
	"context"

	types "github.com/prysmaticlabs/eth2-types"
	"go.opencensus.io/trace"
)

// Nodes returns a copy of the node list of the fork choice store.
func (f *ForkChoice) Nodes() []*Node {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	cpy := make([]*Node, len(f.store.nodes))
	for i, n := range f.store.nodes {
		cpy[i] = copyNode(n)
	}
	return cpy
}

// Node returns a copy of the node with the given block root, nil if the root
// is unknown to the fork choice store.
func (f *ForkChoice) Node(root [32]byte) *Node {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	index, ok := f.store.nodesIndices[root]
	if !ok || index >= uint64(len(f.store.nodes)) {
		return nil
	}
	return copyNode(f.store.nodes[index])
}

// NodeCount returns the current number of nodes in the fork choice store.
func (f *ForkChoice) NodeCount() int {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()
	return len(f.store.nodes)
}

// HasNode returns true if the node exists in fork choice store,
// false else wise.
func (f *ForkChoice) HasNode(root [32]byte) bool {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	_, ok := f.store.nodesIndices[root]
	return ok
}

// HasParent returns true if the node parent exists in fork choice store,
// false else wise.
func (f *ForkChoice) HasParent(root [32]byte) bool {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	index, ok := f.store.nodesIndices[root]
	if !ok || index >= uint64(len(f.store.nodes)) {
		return false
	}
	return f.store.nodes[index].parent != NonExistentNode
}

// Weight returns the weight accounted to the node with the given block root.
func (f *ForkChoice) Weight(root [32]byte) (uint64, error) {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	index, ok := f.store.nodesIndices[root]
	if !ok || index >= uint64(len(f.store.nodes)) {
		return 0, errNilNode
	}
	return f.store.nodes[index].weight, nil
}

// IsCanonical returns true if the given root is part of the canonical chain
// as of the last head computation.
func (f *ForkChoice) IsCanonical(root [32]byte) bool {
	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	return f.store.canonicalNodes[root]
}

// AncestorRoot returns the ancestor root of input block root at a given slot.
func (f *ForkChoice) AncestorRoot(ctx context.Context, root [32]byte, slot types.Slot) ([32]byte, error) {
	ctx, span := trace.StartSpan(ctx, "protoArrayForkChoice.AncestorRoot")
	defer span.End()

	f.store.nodesLock.RLock()
	defer f.store.nodesLock.RUnlock()

	i, ok := f.store.nodesIndices[root]
	if !ok {
		return [32]byte{}, errNilNode
	}
	if i >= uint64(len(f.store.nodes)) {
		return [32]byte{}, errInvalidNodeIndex
	}

	for f.store.nodes[i].slot > slot {
		if ctx.Err() != nil {
			return [32]byte{}, ctx.Err()
		}
		i = f.store.nodes[i].parent
		if i >= uint64(len(f.store.nodes)) {
			return [32]byte{}, errInvalidNodeIndex
		}
	}

	return f.store.nodes[i].root, nil
}

// leadsToViableHead returns true if the node or the best descendant of the node is viable for head.
// Any node with different finalized or justified epoch than the ones in fork choice store
// should not be viable to head.
func (s *Store) leadsToViableHead(ctx context.Context, node *Node) (bool, error) {
	var bestDescendantViable bool
	bestDescendantIndex := node.bestDescendant

	// If the best descendant is not part of the leaves.
	if bestDescendantIndex != NonExistentNode {
		// Protection against out of bound, the best descendant index can not
		// exceed the length of the node list.
		if bestDescendantIndex >= uint64(len(s.nodes)) {
			return false, errInvalidBestDescendantIndex
		}

		bestDescendantNode := s.nodes[bestDescendantIndex]
		bestDescendantViable = s.viableForHead(ctx, bestDescendantNode)
	}

	// The node is viable as long as the best descendant is viable.
	return bestDescendantViable || s.viableForHead(ctx, node), nil
}

// viableForHead returns true if the node is viable to head.
// Any node with different finalized or justified epoch than the ones in fork choice store
// should not be viable to head.
func (s *Store) viableForHead(_ context.Context, node *Node) bool {
	// `node` is viable if its justified epoch and finalized epoch are the same as the one in `Store`.
	// It's also viable if we are in genesis epoch.
	justified := s.justifiedEpoch == node.justifiedEpoch || s.justifiedEpoch == 0
	finalized := s.finalizedEpoch == node.finalizedEpoch || s.finalizedEpoch == 0

	return justified && finalized
}

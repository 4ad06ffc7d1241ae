package protoarray

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	log = logrus.WithField("prefix", "forkchoice-protoarray")

	headSlotNumber = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "protoarray_head_slot",
			Help: "The slot number of the current head.",
		},
	)
	currentSlotNumber = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "protoarray_current_slot",
			Help: "The current slot the fork choice store has progressed to.",
		},
	)
	nodeCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "protoarray_node_count",
			Help: "The number of nodes in the DAG array based store structure.",
		},
	)
	headChangesCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protoarray_head_changed_count",
			Help: "The number of times head changes.",
		},
	)
	calledHeadCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protoarray_head_requested_count",
			Help: "The number of times someone called head.",
		},
	)
	processedBlockCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protoarray_block_processed_count",
			Help: "The number of times a block is processed for fork choice.",
		},
	)
	processedAttestationCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protoarray_attestation_processed_count",
			Help: "The number of times an attestation is processed for fork choice.",
		},
	)
	prunedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protoarray_pruned_count",
			Help: "The number of times pruning happened.",
		},
	)
)

// lastHeadRoot guards the head changed metric, it tracks the head root
// returned by the previous head computation.
var lastHeadRoot [32]byte

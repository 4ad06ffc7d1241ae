// Package params defines important constants that are essential to the
// beacon chain services.
package params

import (
	types "github.com/prysmaticlabs/eth2-types"
)

// BeaconChainConfig contains constant configs for node to participate in beacon chain.
type BeaconChainConfig struct {
	// Constants (non-configurable).
	FarFutureEpoch types.Epoch // FarFutureEpoch represents a epoch extremely far away in the future used as the default penalization epoch for validators.
	FarFutureSlot  types.Slot  // FarFutureSlot represents a slot extremely far away in the future.
	GweiPerEth     uint64      // GweiPerEth is the amount of gwei corresponding to 1 eth.
	ZeroHash       [32]byte    // ZeroHash is used to represent a zeroed out 32 byte array.

	// Time parameters constants.
	SecondsPerSlot uint64     // SecondsPerSlot is how many seconds are in a single slot.
	SlotsPerEpoch  types.Slot // SlotsPerEpoch is the number of slots in an epoch.

	// Gwei value constants.
	MinDepositAmount          uint64 // MinDepositAmount is the minimum amount of Gwei a validator can send to the deposit contract at once (lower amounts will be reverted).
	MaxEffectiveBalance       uint64 // MaxEffectiveBalance is the maximal amount of Gwei that is effective for staking.
	EffectiveBalanceIncrement uint64 // EffectiveBalanceIncrement is used for converting the high balance into the low balance for validators.
}

var beaconConfig = MainnetConfig()

// BeaconConfig retrieves beacon chain config.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig by replacing the config. The preferred pattern is to
// call BeaconConfig(), change the specific parameters, and then call
// OverrideBeaconConfig(c). Any subsequent calls to params.BeaconConfig() will
// return this new configuration.
func OverrideBeaconConfig(c *BeaconChainConfig) {
	beaconConfig = c
}

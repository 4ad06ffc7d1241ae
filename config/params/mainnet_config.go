package params

// MainnetConfig returns the configuration to be used in the main network.
func MainnetConfig() *BeaconChainConfig {
	return mainnetBeaconConfig
}

// UseMainnetConfig for beacon chain services.
func UseMainnetConfig() {
	beaconConfig = MainnetConfig()
}

var mainnetBeaconConfig = &BeaconChainConfig{
	// Constants (non-configurable).
	FarFutureEpoch: 1<<64 - 1,
	FarFutureSlot:  1<<64 - 1,
	GweiPerEth:     1000000000,
	ZeroHash:       [32]byte{},

	// Time parameter constants.
	SecondsPerSlot: 12,
	SlotsPerEpoch:  32,

	// Gwei value constants.
	MinDepositAmount:          1 * 1e9,
	MaxEffectiveBalance:       32 * 1e9,
	EffectiveBalanceIncrement: 1 * 1e9,
}

package params_test

import (
	"testing"

	"github.com/mbaxter/artemis/config/params"
	"github.com/mbaxter/artemis/testing/assert"
)

func TestOverrideBeaconConfig(t *testing.T) {
	cfg := params.BeaconConfig()
	defer params.OverrideBeaconConfig(cfg)

	c := *cfg
	c.SlotsPerEpoch = 5
	params.OverrideBeaconConfig(&c)
	assert.Equal(t, 5, int(params.BeaconConfig().SlotsPerEpoch))
}

func TestMainnetConfig(t *testing.T) {
	c := params.MainnetConfig()
	assert.Equal(t, uint64(32*1e9), c.MaxEffectiveBalance)
	assert.Equal(t, [32]byte{}, c.ZeroHash)
}

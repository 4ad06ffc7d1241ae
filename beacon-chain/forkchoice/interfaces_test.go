package forkchoice

import (
	"github.com/mbaxter/artemis/beacon-chain/forkchoice/protoarray"
)

var _ ForkChoicer = &protoarray.ForkChoice{}

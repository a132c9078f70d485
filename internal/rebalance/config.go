// Package rebalance implements the heart of the system: discovery, scoring
// and execution of cross-chain rebalancing opportunities, invoked on every
// pool update.
package rebalance

import (
	"math/big"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// Config bundles the rebalancer's tunables, all sourced from top-level
// configuration.
type Config struct {
	DeficitThreshold  *big.Int
	SurplusThreshold  *big.Int
	NetTotalAllowance *big.Int
	MinScore          float64

	USDCDecimals int

	GasLimitFillDeficit uint64
	GasLimitTakeSurplus uint64
	GasLimitBridgeIOU   uint64

	DryRun bool
}

// BaseWeight is the per-kind score weight.
var BaseWeight = map[types.OpportunityKind]float64{
	types.FillDeficit: 200,
	types.TakeSurplus: 200,
	types.BridgeIOU:   40,
}

// gasUSDPlaceholder is the constant gas-cost placeholder used by the scorer.
const gasUSDPlaceholder = 1.0

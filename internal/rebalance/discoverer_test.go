package rebalance

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbf-network/rebalancer/pkg/types"
)

func testConfig() Config {
	return Config{
		DeficitThreshold:  big.NewInt(10),
		SurplusThreshold:  big.NewInt(10),
		NetTotalAllowance: big.NewInt(10_000_000),
		MinScore:          0,
		USDCDecimals:      6,
	}
}

func balanceWith(native, usdc, iou int64) types.TokenBalance {
	b := types.NewTokenBalance()
	b.Native = big.NewInt(native)
	b.Tokens[types.USDC] = big.NewInt(usdc)
	b.Tokens[types.IOU] = big.NewInt(iou)
	return b
}

func poolData(deficit, surplus int64) types.PoolData {
	return types.PoolData{Deficit: big.NewInt(deficit), Surplus: big.NewInt(surplus)}
}

// Scenario 1: single pool, fill deficit.
func TestDiscover_SinglePoolFillDeficit(t *testing.T) {
	cfg := testConfig()
	pools := map[string]types.PoolData{"A": poolData(1_000_000, 0)}
	balances := map[string]types.TokenBalance{"A": balanceWith(1, 5_000_000, 0)}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))

	require.Len(t, opps, 1)
	assert.Equal(t, types.FillDeficit, opps[0].Kind)
	assert.Equal(t, "A", opps[0].To)
	assert.Equal(t, big.NewInt(1_000_000), opps[0].Amount)
}

// Scenario 2: net exposure binds the FillDeficit amount.
func TestDiscover_NetExposureBinds(t *testing.T) {
	cfg := testConfig()
	cfg.NetTotalAllowance = big.NewInt(400_000)
	pools := map[string]types.PoolData{"A": poolData(1_000_000, 0)}
	balances := map[string]types.TokenBalance{"A": balanceWith(1, 5_000_000, 0)}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))

	require.Len(t, opps, 1)
	assert.Equal(t, big.NewInt(400_000), opps[0].Amount)
}

// Scenario 3: net exposure exhausted, no FillDeficit.
func TestDiscover_NetExposureExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.NetTotalAllowance = big.NewInt(10_000_000)
	pools := map[string]types.PoolData{"A": poolData(1_000_000, 0)}
	balances := map[string]types.TokenBalance{"A": balanceWith(1, 5_000_000, 0)}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(10_000_000), big.NewInt(0))

	assert.Empty(t, opps)
}

// Scenario 4: surplus redemption and bridging both fire, in that order.
func TestDiscover_SurplusThenBridge(t *testing.T) {
	cfg := testConfig()
	pools := map[string]types.PoolData{
		"A": poolData(0, 0),
		"B": poolData(0, 5_000_000),
	}
	balances := map[string]types.TokenBalance{
		"A": balanceWith(1, 0, 2_000_000),
		"B": balanceWith(1, 0, 1_000_000),
	}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))

	require.Len(t, opps, 2)
	assert.Equal(t, types.TakeSurplus, opps[0].Kind)
	assert.Equal(t, "B", opps[0].On)
	assert.Equal(t, big.NewInt(1_000_000), opps[0].Amount)

	assert.Equal(t, types.BridgeIOU, opps[1].Kind)
	assert.Equal(t, "A", opps[1].From)
	assert.Equal(t, "B", opps[1].To)
	assert.Equal(t, big.NewInt(2_000_000), opps[1].Amount)
}

// Scenario 5: deterministic lexicographic tie-break on bridge destination.
func TestDiscover_BridgeDestinationTieBreak(t *testing.T) {
	cfg := testConfig()
	pools := map[string]types.PoolData{
		"A": poolData(0, 0),
		"B": poolData(0, 5_000_000),
		"C": poolData(0, 5_000_000),
	}
	balances := map[string]types.TokenBalance{
		"A": balanceWith(1, 0, 1000),
		"B": balanceWith(1, 0, 0),
		"C": balanceWith(1, 0, 0),
	}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))

	require.Len(t, opps, 1)
	assert.Equal(t, types.BridgeIOU, opps[0].Kind)
	assert.Equal(t, "B", opps[0].To)
}

// Boundary: deficit exactly at threshold qualifies; one below does not.
func TestDiscover_DeficitThresholdBoundary(t *testing.T) {
	cfg := testConfig()
	balances := map[string]types.TokenBalance{"A": balanceWith(1, 5_000_000, 0)}

	atThreshold := map[string]types.PoolData{"A": poolData(10, 0)}
	opps := Discover(atThreshold, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))
	assert.Len(t, opps, 1)

	belowThreshold := map[string]types.PoolData{"A": poolData(9, 0)}
	opps = Discover(belowThreshold, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))
	assert.Empty(t, opps)
}

// USDC(n) == 0 disqualifies FillDeficit even with a huge deficit.
func TestDiscover_ZeroUSDCDisqualifiesFillDeficit(t *testing.T) {
	cfg := testConfig()
	pools := map[string]types.PoolData{"A": poolData(1_000_000_000, 0)}
	balances := map[string]types.TokenBalance{"A": balanceWith(1, 0, 0)}

	opps := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))
	assert.Empty(t, opps)
}

func TestDiscover_IsDeterministic(t *testing.T) {
	cfg := testConfig()
	pools := map[string]types.PoolData{
		"A": poolData(1_000_000, 0),
		"B": poolData(2_000_000, 0),
	}
	balances := map[string]types.TokenBalance{
		"A": balanceWith(1, 5_000_000, 0),
		"B": balanceWith(1, 5_000_000, 0),
	}

	first := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))
	second := Discover(pools, balances, types.Deployments{}, cfg, NetExposure(cfg.NetTotalAllowance), big.NewInt(0), big.NewInt(0))
	assert.Equal(t, first, second)
}

func TestNetExposure(t *testing.T) {
	netExposure := NetExposure(big.NewInt(10_000_000))
	result := netExposure(big.NewInt(3_000_000), big.NewInt(1_000_000))
	assert.Equal(t, big.NewInt(8_000_000), result)
}

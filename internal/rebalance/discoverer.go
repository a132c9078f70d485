package rebalance

import (
	"math/big"
	"sort"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// Discover produces a (possibly empty) list of Opportunity from the current
// pool readings, balance snapshot, deployments and config. It is a pure
// function of its inputs: identical inputs produce an identical
// (deterministic) result.
func Discover(poolData map[string]types.PoolData, balances map[string]types.TokenBalance, deployments types.Deployments, cfg Config, netExposure func(totalIOU, redeemed *big.Int) *big.Int, totalIOU, totalRedeemed *big.Int) []types.Opportunity {
	var out []types.Opportunity

	netAllowance := netExposure(totalIOU, totalRedeemed)

	for _, network := range sortedNetworks(poolData) {
		pd := poolData[network]
		bal, ok := balances[network]
		if !ok {
			continue
		}
		usdc := bal.Token(types.USDC)
		if pd.Deficit.Cmp(cfg.DeficitThreshold) >= 0 && usdc.Sign() > 0 {
			amount := minBig(usdc, pd.Deficit)
			if netAllowance.Sign() > 0 {
				amount = minBig(amount, netAllowance)
			} else {
				amount = big.NewInt(0)
			}
			if amount.Sign() > 0 {
				out = append(out, types.Opportunity{Kind: types.FillDeficit, To: network, Amount: amount})
			}
		}
	}

	for _, network := range sortedNetworks(poolData) {
		pd := poolData[network]
		bal, ok := balances[network]
		if !ok {
			continue
		}
		iou := bal.Token(types.IOU)
		if pd.Surplus.Cmp(cfg.SurplusThreshold) >= 0 && iou.Sign() > 0 {
			amount := minBig(iou, pd.Surplus)
			if amount.Sign() > 0 {
				out = append(out, types.Opportunity{Kind: types.TakeSurplus, On: network, Amount: amount})
			}
		}
	}

	out = append(out, discoverBridges(poolData, balances, cfg)...)

	return out
}

// discoverBridges finds IOU-bridging opportunities: networks holding IOU
// with no qualifying local opportunity, bridged to the network with the
// strict-maximum qualifying surplus (deterministic lexicographic tie-break).
func discoverBridges(poolData map[string]types.PoolData, balances map[string]types.TokenBalance, cfg Config) []types.Opportunity {
	destination, ok := bridgeDestination(poolData, cfg)
	if !ok {
		return nil
	}

	var out []types.Opportunity
	for _, network := range sortedNetworks(poolData) {
		if network == destination {
			continue
		}
		pd := poolData[network]
		bal, ok := balances[network]
		if !ok {
			continue
		}
		iou := bal.Token(types.IOU)
		if iou.Sign() <= 0 {
			continue
		}
		if pd.Deficit.Cmp(cfg.DeficitThreshold) >= 0 || pd.Surplus.Cmp(cfg.SurplusThreshold) >= 0 {
			continue
		}
		out = append(out, types.Opportunity{Kind: types.BridgeIOU, From: network, To: destination, Amount: new(big.Int).Set(iou)})
	}
	return out
}

// bridgeDestination picks the network with the strict-maximum surplus
// meeting the threshold, breaking ties lexicographically by name.
func bridgeDestination(poolData map[string]types.PoolData, cfg Config) (string, bool) {
	best := ""
	var bestSurplus *big.Int
	for _, network := range sortedNetworks(poolData) {
		pd := poolData[network]
		if pd.Surplus.Cmp(cfg.SurplusThreshold) < 0 {
			continue
		}
		if bestSurplus == nil || pd.Surplus.Cmp(bestSurplus) > 0 {
			best, bestSurplus = network, pd.Surplus
		}
	}
	return best, bestSurplus != nil
}

func sortedNetworks(m map[string]types.PoolData) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// NetExposure computes net_allowance = NET_TOTAL_ALLOWANCE - (totalIOU -
// totalRedeemed).
func NetExposure(netTotalAllowance *big.Int) func(totalIOU, totalRedeemed *big.Int) *big.Int {
	return func(totalIOU, totalRedeemed *big.Int) *big.Int {
		exposure := new(big.Int).Sub(totalIOU, totalRedeemed)
		return new(big.Int).Sub(netTotalAllowance, exposure)
	}
}

package rebalance

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// bridgeFeeUSD is the default fee for unmodeled bridge routes: 0.
const bridgeFeeUSD = 0.0

// Score rechecks feasibility against the current balance snapshot and scores
// every opportunity. Output keeps only feasible opportunities scoring >=
// cfg.MinScore, sorted by descending score. Scoring is deterministic for
// fixed inputs.
func Score(opps []types.Opportunity, balances map[string]types.TokenBalance, cfg Config) []types.ScoredOpportunity {
	out := make([]types.ScoredOpportunity, 0, len(opps))
	for _, opp := range opps {
		feasible, reasons := checkFeasibility(opp, balances)
		score := 0.0
		if feasible {
			score = computeScore(opp, cfg)
		}
		if !feasible || score < cfg.MinScore {
			continue
		}
		out = append(out, types.ScoredOpportunity{Opp: opp, Score: score, Feasible: feasible, Reasons: reasons})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func checkFeasibility(opp types.Opportunity, balances map[string]types.TokenBalance) (bool, []string) {
	var reasons []string

	switch opp.Kind {
	case types.FillDeficit:
		bal, ok := balances[opp.To]
		if !ok || bal.Token(types.USDC).Cmp(opp.Amount) < 0 {
			reasons = append(reasons, fmt.Sprintf("USDC(%s) below required amount", opp.To))
		}
	case types.TakeSurplus:
		bal, ok := balances[opp.On]
		if !ok || bal.Token(types.IOU).Cmp(opp.Amount) < 0 {
			reasons = append(reasons, fmt.Sprintf("IOU(%s) below required amount", opp.On))
		}
	case types.BridgeIOU:
		bal, ok := balances[opp.From]
		if !ok || bal.Token(types.IOU).Cmp(opp.Amount) < 0 {
			reasons = append(reasons, fmt.Sprintf("IOU(%s) below required amount", opp.From))
		}
	}

	gasNetwork := opp.GasNetwork()
	bal, ok := balances[gasNetwork]
	if !ok || bal.Native.Sign() <= 0 {
		reasons = append(reasons, fmt.Sprintf("native(%s) not strictly positive", gasNetwork))
	}

	return len(reasons) == 0, reasons
}

func computeScore(opp types.Opportunity, cfg Config) float64 {
	base := BaseWeight[opp.Kind]
	valueUSD := toFloat(opp.Amount, cfg.USDCDecimals)
	costUSD := gasUSDPlaceholder + bridgeFeeUSD
	costFactor := 1.0
	if valueUSD > 0 {
		costFactor = 1 - costUSD/valueUSD
	}
	if costFactor < 0.1 {
		costFactor = 0.1
	}
	return base * costFactor
}

// toFloat converts a base-unit amount to a float64 using decimals, for the
// scorer's cost-factor computation only; monetary state is never otherwise
// reconverted through floats.
func toFloat(amount *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetFloat64(math.Pow(10, float64(decimals)))
	f.Quo(f, divisor)
	result, _ := f.Float64()
	return result
}

package core

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbf-network/rebalancer/internal/chain"
	"github.com/lbf-network/rebalancer/internal/pool"
	"github.com/lbf-network/rebalancer/internal/rebalance"
	"github.com/lbf-network/rebalancer/pkg/types"
)

type stubClients struct{ client chain.Client }

func (s stubClients) Client(network string) (chain.Client, error) { return s.client, nil }

type stubAllowances struct{}

func (stubAllowances) EnsureAllowance(ctx context.Context, network string, token, spender common.Address, required *big.Int) error {
	return nil
}

type stubBalances struct {
	snapshot  map[string]types.TokenBalance
	totalIOU  *big.Int
	forceCalls int
}

func (s *stubBalances) Snapshot() map[string]types.TokenBalance { return s.snapshot }
func (s *stubBalances) Total(kind types.TokenKind) *big.Int     { return s.totalIOU }
func (s *stubBalances) ForceUpdate(ctx context.Context)         { s.forceCalls++ }

type stubChainIDs struct{}

func (stubChainIDs) ChainID(network string) (uint64, error) { return 1, nil }

func testDeployments() types.Deployments {
	return types.Deployments{
		ParentPool: types.ParentPool{Network: "A", Address: common.HexToAddress("0xA")},
		Pools:      map[string]common.Address{},
		USDC:       map[string]common.Address{"A": common.HexToAddress("0x1")},
		IOU:        map[string]common.Address{"A": common.HexToAddress("0x2")},
	}
}

func testRebalanceConfig() rebalance.Config {
	return rebalance.Config{
		DeficitThreshold:  big.NewInt(10),
		SurplusThreshold:  big.NewInt(10),
		NetTotalAllowance: big.NewInt(10_000_000),
		MinScore:          0,
		USDCDecimals:      6,
	}
}

func newCoreForTest(balances *stubBalances) *Core {
	fake := &chain.FakeClient{}
	exec := rebalance.NewExecutor(stubClients{client: fake}, stubAllowances{}, balances, stubChainIDs{}, testDeployments, nil, testRebalanceConfig())
	observer := pool.NewObserver(stubClients{client: fake}, testDeployments, time.Hour, 16)
	return New(nil, balances, observer, exec, testDeployments, testRebalanceConfig(), time.Hour)
}

// Pool data for a network that leaves the active set must be pruned so a
// stale deficit/surplus reading cannot drive a later pipeline run.
func TestCore_NetworkDepartureReducesPoolData(t *testing.T) {
	balances := &stubBalances{snapshot: map[string]types.TokenBalance{}, totalIOU: big.NewInt(0)}
	c := newCoreForTest(balances)

	c.handle(context.Background(), Event{Kind: PoolUpdated, PoolUpdate: pool.Update{Network: "A", Deficit: big.NewInt(0), Surplus: big.NewInt(0)}})
	require.Contains(t, c.poolData, "A")

	c.handle(context.Background(), Event{Kind: NetworkChanged, Active: []types.Network{}})
	assert.NotContains(t, c.poolData, "A")
}

// A pool update carrying a read error must not overwrite the last-known
// good PoolData entry.
func TestCore_PoolUpdateErrorDoesNotOverwriteState(t *testing.T) {
	balances := &stubBalances{snapshot: map[string]types.TokenBalance{}, totalIOU: big.NewInt(0)}
	c := newCoreForTest(balances)

	c.handle(context.Background(), Event{Kind: PoolUpdated, PoolUpdate: pool.Update{Network: "A", Deficit: big.NewInt(500), Surplus: big.NewInt(0)}})
	require.Equal(t, big.NewInt(500), c.poolData["A"].Deficit)

	c.handle(context.Background(), Event{Kind: PoolUpdated, PoolUpdate: pool.Update{Network: "A", Err: assertErr}})
	assert.Equal(t, big.NewInt(500), c.poolData["A"].Deficit)
}

var assertErr = context.DeadlineExceeded

// An empty pool-data map must short-circuit the pipeline before touching
// balances or the executor.
func TestCore_EmptyPoolDataSkipsPipeline(t *testing.T) {
	balances := &stubBalances{snapshot: map[string]types.TokenBalance{}, totalIOU: big.NewInt(0)}
	c := newCoreForTest(balances)

	c.handle(context.Background(), Event{Kind: Tick})
	assert.Equal(t, 0, balances.forceCalls)
}

// A full pipeline run (discover -> score -> execute) must call ForceUpdate
// through the executor once per executed opportunity.
func TestCore_PipelineExecutesDiscoveredOpportunity(t *testing.T) {
	balances := &stubBalances{
		snapshot: map[string]types.TokenBalance{
			"A": {Native: big.NewInt(1), Tokens: map[types.TokenKind]*big.Int{types.USDC: big.NewInt(5_000_000), types.IOU: big.NewInt(0)}},
		},
		totalIOU: big.NewInt(0),
	}
	c := newCoreForTest(balances)

	c.handle(context.Background(), Event{Kind: PoolUpdated, PoolUpdate: pool.Update{Network: "A", Deficit: big.NewInt(1_000_000), Surplus: big.NewInt(0)}})

	assert.Equal(t, 1, balances.forceCalls, "executing one opportunity calls ForceUpdate once")
}

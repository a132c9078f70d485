package rebalance

import (
	"context"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lbf-network/rebalancer/internal/chain"
	"github.com/lbf-network/rebalancer/pkg/types"
)

// PoolWriteABI is the state-changing subset of the LBF pool contract the executor
// calls.
var PoolWriteABI = mustParsePoolWriteABI()

const poolWriteABIJSON = `[
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"fillDeficit","outputs":[],"type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"}],"name":"takeSurplus","outputs":[],"type":"function"},
	{"inputs":[{"name":"amount","type":"uint256"},{"name":"destChainId","type":"uint256"}],"name":"bridgeIOU","outputs":[],"type":"function"}
]`

func mustParsePoolWriteABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(poolWriteABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Clients resolves a chain.Client for a given network name.
type Clients interface {
	Client(network string) (chain.Client, error)
}

// Allowances is the subset of balance.AllowanceManager the executor needs.
type Allowances interface {
	EnsureAllowance(ctx context.Context, network string, token, spender common.Address, required *big.Int) error
}

// BalanceForcer is the subset of balance.Tracker the executor needs to
// re-trigger feasibility-relevant state after each opportunity.
type BalanceForcer interface {
	ForceUpdate(ctx context.Context)
}

// ChainIDResolver maps a network name to its chain id, needed for
// BridgeIOU's destChainId argument.
type ChainIDResolver interface {
	ChainID(network string) (uint64, error)
}

// Recorder persists an audit trail of attempted opportunities. It is a
// write-only ledger: the executor never reads back from it to reconstruct
// decision state.
type Recorder interface {
	RecordAttempt(ctx context.Context, opp types.ScoredOpportunity, txHash common.Hash, execErr error)
	RecordRedeemed(ctx context.Context, total *big.Int)
}

// Stats tallies per-kind execution counters.
type Stats struct {
	Attempted map[types.OpportunityKind]int
	Succeeded map[types.OpportunityKind]int
	Failed    map[types.OpportunityKind]int
}

// Executor issues the on-chain calls for scored opportunities, ensuring each
// allowance through the Allowances dependency (whose floors are configured
// elsewhere) and relying on the net-exposure cap and gas availability
// already enforced upstream by the discoverer and scorer.
type Executor struct {
	clients     Clients
	allowances  Allowances
	balances    BalanceForcer
	chainIDs    ChainIDResolver
	deployments func() types.Deployments
	recorder    Recorder
	cfg         Config

	mu                sync.Mutex
	totalRedeemedUsdc *big.Int

	statsMu sync.Mutex
	stats   Stats
}

// NewExecutor builds an Executor. recorder may be nil to skip audit logging.
func NewExecutor(clients Clients, allowances Allowances, balances BalanceForcer, chainIDs ChainIDResolver, deployments func() types.Deployments, recorder Recorder, cfg Config) *Executor {
	return &Executor{
		clients:           clients,
		allowances:        allowances,
		balances:          balances,
		chainIDs:          chainIDs,
		deployments:       deployments,
		recorder:          recorder,
		cfg:               cfg,
		totalRedeemedUsdc: new(big.Int),
		stats: Stats{
			Attempted: make(map[types.OpportunityKind]int),
			Succeeded: make(map[types.OpportunityKind]int),
			Failed:    make(map[types.OpportunityKind]int),
		},
	}
}

// TotalRedeemedUsdc returns the monotone-nondecreasing counter of USDC
// redeemed against surplus pools so far.
func (e *Executor) TotalRedeemedUsdc() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalRedeemedUsdc)
}

// Stats returns a copy of the per-kind execution counters.
func (e *Executor) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := Stats{
		Attempted: make(map[types.OpportunityKind]int, len(e.stats.Attempted)),
		Succeeded: make(map[types.OpportunityKind]int, len(e.stats.Succeeded)),
		Failed:    make(map[types.OpportunityKind]int, len(e.stats.Failed)),
	}
	for k, v := range e.stats.Attempted {
		out.Attempted[k] = v
	}
	for k, v := range e.stats.Succeeded {
		out.Succeeded[k] = v
	}
	for k, v := range e.stats.Failed {
		out.Failed[k] = v
	}
	return out
}

// ExecuteAll executes scored opportunities sequentially in the order given
// (Score returns them highest score first); it does not reorder them. An
// execution failure for one opportunity is logged and does not
// abort the remaining opportunities in the batch.
func (e *Executor) ExecuteAll(ctx context.Context, scored []types.ScoredOpportunity) {
	for _, so := range scored {
		e.execute(ctx, so)
		e.balances.ForceUpdate(ctx)
	}
}

func (e *Executor) execute(ctx context.Context, so types.ScoredOpportunity) {
	e.statsMu.Lock()
	e.stats.Attempted[so.Opp.Kind]++
	e.statsMu.Unlock()

	hash, err := e.executeOne(ctx, so.Opp)

	e.statsMu.Lock()
	if err != nil {
		e.stats.Failed[so.Opp.Kind]++
	} else {
		e.stats.Succeeded[so.Opp.Kind]++
	}
	e.statsMu.Unlock()

	if e.recorder != nil {
		e.recorder.RecordAttempt(ctx, so, hash, err)
	}

	if err != nil {
		level := "ERROR"
		if types.Is(err, types.ErrMissingDeployment) {
			level = "ERROR (bug)"
		}
		log.Printf("%s: execute %s failed: %v", level, so.Opp.Kind, err)
	}
}

func (e *Executor) executeOne(ctx context.Context, opp types.Opportunity) (common.Hash, error) {
	switch opp.Kind {
	case types.FillDeficit:
		return e.executeFillDeficit(ctx, opp)
	case types.TakeSurplus:
		return e.executeTakeSurplus(ctx, opp)
	case types.BridgeIOU:
		return e.executeBridgeIOU(ctx, opp)
	default:
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "unknown opportunity kind %v", opp.Kind)
	}
}

func (e *Executor) executeFillDeficit(ctx context.Context, opp types.Opportunity) (common.Hash, error) {
	network := opp.To
	deployments := e.deployments()
	pool, ok := deployments.PoolAddress(network)
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no pool for %s", network)
	}
	token, ok := deployments.USDC[network]
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no USDC for %s", network)
	}

	if err := e.allowances.EnsureAllowance(ctx, network, token, pool, opp.Amount); err != nil {
		return common.Hash{}, err
	}

	if e.cfg.DryRun {
		log.Printf("INFO: DRY_RUN fillDeficit(%s) amount=%s", network, opp.Amount)
		return common.Hash{}, nil
	}

	client, err := e.clients.Client(network)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrNetworkNotActive, err, "client for %s", network)
	}
	hash, err := client.Send(ctx, pool, &PoolWriteABI, e.cfg.GasLimitFillDeficit, "fillDeficit", opp.Amount)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrRpcWriteFailed, err, "fillDeficit(%s)", network)
	}
	if _, err := client.WaitForReceipt(ctx, hash); err != nil {
		return hash, types.Wrap(types.ErrReceiptTimeout, err, "fillDeficit(%s) receipt", network)
	}
	return hash, nil
}

func (e *Executor) executeTakeSurplus(ctx context.Context, opp types.Opportunity) (common.Hash, error) {
	network := opp.On
	deployments := e.deployments()
	pool, ok := deployments.PoolAddress(network)
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no pool for %s", network)
	}
	token, ok := deployments.IOU[network]
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no IOU for %s", network)
	}

	if err := e.allowances.EnsureAllowance(ctx, network, token, pool, opp.Amount); err != nil {
		return common.Hash{}, err
	}

	if e.cfg.DryRun {
		log.Printf("INFO: DRY_RUN takeSurplus(%s) amount=%s", network, opp.Amount)
		return common.Hash{}, nil
	}

	client, err := e.clients.Client(network)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrNetworkNotActive, err, "client for %s", network)
	}
	hash, err := client.Send(ctx, pool, &PoolWriteABI, e.cfg.GasLimitTakeSurplus, "takeSurplus", opp.Amount)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrRpcWriteFailed, err, "takeSurplus(%s)", network)
	}
	if _, err := client.WaitForReceipt(ctx, hash); err != nil {
		return hash, types.Wrap(types.ErrReceiptTimeout, err, "takeSurplus(%s) receipt", network)
	}

	e.mu.Lock()
	e.totalRedeemedUsdc.Add(e.totalRedeemedUsdc, opp.Amount)
	total := new(big.Int).Set(e.totalRedeemedUsdc)
	e.mu.Unlock()
	if e.recorder != nil {
		e.recorder.RecordRedeemed(ctx, total)
	}

	return hash, nil
}

func (e *Executor) executeBridgeIOU(ctx context.Context, opp types.Opportunity) (common.Hash, error) {
	network := opp.From
	deployments := e.deployments()
	pool, ok := deployments.PoolAddress(network)
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no pool for %s", network)
	}
	token, ok := deployments.IOU[network]
	if !ok {
		return common.Hash{}, types.Errf(types.ErrMissingDeployment, "no IOU for %s", network)
	}
	destChainID, err := e.chainIDs.ChainID(opp.To)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrMissingDeployment, err, "dest chain id for %s", opp.To)
	}

	if err := e.allowances.EnsureAllowance(ctx, network, token, pool, opp.Amount); err != nil {
		return common.Hash{}, err
	}

	if e.cfg.DryRun {
		log.Printf("INFO: DRY_RUN bridgeIOU(%s -> %s) amount=%s", network, opp.To, opp.Amount)
		return common.Hash{}, nil
	}

	client, err := e.clients.Client(network)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrNetworkNotActive, err, "client for %s", network)
	}
	destChainIDBig := new(big.Int).SetUint64(destChainID)
	hash, err := client.Send(ctx, pool, &PoolWriteABI, e.cfg.GasLimitBridgeIOU, "bridgeIOU", opp.Amount, destChainIDBig)
	if err != nil {
		return common.Hash{}, types.Wrap(types.ErrRpcWriteFailed, err, "bridgeIOU(%s)", network)
	}
	if _, err := client.WaitForReceipt(ctx, hash); err != nil {
		return hash, types.Wrap(types.ErrReceiptTimeout, err, "bridgeIOU(%s) receipt", network)
	}
	return hash, nil
}

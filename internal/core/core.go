// Package core wires the NetworkCoordinator, BalanceTracker, PoolObserver and
// Rebalancer into a single-logical-thread event loop: an inbox of
// NetworkChanged | PoolUpdated | Tick events, drained by one goroutine that
// owns all mutable pipeline state, so no locking is needed across a
// suspension point. It uses the same ticker-plus-channel shape the
// network.Coordinator and pool.Observer already use internally, raised one
// level to cover the whole pipeline.
package core

import (
	"context"
	"log"
	"math/big"
	"time"

	"github.com/lbf-network/rebalancer/internal/network"
	"github.com/lbf-network/rebalancer/internal/pool"
	"github.com/lbf-network/rebalancer/internal/rebalance"
	"github.com/lbf-network/rebalancer/pkg/types"
)

// EventKind tags the Core's inbox events.
type EventKind int

const (
	NetworkChanged EventKind = iota
	PoolUpdated
	Tick
)

// Event is one inbox item. Only the field matching Kind is meaningful.
type Event struct {
	Kind       EventKind
	Active     []types.Network
	PoolUpdate pool.Update
}

// Balances is the subset of balance.Tracker the Core depends on.
type Balances interface {
	Snapshot() map[string]types.TokenBalance
	Total(kind types.TokenKind) *big.Int
	ForceUpdate(ctx context.Context)
}

// Core owns the in-memory pool-data map and drives discover -> score ->
// execute on every pool update.
type Core struct {
	coordinator *network.Coordinator
	balances    Balances
	observer    *pool.Observer
	executor    *rebalance.Executor
	deployments func() types.Deployments
	cfg         rebalance.Config
	tickEvery   time.Duration

	inbox chan Event

	active   []types.Network
	poolData map[string]types.PoolData
}

// New builds a Core. tickEvery controls the cadence of the fallback Tick
// event, which re-runs discover/score/execute even with no fresh pool
// update, covering the "balance recovered, opportunity now feasible" case.
func New(coordinator *network.Coordinator, balances Balances, observer *pool.Observer, executor *rebalance.Executor, deployments func() types.Deployments, cfg rebalance.Config, tickEvery time.Duration) *Core {
	return &Core{
		coordinator: coordinator,
		balances:    balances,
		observer:    observer,
		executor:    executor,
		deployments: deployments,
		cfg:         cfg,
		tickEvery:   tickEvery,
		inbox:       make(chan Event, 256),
		poolData:    make(map[string]types.PoolData),
	}
}

// OnNetworksUpdated implements network.NetworkUpdateListener, forwarding the
// active set into the inbox instead of acting on it directly: all mutation
// of Core state happens on the Run goroutine.
func (c *Core) OnNetworksUpdated(active []types.Network) error {
	activeCopy := make([]types.Network, len(active))
	copy(activeCopy, active)
	c.inbox <- Event{Kind: NetworkChanged, Active: activeCopy}
	return nil
}

// Run drains the inbox until ctx is cancelled. It also forwards the
// observer's Updates channel and a Tick ticker into the same inbox, so every
// state transition is processed by this one goroutine. ctx only governs
// whether Run accepts a new event; a pass already underway runs against
// execCtx, an uncancelled context, so cancelling ctx during a pending
// receipt wait lets that wait finish instead of aborting it. Run returns
// only after the pass in progress (if any) has completed.
func (c *Core) Run(ctx context.Context) {
	execCtx := context.Background()
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.inbox:
			c.handle(execCtx, ev)
		case u := <-c.observer.Updates():
			c.handle(execCtx, Event{Kind: PoolUpdated, PoolUpdate: u})
		case <-ticker.C:
			c.handle(execCtx, Event{Kind: Tick})
		}
	}
}

func (c *Core) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case NetworkChanged:
		c.active = ev.Active
		activeNames := make(map[string]struct{}, len(c.active))
		for _, n := range c.active {
			activeNames[n.Name] = struct{}{}
		}
		for name := range c.poolData {
			if _, ok := activeNames[name]; !ok {
				delete(c.poolData, name)
			}
		}
	case PoolUpdated:
		u := ev.PoolUpdate
		if u.Err != nil {
			return
		}
		c.poolData[u.Network] = types.PoolData{Deficit: u.Deficit, Surplus: u.Surplus, LastUpdated: time.Now()}
	case Tick:
		// no state change; falls through to the pipeline re-run below.
	}

	c.runPipeline(ctx)
}

func (c *Core) runPipeline(ctx context.Context) {
	if len(c.poolData) == 0 {
		return
	}

	balances := c.balances.Snapshot()
	deployments := c.deployments()
	totalIOU := c.balances.Total(types.IOU)
	totalRedeemed := c.executor.TotalRedeemedUsdc()

	opps := rebalance.Discover(c.poolData, balances, deployments, c.cfg, rebalance.NetExposure(c.cfg.NetTotalAllowance), totalIOU, totalRedeemed)
	scored := rebalance.Score(opps, balances, c.cfg)
	if len(scored) == 0 {
		return
	}

	log.Printf("INFO: executing %d scored opportunities", len(scored))
	c.executor.ExecuteAll(ctx, scored)
}

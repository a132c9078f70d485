// Package pool implements the PoolObserver: a watcher per active network
// that polls getPoolData() and pushes (deficit, surplus) updates to a single
// consumer, grounded on the watcher/reconciler shape in other_examples'
// watcher reconciler.go (register-per-entity watcher, push to one channel,
// log-and-continue on error).
package pool

import (
	"context"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lbf-network/rebalancer/internal/chain"
	"github.com/lbf-network/rebalancer/pkg/types"
)

// PoolABI is the view-call subset of the LBF pool contract this observer
// calls.
var PoolABI = mustParsePoolABI()

const poolABIJSON = `[
	{"constant":true,"inputs":[],"name":"getPoolData","outputs":[{"name":"deficit","type":"uint256"},{"name":"surplus","type":"uint256"}],"type":"function"}
]`

func mustParsePoolABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Update is one (network, deficit, surplus) reading, or an error for a
// failed read. A read error does not update PoolData; it is logged and the
// watcher stays armed.
type Update struct {
	Network string
	Deficit *big.Int
	Surplus *big.Int
	Err     error
}

// Clients resolves a chain.Client for a given network name.
type Clients interface {
	Client(network string) (chain.Client, error)
}

// Observer streams pool updates for every active network's pool address.
// Updates for distinct networks may be interleaved arbitrarily, but for any
// single network they are delivered in source order because each network's
// watcher is a single goroutine writing to a shared, unbuffered-safe channel
// in poll order.
type Observer struct {
	clients     Clients
	deployments func() types.Deployments
	interval    time.Duration
	out         chan Update

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
}

// NewObserver builds an Observer publishing to a channel with the given
// buffer size.
func NewObserver(clients Clients, deployments func() types.Deployments, interval time.Duration, bufferSize int) *Observer {
	return &Observer{
		clients:     clients,
		deployments: deployments,
		interval:    interval,
		out:         make(chan Update, bufferSize),
		cancel:      make(map[string]context.CancelFunc),
	}
}

// Updates returns the channel the Rebalancer consumes.
func (o *Observer) Updates() <-chan Update { return o.out }

// OnNetworksUpdated implements network.NetworkUpdateListener: after every
// network change it registers a watcher for each active network's pool
// address, resolved from the deployment snapshot at registration time, and
// stops watchers for networks no longer active.
func (o *Observer) OnNetworksUpdated(active []types.Network) error {
	deployments := o.deployments()
	activeNames := make(map[string]struct{}, len(active))
	for _, n := range active {
		activeNames[n.Name] = struct{}{}
	}

	o.mu.Lock()
	for name, cancel := range o.cancel {
		if _, ok := activeNames[name]; !ok {
			cancel()
			delete(o.cancel, name)
		}
	}
	o.mu.Unlock()

	for _, n := range active {
		o.mu.Lock()
		_, exists := o.cancel[n.Name]
		o.mu.Unlock()
		if exists {
			continue
		}

		addr, ok := deployments.PoolAddress(n.Name)
		if !ok {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		o.mu.Lock()
		o.cancel[n.Name] = cancel
		o.mu.Unlock()

		go o.watch(ctx, n.Name, addr)
	}
	return nil
}

func (o *Observer) watch(ctx context.Context, network string, pool common.Address) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx, network, pool)
		}
	}
}

func (o *Observer) poll(ctx context.Context, network string, pool common.Address) {
	client, err := o.clients.Client(network)
	if err != nil {
		log.Printf("ERROR: pool observer client for %s: %v", network, err)
		return
	}
	result, err := client.Call(ctx, pool, &PoolABI, "getPoolData")
	if err != nil {
		log.Printf("ERROR: getPoolData(%s): %v", network, err)
		o.send(Update{Network: network, Err: err})
		return
	}
	deficit, ok1 := result[0].(*big.Int)
	surplus, ok2 := result[1].(*big.Int)
	if !ok1 || !ok2 {
		log.Printf("ERROR: getPoolData(%s): unexpected result layout", network)
		return
	}
	o.send(Update{Network: network, Deficit: deficit, Surplus: surplus})
}

func (o *Observer) send(u Update) {
	select {
	case o.out <- u:
	default:
		log.Printf("WARN: pool observer output channel full, dropping update for %s", u.Network)
	}
}

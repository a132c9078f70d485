// Package balance implements the BalanceTracker: per-network {native, USDC,
// IOU} balances plus allowance management, generalized to arbitrary networks
// and tokens rather than one fixed pair, with a per-network balance map.
package balance

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

// ERC20ABI is the minimal ERC-20 subset the tracker packs calls against.
var ERC20ABI = mustParseERC20ABI()

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

func mustParseERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Clients resolves a chain.Client for a given network name.
type Clients interface {
	Client(network string) (chain.Client, error)
}

// watcherKey identifies one (network, token) balance watcher. Keying on the
// pair rather than just the network lets a network that is already active
// pick up a watcher for a token whose deployment address appears later,
// without needing a full departure/rejoin of the network itself.
type watcherKey struct {
	network string
	kind    types.TokenKind
}

// Tracker maintains, per active network, {native, USDC, IOU} balances.
type Tracker struct {
	operator    common.Address
	clients     Clients
	deployments func() types.Deployments
	interval    time.Duration

	minAllowanceUSDC *big.Int
	minAllowanceIOU  *big.Int

	mu       sync.RWMutex
	balances map[string]types.TokenBalance

	allowances *AllowanceManager

	watchersMu sync.Mutex
	cancel     map[watcherKey]context.CancelFunc
}

// NewTracker builds a Tracker. deployments returns the current Deployments
// snapshot (the tracker itself never fetches manifests). minAllowanceUSDC/IOU
// seed the allowance floor for a network's pool the first time a watcher for
// that token is registered.
func NewTracker(operator common.Address, clients Clients, deployments func() types.Deployments, interval time.Duration, minAllowanceUSDC, minAllowanceIOU *big.Int) *Tracker {
	t := &Tracker{
		operator:         operator,
		clients:          clients,
		deployments:      deployments,
		interval:         interval,
		minAllowanceUSDC: minAllowanceUSDC,
		minAllowanceIOU:  minAllowanceIOU,
		balances:         make(map[string]types.TokenBalance),
		cancel:           make(map[watcherKey]context.CancelFunc),
	}
	t.allowances = NewAllowanceManager(clients, operator)
	return t
}

// Allowances exposes the allowance manager for the executor.
func (t *Tracker) Allowances() *AllowanceManager { return t.allowances }

// OnNetworksUpdated implements network.NetworkUpdateListener: it drops
// watchers for networks no longer active, creates watchers for newly
// deployed (network, token) pairs among the active networks (including ones
// already active whose deployment gained a token since the last call), and
// immediately refreshes native balances for the new set.
func (t *Tracker) OnNetworksUpdated(active []types.Network) error {
	activeNames := make(map[string]struct{}, len(active))
	for _, n := range active {
		activeNames[n.Name] = struct{}{}
	}

	t.watchersMu.Lock()
	for key, cancel := range t.cancel {
		if _, ok := activeNames[key.network]; !ok {
			cancel()
			delete(t.cancel, key)
		}
	}
	t.watchersMu.Unlock()

	t.mu.Lock()
	for name := range t.balances {
		if _, ok := activeNames[name]; !ok {
			delete(t.balances, name)
		}
	}
	t.mu.Unlock()

	deployments := t.deployments()
	for _, n := range active {
		_, hasUSDC := deployments.USDC[n.Name]
		_, hasIOU := deployments.IOU[n.Name]
		if !hasUSDC && !hasIOU {
			continue
		}

		t.mu.Lock()
		if _, ok := t.balances[n.Name]; !ok {
			t.balances[n.Name] = types.NewTokenBalance()
		}
		t.mu.Unlock()

		pool, hasPool := deployments.PoolAddress(n.Name)
		if hasUSDC {
			t.startWatcherIfAbsent(n.Name, types.USDC, deployments.USDC[n.Name], pool, hasPool, t.minAllowanceUSDC)
		}
		if hasIOU {
			t.startWatcherIfAbsent(n.Name, types.IOU, deployments.IOU[n.Name], pool, hasPool, t.minAllowanceIOU)
		}
	}

	return t.refreshNativeBalances(context.Background(), active)
}

// startWatcherIfAbsent starts a watcher goroutine for (network, kind) unless
// one is already running, seeding its allowance floor against pool the first
// time it starts.
func (t *Tracker) startWatcherIfAbsent(network string, kind types.TokenKind, token common.Address, pool common.Address, hasPool bool, floor *big.Int) {
	key := watcherKey{network: network, kind: kind}
	t.watchersMu.Lock()
	if _, exists := t.cancel[key]; exists {
		t.watchersMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel[key] = cancel
	t.watchersMu.Unlock()

	if hasPool {
		t.allowances.SetFloor(network, token, pool, floor)
	}
	go t.watchToken(ctx, network, kind, token)
}

// watchToken periodically reads balanceOf(operator) and updates only the
// affected field, preserving the rest (copy-on-write per entry).
func (t *Tracker) watchToken(ctx context.Context, network string, kind types.TokenKind, token common.Address) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refreshToken(ctx, network, kind, token)
		}
	}
}

func (t *Tracker) refreshToken(ctx context.Context, network string, kind types.TokenKind, token common.Address) {
	client, err := t.clients.Client(network)
	if err != nil {
		log.Printf("ERROR: balance watcher %s/%s: %v", network, kind, err)
		return
	}
	result, err := client.Call(ctx, token, &ERC20ABI, "balanceOf", t.operator)
	if err != nil {
		log.Printf("ERROR: balanceOf(%s, %s): %v", network, kind, err)
		return
	}
	amount, ok := result[0].(*big.Int)
	if !ok {
		log.Printf("ERROR: balanceOf(%s, %s): unexpected result type", network, kind)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[network]
	if !ok {
		bal = types.NewTokenBalance()
	}
	bal = bal.Clone()
	bal.Tokens[kind] = amount
	t.balances[network] = bal
}

// ForceUpdate refreshes every tracked balance immediately; the executor
// calls this between opportunities so downstream feasibility checks see the
// effect of the previous call.
func (t *Tracker) ForceUpdate(ctx context.Context) {
	t.mu.RLock()
	networks := make([]string, 0, len(t.balances))
	for n := range t.balances {
		networks = append(networks, n)
	}
	t.mu.RUnlock()

	deployments := t.deployments()
	for _, n := range networks {
		if addr, ok := deployments.USDC[n]; ok {
			t.refreshToken(ctx, n, types.USDC, addr)
		}
		if addr, ok := deployments.IOU[n]; ok {
			t.refreshToken(ctx, n, types.IOU, addr)
		}
	}

	var active []types.Network
	for _, n := range networks {
		active = append(active, types.Network{Name: n})
	}
	_ = t.refreshNativeBalances(ctx, active)
}

// refreshNativeBalances refreshes native balances for the given networks via
// getBalance(operator), since contract watchers cannot observe it.
func (t *Tracker) refreshNativeBalances(ctx context.Context, networks []types.Network) error {
	for _, n := range networks {
		client, err := t.clients.Client(n.Name)
		if err != nil {
			log.Printf("ERROR: native balance client for %s: %v", n.Name, err)
			continue
		}
		bal, err := client.NativeBalance(ctx, t.operator)
		if err != nil {
			log.Printf("ERROR: native balance for %s: %v", n.Name, err)
			continue
		}
		t.mu.Lock()
		entry, ok := t.balances[n.Name]
		if !ok {
			entry = types.NewTokenBalance()
		} else {
			entry = entry.Clone()
		}
		entry.Native = bal
		t.balances[n.Name] = entry
		t.mu.Unlock()
	}
	return nil
}

// Balance returns a copy of the balance entry for network.
func (t *Tracker) Balance(network string) (types.TokenBalance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.balances[network]
	if !ok {
		return types.TokenBalance{}, false
	}
	return b.Clone(), true
}

// Token returns the balance of one token kind on one network.
func (t *Tracker) Token(network string, kind types.TokenKind) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.balances[network]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Token(kind))
}

// Total sums a token kind's balance across all tracked networks.
func (t *Tracker) Total(kind types.TokenKind) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := new(big.Int)
	for _, b := range t.balances {
		total.Add(total, b.Token(kind))
	}
	return total
}

// HasNative reports whether network's native balance is >= min.
func (t *Tracker) HasNative(network string, min *big.Int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.balances[network]
	if !ok {
		return false
	}
	return b.Native.Cmp(min) >= 0
}

// HasToken reports whether network's token balance is >= min.
func (t *Tracker) HasToken(network string, kind types.TokenKind, min *big.Int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.balances[network]
	if !ok {
		return false
	}
	return b.Token(kind).Cmp(min) >= 0
}

// Snapshot returns a copy of the full per-network balance map.
func (t *Tracker) Snapshot() map[string]types.TokenBalance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]types.TokenBalance, len(t.balances))
	for k, v := range t.balances {
		out[k] = v.Clone()
	}
	return out
}

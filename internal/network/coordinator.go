package network

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// NetworkRegistry returns all candidate networks for the current mode. This
// interface is what the core depends on; HTTPNetworkRegistry is the concrete
// implementation backing it.
type NetworkRegistry interface {
	Networks(ctx context.Context, mode types.Mode) ([]types.Network, error)
}

// NetworkUpdateListener is notified whenever the active network set changes.
type NetworkUpdateListener interface {
	OnNetworksUpdated(active []types.Network) error
}

// Config is the subset of top-level configuration the coordinator consumes.
type Config struct {
	UpdateInterval time.Duration
	Whitelist      map[uint64]struct{} // empty/nil means "no whitelist filter"
	Blacklist      map[uint64]struct{}
	Mode           types.Mode
}

// Coordinator maintains the set of active networks.
type Coordinator struct {
	registry   NetworkRegistry
	deployment *DeploymentCoordinator
	cfg        Config

	mu       sync.RWMutex
	active   []types.Network
	byName   map[string]types.Network
	byChain  map[uint64]types.Network
	bySelect map[string]types.Network

	listenerMu   sync.Mutex
	listeners    []namedListener
	listenerSeen map[string]struct{}

	localhostNetworks []types.Network // used when cfg.Mode == Localhost
}

type namedListener struct {
	name     string
	listener NetworkUpdateListener
}

// NewCoordinator builds a Coordinator. localhostNetworks is the candidate
// list injected when cfg.Mode == Localhost (registry is not consulted).
func NewCoordinator(registry NetworkRegistry, deployment *DeploymentCoordinator, cfg Config, localhostNetworks []types.Network) *Coordinator {
	return &Coordinator{
		registry:          registry,
		deployment:        deployment,
		cfg:               cfg,
		byName:            make(map[string]types.Network),
		byChain:           make(map[uint64]types.Network),
		bySelect:          make(map[string]types.Network),
		listenerSeen:      make(map[string]struct{}),
		localhostNetworks: localhostNetworks,
	}
}

// RegisterListener adds a listener keyed by a logical name. Re-registering an
// already-known name is a no-op that logs a warning.
func (c *Coordinator) RegisterListener(name string, l NetworkUpdateListener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	if _, ok := c.listenerSeen[name]; ok {
		log.Printf("WARN: network listener %q already registered, ignoring", name)
		return
	}
	c.listenerSeen[name] = struct{}{}
	c.listeners = append(c.listeners, namedListener{name: name, listener: l})
}

// Start performs the initial refresh. A listener error during this initial
// notification propagates and aborts startup.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.refresh(ctx, true)
}

// Run launches the periodic refresh loop; it returns when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(ctx, false); err != nil {
				log.Printf("ERROR: network refresh failed: %v", err)
			}
		}
	}
}

// ForceRefresh triggers an out-of-band refresh outside the periodic timer.
func (c *Coordinator) ForceRefresh(ctx context.Context) error {
	return c.refresh(ctx, false)
}

func (c *Coordinator) refresh(ctx context.Context, initial bool) error {
	candidates, err := c.candidateNetworks(ctx)
	if err != nil {
		return err
	}

	if err := c.deployment.Refresh(ctx); err != nil {
		return err
	}
	deployments := c.deployment.Snapshot()

	next := filterActive(candidates, deployments, c.cfg)
	sort.Slice(next, func(i, j int) bool { return next[i].Name < next[j].Name })

	c.mu.RLock()
	changed := !sameChainIDSet(c.active, next)
	c.mu.RUnlock()
	if !changed {
		return nil
	}

	byName := make(map[string]types.Network, len(next))
	byChain := make(map[uint64]types.Network, len(next))
	bySelect := make(map[string]types.Network, len(next))
	for _, n := range next {
		byName[n.Name] = n
		byChain[n.ChainID] = n
		bySelect[n.Selector] = n
	}

	c.mu.Lock()
	c.active = next
	c.byName = byName
	c.byChain = byChain
	c.bySelect = bySelect
	c.mu.Unlock()

	return c.notifyListeners(next, initial)
}

// notifyListeners notifies listeners sequentially in registration order. A
// listener error is logged and does not abort notification of the next
// listener, except during the initial notification where it propagates.
func (c *Coordinator) notifyListeners(active []types.Network, initial bool) error {
	c.listenerMu.Lock()
	snapshot := make([]namedListener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.listenerMu.Unlock()

	activeCopy := make([]types.Network, len(active))
	copy(activeCopy, active)

	for _, nl := range snapshot {
		if err := nl.listener.OnNetworksUpdated(activeCopy); err != nil {
			if initial {
				return types.Wrap(types.ErrConfigInvalid, err, "listener %q failed during startup", nl.name)
			}
			log.Printf("ERROR: network listener %q failed: %v", nl.name, err)
		}
	}
	return nil
}

func (c *Coordinator) candidateNetworks(ctx context.Context) ([]types.Network, error) {
	if c.cfg.Mode == types.Localhost {
		return c.localhostNetworks, nil
	}
	return c.registry.Networks(ctx, c.cfg.Mode)
}

// filterActive keeps a network iff it has a pool deployment (or is the
// parent pool's network) and passes the whitelist/blacklist filters. The
// parent pool's network is always active regardless of those filters: it is
// the redemption hub the rest of the pipeline depends on, and a blacklisted
// or non-whitelisted chain ID must not silently drop it.
func filterActive(candidates []types.Network, d types.Deployments, cfg Config) []types.Network {
	var out []types.Network
	for _, n := range candidates {
		isParent := n.Name == d.ParentPool.Network
		if isParent {
			out = append(out, n)
			continue
		}
		_, hasPool := d.Pools[n.Name]
		if !hasPool {
			continue
		}
		if len(cfg.Whitelist) > 0 {
			if _, ok := cfg.Whitelist[n.ChainID]; !ok {
				continue
			}
		}
		if _, blocked := cfg.Blacklist[n.ChainID]; blocked {
			continue
		}
		out = append(out, n)
	}
	return out
}

func sameChainIDSet(a, b []types.Network) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[uint64]struct{}, len(a))
	for _, n := range a {
		ids[n.ChainID] = struct{}{}
	}
	for _, n := range b {
		if _, ok := ids[n.ChainID]; !ok {
			return false
		}
	}
	return true
}

// ActiveNetworks returns a copy of the current active set.
func (c *Coordinator) ActiveNetworks() []types.Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Network, len(c.active))
	copy(out, c.active)
	return out
}

// ByName looks up an active network by name.
func (c *Coordinator) ByName(name string) (types.Network, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.byName[name]
	if !ok {
		return types.Network{}, types.Errf(types.ErrNotFound, "network %q not active", name)
	}
	return n, nil
}

// ByChainID looks up an active network by chain id.
func (c *Coordinator) ByChainID(id uint64) (types.Network, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.byChain[id]
	if !ok {
		return types.Network{}, types.Errf(types.ErrNotFound, "chain id %d not active", id)
	}
	return n, nil
}

// BySelector looks up an active network by selector.
func (c *Coordinator) BySelector(selector string) (types.Network, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.bySelect[selector]
	if !ok {
		return types.Network{}, types.Errf(types.ErrNotFound, "selector %q not active", selector)
	}
	return n, nil
}

// ByMode partitions the active set into networks matching mode.
func (c *Coordinator) ByMode(mode types.Mode) []types.Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Network
	for _, n := range c.active {
		if n.Mode == mode {
			out = append(out, n)
		}
	}
	return out
}

// Deployments exposes the current deployment snapshot.
func (c *Coordinator) Deployments() types.Deployments {
	return c.deployment.Snapshot()
}

package chain

import (
	"context"
	"log"
	"math/big"
	"sync"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// SignerRegistry resolves the Signer for a network's operator address. Key
// management lives in the signer package; this is the narrow interface the
// chain registry depends on.
type SignerRegistry interface {
	SignerFor(network types.Network) (Signer, error)
}

// Registry maintains one EthClient per active network, dialed lazily on the
// first OnNetworksUpdated notification that includes it and torn down when
// the network leaves the active set. Mirrors the Coordinator's own
// listener-driven lifecycle so every dependent (balance tracker, pool
// observer, executor) sees a consistent client set without polling the
// coordinator itself.
type Registry struct {
	signers SignerRegistry

	mu      sync.RWMutex
	clients map[string]*EthClient
}

// NewRegistry builds an empty Registry. signers may be nil, in which case
// every client is read-only (Send returns an error).
func NewRegistry(signers SignerRegistry) *Registry {
	return &Registry{signers: signers, clients: make(map[string]*EthClient)}
}

// Client resolves the dialed client for network, or ErrNetworkNotActive if
// no client has been dialed for it yet.
func (r *Registry) Client(network string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[network]
	if !ok {
		return nil, types.Errf(types.ErrNetworkNotActive, "no client for %s", network)
	}
	return c, nil
}

// ChainID returns the chain id of an already-dialed network's client.
func (r *Registry) ChainID(network string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[network]
	if !ok {
		return 0, types.Errf(types.ErrNetworkNotActive, "no client for %s", network)
	}
	return c.chainID.Uint64(), nil
}

// OnNetworksUpdated implements network.NetworkUpdateListener: it dials a
// client for every newly active network and drops clients for networks that
// left the active set. Dial failures are logged; that network's dependents
// simply see ErrNetworkNotActive until the next refresh retries it.
func (r *Registry) OnNetworksUpdated(active []types.Network) error {
	activeNames := make(map[string]struct{}, len(active))
	for _, n := range active {
		activeNames[n.Name] = struct{}{}
	}

	r.mu.Lock()
	for name := range r.clients {
		if _, ok := activeNames[name]; !ok {
			delete(r.clients, name)
		}
	}
	r.mu.Unlock()

	for _, n := range active {
		r.mu.RLock()
		_, exists := r.clients[n.Name]
		r.mu.RUnlock()
		if exists || len(n.RPCURLs) == 0 {
			continue
		}

		var signer Signer
		if r.signers != nil {
			s, err := r.signers.SignerFor(n)
			if err != nil {
				log.Printf("ERROR: signer for %s: %v", n.Name, err)
				continue
			}
			signer = s
		}

		client, err := NewEthClient(context.Background(), n.RPCURLs[0], new(big.Int).SetUint64(n.ChainID), signer)
		if err != nil {
			log.Printf("ERROR: dial %s: %v", n.Name, err)
			continue
		}

		r.mu.Lock()
		r.clients[n.Name] = client
		r.mu.Unlock()
	}
	return nil
}

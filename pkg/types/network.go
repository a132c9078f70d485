// Package types holds the data model shared across the rebalancer: networks,
// deployments, balances, pool readings and the opportunities derived from them.
package types

import "github.com/ethereum/go-ethereum/common"

// Mode is the network tier a deployment belongs to.
type Mode int

const (
	Mainnet Mode = iota
	Testnet
	Localhost
)

func (m Mode) String() string {
	switch m {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Localhost:
		return "localhost"
	default:
		return "unknown"
	}
}

// ParseMode parses the NETWORK_MODE config value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	case "localhost":
		return Localhost, nil
	default:
		return 0, Errf(ErrConfigInvalid, "unknown network mode %q", s)
	}
}

// Network is a single blockchain a pool is deployed on. Name is the primary key
// used throughout the rest of the system.
type Network struct {
	Name     string
	ChainID  uint64
	Selector string
	Mode     Mode
	RPCURLs  []string
}

// TokenKind is a closed enum over the two tokens the operator tracks per
// network, avoiding spelling-drift bugs ("usdc" vs "USDC") between call
// sites.
type TokenKind int

const (
	USDC TokenKind = iota
	IOU
)

func (t TokenKind) String() string {
	switch t {
	case USDC:
		return "USDC"
	case IOU:
		return "IOU"
	default:
		return "UNKNOWN"
	}
}

// Deployments is a consistent snapshot of contract addresses across the
// active networks. Exactly one parent pool exists after a successful load.
type Deployments struct {
	Pools      map[string]common.Address // network name -> child/parent pool address
	ParentPool ParentPool
	USDC       map[string]common.Address
	IOU        map[string]common.Address
}

// ParentPool identifies the unique redemption-hub pool.
type ParentPool struct {
	Network string
	Address common.Address
}

// PoolAddress resolves the pool contract for a network: the parent pool
// address if network equals the parent pool's network, else the child pool
// address from Pools.
func (d Deployments) PoolAddress(network string) (common.Address, bool) {
	if network == d.ParentPool.Network {
		return d.ParentPool.Address, true
	}
	addr, ok := d.Pools[network]
	return addr, ok
}

// Clone returns a deep-enough copy safe for a reader to hold across updates
// to the coordinator's in-memory snapshot.
func (d Deployments) Clone() Deployments {
	out := Deployments{
		Pools:      make(map[string]common.Address, len(d.Pools)),
		ParentPool: d.ParentPool,
		USDC:       make(map[string]common.Address, len(d.USDC)),
		IOU:        make(map[string]common.Address, len(d.IOU)),
	}
	for k, v := range d.Pools {
		out.Pools[k] = v
	}
	for k, v := range d.USDC {
		out.USDC[k] = v
	}
	for k, v := range d.IOU {
		out.IOU[k] = v
	}
	return out
}

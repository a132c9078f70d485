package balance

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lbf-network/rebalancer/internal/chain"
	"github.com/lbf-network/rebalancer/pkg/types"
)

type allowanceKey struct {
	network string
	token   common.Address
	spender common.Address
}

// AllowanceManager performs blocking allowance reads and ensures, with a
// single pending ensure at a time per (network, token, spender), covering
// arbitrary token/spender pairs rather than one fixed pair per network.
type AllowanceManager struct {
	clients  Clients
	operator common.Address

	mu     sync.Mutex
	inFlight map[allowanceKey]*sync.Mutex

	floorsMu sync.RWMutex
	floors   map[allowanceKey]*big.Int
}

// NewAllowanceManager builds an AllowanceManager.
func NewAllowanceManager(clients Clients, operator common.Address) *AllowanceManager {
	return &AllowanceManager{
		clients:  clients,
		operator: operator,
		inFlight: make(map[allowanceKey]*sync.Mutex),
		floors:   make(map[allowanceKey]*big.Int),
	}
}

// SetFloor configures the minimum approve value for a (network, token,
// spender) triple; unset floors default to 0.
func (m *AllowanceManager) SetFloor(network string, token, spender common.Address, floor *big.Int) {
	m.floorsMu.Lock()
	defer m.floorsMu.Unlock()
	m.floors[allowanceKey{network, token, spender}] = new(big.Int).Set(floor)
}

func (m *AllowanceManager) floor(key allowanceKey) *big.Int {
	m.floorsMu.RLock()
	defer m.floorsMu.RUnlock()
	if f, ok := m.floors[key]; ok {
		return new(big.Int).Set(f)
	}
	return new(big.Int)
}

func (m *AllowanceManager) lockFor(key allowanceKey) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.inFlight[key]
	if !ok {
		l = &sync.Mutex{}
		m.inFlight[key] = l
	}
	return l
}

// GetAllowance reads the current on-chain allowance.
func (m *AllowanceManager) GetAllowance(ctx context.Context, network string, token, spender common.Address) (*big.Int, error) {
	client, err := m.clients.Client(network)
	if err != nil {
		return nil, types.Wrap(types.ErrNetworkNotActive, err, "allowance client for %s", network)
	}
	result, err := client.Call(ctx, token, &ERC20ABI, "allowance", m.operator, spender)
	if err != nil {
		return nil, types.Wrap(types.ErrRpcReadFailed, err, "allowance(%s)", network)
	}
	amount, ok := result[0].(*big.Int)
	if !ok {
		return nil, types.Errf(types.ErrRpcReadFailed, "allowance(%s): unexpected result type", network)
	}
	return amount, nil
}

// EnsureAllowance reads the current allowance; if it is already >= required,
// it is a no-op. Otherwise it submits approve(spender, new) where new =
// max(required, floor) and waits for the receipt. It never sends an approve
// that would lower a currently-sufficient allowance.
func (m *AllowanceManager) EnsureAllowance(ctx context.Context, network string, token, spender common.Address, required *big.Int) error {
	key := allowanceKey{network, token, spender}
	lock := m.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.GetAllowance(ctx, network, token, spender)
	if err != nil {
		return err
	}
	if current.Cmp(required) >= 0 {
		return nil
	}

	newAllowance := new(big.Int).Set(required)
	if floor := m.floor(key); floor.Cmp(newAllowance) > 0 {
		newAllowance = floor
	}

	client, err := m.clients.Client(network)
	if err != nil {
		return types.Wrap(types.ErrNetworkNotActive, err, "approve client for %s", network)
	}
	hash, err := client.Send(ctx, token, &ERC20ABI, 0, "approve", spender, newAllowance)
	if err != nil {
		return types.Wrap(types.ErrAllowanceFailed, err, "approve(%s, %s)", network, newAllowance)
	}
	if _, err := client.WaitForReceipt(ctx, hash); err != nil {
		return types.Wrap(types.ErrAllowanceFailed, err, "approve receipt(%s)", network)
	}
	return nil
}

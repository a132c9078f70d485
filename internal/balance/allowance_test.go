package balance

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbf-network/rebalancer/internal/chain"
)

type singleClientResolver struct {
	client chain.Client
}

func (s singleClientResolver) Client(network string) (chain.Client, error) { return s.client, nil }

func TestEnsureAllowance_NoOpWhenSufficient(t *testing.T) {
	sendCalls := 0
	fake := &chain.FakeClient{
		CallFunc: func(contract common.Address, method string, args []any) ([]any, error) {
			return []any{big.NewInt(1000)}, nil
		},
		SendFunc: func(contract common.Address, method string, args []any) (common.Hash, error) {
			sendCalls++
			return common.HexToHash("0xdead"), nil
		},
	}
	m := NewAllowanceManager(singleClientResolver{client: fake}, common.HexToAddress("0xOPERATOR"))

	err := m.EnsureAllowance(context.Background(), "A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, 0, sendCalls, "sufficient allowance must not trigger approve")
}

func TestEnsureAllowance_ApprovesWhenInsufficient(t *testing.T) {
	var approvedAmount *big.Int
	fake := &chain.FakeClient{
		CallFunc: func(contract common.Address, method string, args []any) ([]any, error) {
			return []any{big.NewInt(100)}, nil
		},
		SendFunc: func(contract common.Address, method string, args []any) (common.Hash, error) {
			approvedAmount = args[1].(*big.Int)
			return common.HexToHash("0xdead"), nil
		},
	}
	m := NewAllowanceManager(singleClientResolver{client: fake}, common.HexToAddress("0xOPERATOR"))

	err := m.EnsureAllowance(context.Background(), "A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(500))
	require.NoError(t, err)
	require.NotNil(t, approvedAmount)
	assert.Equal(t, big.NewInt(500), approvedAmount)
}

// A floor higher than the required amount wins, but a floor never lowers an
// already-sufficient allowance (EnsureAllowance returns before the floor is
// even consulted in that case).
func TestEnsureAllowance_FloorRaisesApprovedAmount(t *testing.T) {
	var approvedAmount *big.Int
	fake := &chain.FakeClient{
		CallFunc: func(contract common.Address, method string, args []any) ([]any, error) {
			return []any{big.NewInt(0)}, nil
		},
		SendFunc: func(contract common.Address, method string, args []any) (common.Hash, error) {
			approvedAmount = args[1].(*big.Int)
			return common.HexToHash("0xdead"), nil
		},
	}
	m := NewAllowanceManager(singleClientResolver{client: fake}, common.HexToAddress("0xOPERATOR"))
	m.SetFloor("A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(10_000))

	err := m.EnsureAllowance(context.Background(), "A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), approvedAmount)
}

func TestEnsureAllowance_NeverLowersSufficientAllowance(t *testing.T) {
	sendCalls := 0
	fake := &chain.FakeClient{
		CallFunc: func(contract common.Address, method string, args []any) ([]any, error) {
			return []any{big.NewInt(50_000)}, nil
		},
		SendFunc: func(contract common.Address, method string, args []any) (common.Hash, error) {
			sendCalls++
			return common.HexToHash("0xdead"), nil
		},
	}
	m := NewAllowanceManager(singleClientResolver{client: fake}, common.HexToAddress("0xOPERATOR"))
	m.SetFloor("A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(10))

	err := m.EnsureAllowance(context.Background(), "A", common.HexToAddress("0x1"), common.HexToAddress("0x2"), big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, 0, sendCalls)
}

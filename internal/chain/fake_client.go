package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// FakeClient is an in-memory Client used by tests across packages that
// depend on chain.Client, avoiding a live RPC endpoint.
type FakeClient struct {
	mu sync.Mutex

	// CallFunc, when set, answers every Call.
	CallFunc func(contract common.Address, method string, args []any) ([]any, error)
	// SendFunc, when set, answers every Send.
	SendFunc func(contract common.Address, method string, args []any) (common.Hash, error)
	// Receipts maps a tx hash to the receipt WaitForReceipt returns.
	Receipts map[common.Hash]*Receipt
	// Natives maps an address to its native balance.
	Natives map[common.Address]*big.Int

	nextHash uint64
}

// NewFakeClient returns a ready-to-use FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Receipts: make(map[common.Hash]*Receipt),
		Natives:  make(map[common.Address]*big.Int),
	}
}

func (f *FakeClient) Call(_ context.Context, contract common.Address, _ *abi.ABI, method string, args ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CallFunc == nil {
		return nil, nil
	}
	return f.CallFunc(contract, method, args)
}

func (f *FakeClient) Send(_ context.Context, contract common.Address, _ *abi.ABI, _ uint64, method string, args ...any) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Receipts == nil {
		f.Receipts = make(map[common.Hash]*Receipt)
	}
	if f.SendFunc != nil {
		hash, err := f.SendFunc(contract, method, args)
		if err != nil {
			return common.Hash{}, err
		}
		if _, ok := f.Receipts[hash]; !ok {
			f.Receipts[hash] = &Receipt{TxHash: hash, Status: 1}
		}
		return hash, nil
	}
	f.nextHash++
	hash := common.BigToHash(big.NewInt(int64(f.nextHash)))
	f.Receipts[hash] = &Receipt{TxHash: hash, Status: 1}
	return hash, nil
}

func (f *FakeClient) WaitForReceipt(_ context.Context, tx common.Hash) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Receipts[tx]; ok {
		return r, nil
	}
	return &Receipt{TxHash: tx, Status: 1}, nil
}

func (f *FakeClient) NativeBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Natives[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

var _ Client = (*FakeClient)(nil)

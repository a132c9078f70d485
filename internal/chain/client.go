// Package chain defines the read/write primitives the core depends on per
// network: packed contract calls, signed sends, and receipt waits. Full
// transport fallback, nonce allocation and transaction monitoring/retry are
// the responsibility of a fuller client; this package ships only what the
// rebalancer itself needs.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Receipt is the subset of a transaction receipt the core inspects.
type Receipt struct {
	TxHash  common.Hash
	Status  uint64
	GasUsed uint64
}

// Client is the per-chain interface the rebalancer core depends on. One
// Client serves one network; the balance tracker, pool observer and
// executor all resolve a Client by network name.
type Client interface {
	// Call performs a view call against a contract and ABI-decodes the
	// result according to method's outputs.
	Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...any) ([]any, error)

	// Send submits a state-changing transaction and returns its hash
	// immediately; it does not wait for inclusion.
	Send(ctx context.Context, contract common.Address, contractABI *abi.ABI, gasLimit uint64, method string, args ...any) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is mined (or ctx is
	// cancelled) and returns its receipt.
	WaitForReceipt(ctx context.Context, tx common.Hash) (*Receipt, error)

	// NativeBalance reads the native-gas balance of addr.
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
}

package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	rebalancertypes "github.com/lbf-network/rebalancer/pkg/types"
)

// PollInterval is how often WaitForReceipt polls for inclusion.
const PollInterval = 2 * time.Second

// Signer signs transactions for one network's operator address. Private-key
// handling and wallet address derivation live in a SignerRegistry elsewhere;
// EthClient only needs this narrow interface.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// EthClient adapts *ethclient.Client to the Client interface: it packs calls
// through the ABI and polls for receipts rather than subscribing.
type EthClient struct {
	rpc     *ethclient.Client
	chainID *big.Int
	signer  Signer
}

// NewEthClient dials rpcURL. signer may be nil for a read-only client (no
// Send/WaitForReceipt calls expected).
func NewEthClient(ctx context.Context, rpcURL string, chainID *big.Int, signer Signer) (*EthClient, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, rebalancertypes.Wrap(rebalancertypes.ErrRpcReadFailed, err, "dial %s", rpcURL)
	}
	return &EthClient{rpc: c, chainID: chainID, signer: signer}, nil
}

func (c *EthClient) from() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

func (c *EthClient) Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, rebalancertypes.Wrap(rebalancertypes.ErrRpcReadFailed, err, "pack %s", method)
	}
	from := c.from()
	msg := ethereum.CallMsg{From: from, To: &contract, Data: data}
	out, err := c.rpc.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, rebalancertypes.Wrap(rebalancertypes.ErrRpcReadFailed, err, "call %s", method)
	}
	result, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, rebalancertypes.Wrap(rebalancertypes.ErrRpcReadFailed, err, "unpack %s", method)
	}
	return result, nil
}

func (c *EthClient) Send(ctx context.Context, contract common.Address, contractABI *abi.ABI, gasLimit uint64, method string, args ...any) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, rebalancertypes.Errf(rebalancertypes.ErrRpcWriteFailed, "client is read-only: no signer")
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, rebalancertypes.Wrap(rebalancertypes.ErrRpcWriteFailed, err, "pack %s", method)
	}

	from := c.signer.Address()
	nonce, err := c.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, rebalancertypes.Wrap(rebalancertypes.ErrRpcWriteFailed, err, "nonce for %s", from.Hex())
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, rebalancertypes.Wrap(rebalancertypes.ErrRpcWriteFailed, err, "gas price")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := c.signer.SignTx(c.chainID, tx)
	if err != nil {
		return common.Hash{}, rebalancertypes.Wrap(rebalancertypes.ErrRpcWriteFailed, err, "sign %s", method)
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, rebalancertypes.Wrap(rebalancertypes.ErrRpcWriteFailed, err, "send %s", method)
	}
	return signed.Hash(), nil
}

func (c *EthClient) WaitForReceipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, tx)
		if err == nil {
			return &Receipt{TxHash: tx, Status: receipt.Status, GasUsed: receipt.GasUsed}, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, rebalancertypes.Wrap(rebalancertypes.ErrCancelled, ctx.Err(), "waiting for %s", tx.Hex())
			}
			return nil, rebalancertypes.Wrap(rebalancertypes.ErrReceiptTimeout, ctx.Err(), "waiting for %s", tx.Hex())
		case <-ticker.C:
		}
	}
}

func (c *EthClient) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.rpc.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, rebalancertypes.Wrap(rebalancertypes.ErrRpcReadFailed, err, "native balance for %s", addr.Hex())
	}
	return bal, nil
}

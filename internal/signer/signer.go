// Package signer provides private-key handling and wallet address
// derivation for a single operator key, kept out of the core's concerns.
// It exists only so cmd/main.go has something concrete to wire; it is
// deliberately not a vault/HSM integration.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lbf-network/rebalancer/internal/chain"
	lbftypes "github.com/lbf-network/rebalancer/pkg/types"
)

// SingleKeySigner signs every network's transactions with one private key,
// appropriate for an operator running one address across all chains.
type SingleKeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSingleKeySigner parses a hex-encoded (no 0x prefix) secp256k1 private
// key, as loaded from an env var via godotenv.
func NewSingleKeySigner(hexKey string) (*SingleKeySigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &SingleKeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *SingleKeySigner) Address() common.Address { return s.addr }

func (s *SingleKeySigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.NewEIP155Signer(chainID)
	return types.SignTx(tx, signer, s.key)
}

// Registry hands out the same Signer for every network.
type Registry struct {
	signer chain.Signer
}

// NewRegistry builds a Registry around one operator signer.
func NewRegistry(signer chain.Signer) *Registry {
	return &Registry{signer: signer}
}

func (r *Registry) SignerFor(_ lbftypes.Network) (chain.Signer, error) {
	return r.signer, nil
}

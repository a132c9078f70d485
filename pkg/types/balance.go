package types

import (
	"math/big"
	"time"
)

// TokenBalance is the operator's holdings on one network.
type TokenBalance struct {
	Native *big.Int
	Tokens map[TokenKind]*big.Int
}

// NewTokenBalance returns a zeroed balance with USDC/IOU entries present.
func NewTokenBalance() TokenBalance {
	return TokenBalance{
		Native: new(big.Int),
		Tokens: map[TokenKind]*big.Int{
			USDC: new(big.Int),
			IOU:  new(big.Int),
		},
	}
}

// Clone returns a copy so a reader never observes a partially-written update.
func (b TokenBalance) Clone() TokenBalance {
	out := TokenBalance{Native: new(big.Int).Set(b.Native), Tokens: make(map[TokenKind]*big.Int, len(b.Tokens))}
	for k, v := range b.Tokens {
		out.Tokens[k] = new(big.Int).Set(v)
	}
	return out
}

// Token returns the balance for a token kind, or zero if untracked.
func (b TokenBalance) Token(kind TokenKind) *big.Int {
	if v, ok := b.Tokens[kind]; ok {
		return v
	}
	return new(big.Int)
}

// PoolData is the last-observed deficit/surplus for a network's pool.
type PoolData struct {
	Deficit     *big.Int
	Surplus     *big.Int
	LastUpdated time.Time // zero value means never observed
}

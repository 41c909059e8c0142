// Package trade implements the Trade Deriver (C3): a pure function
// that turns a transaction's pre/post token-balance deltas on a pool's
// vaults into a canonical Trade.
package trade

import (
	"math/big"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/bignum"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// Derive returns at most one Trade per call. The second
// return value is false when the transaction is not a swap on this
// pool (liquidity op, multi-leg, or no vault touch) — callers must not
// treat that as an error.
func Derive(tx *domain.Transaction, pool domain.PoolKeys) (*domain.Trade, bool) {
	baseIdx := indexOf(tx.AccountKeys, pool.BaseVault)
	quoteIdx := indexOf(tx.AccountKeys, pool.QuoteVault)
	if baseIdx < 0 || quoteIdx < 0 {
		return nil, false
	}

	baseDelta, ok := vaultDelta(tx, baseIdx)
	if !ok {
		return nil, false
	}
	quoteDelta, ok := vaultDelta(tx, quoteIdx)
	if !ok {
		return nil, false
	}

	var inMint, outMint domain.PubKey
	var amountIn, amountOut *big.Int

	switch {
	case baseDelta.Sign() > 0 && quoteDelta.Sign() < 0:
		inMint, outMint = pool.BaseMint, pool.QuoteMint
		amountIn = baseDelta
		amountOut = new(big.Int).Neg(quoteDelta)
	case quoteDelta.Sign() > 0 && baseDelta.Sign() < 0:
		inMint, outMint = pool.QuoteMint, pool.BaseMint
		amountIn = quoteDelta
		amountOut = new(big.Int).Neg(baseDelta)
	default:
		// both zero, both positive, or both negative: liquidity op,
		// multi-leg, or non-swap.
		return nil, false
	}

	if amountIn.Sign() <= 0 || amountOut.Sign() <= 0 {
		// invariant violation: reject the derived artifact
		// rather than surface a malformed trade.
		return nil, false
	}

	payer, ok := tx.FeePayer()
	if !ok {
		return nil, false
	}

	return &domain.Trade{
		Signature: tx.Signature,
		Slot:      tx.Slot,
		BlockTime: tx.BlockTime,
		PoolID:    pool.PoolID,
		User:      payer,
		InMint:    inMint,
		OutMint:   outMint,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, true
}

func indexOf(keys []domain.PubKey, target domain.PubKey) int {
	if target == "" {
		return -1
	}
	for i, k := range keys {
		if k == target {
			return i
		}
	}
	return -1
}

// vaultDelta computes post(idx)-pre(idx) as a signed arbitrary-
// precision integer. Returns false when the
// account index has no balance entry on either side — there is
// nothing to derive a delta from.
func vaultDelta(tx *domain.Transaction, idx int) (*big.Int, bool) {
	pre, preOK := findBalance(tx.PreBalances, idx)
	post, postOK := findBalance(tx.PostBalances, idx)
	if !preOK && !postOK {
		return nil, false
	}
	preAtoms := big.NewInt(0)
	if preOK {
		n, err := bignum.ParseAtoms(pre.AmountAtoms)
		if err != nil {
			return nil, false
		}
		preAtoms = n
	}
	postAtoms := big.NewInt(0)
	if postOK {
		n, err := bignum.ParseAtoms(post.AmountAtoms)
		if err != nil {
			return nil, false
		}
		postAtoms = n
	}
	return bignum.Delta(preAtoms, postAtoms), true
}

func findBalance(balances []domain.TokenBalance, idx int) (domain.TokenBalance, bool) {
	for _, b := range balances {
		if b.AccountIndex == idx {
			return b, true
		}
	}
	return domain.TokenBalance{}, false
}

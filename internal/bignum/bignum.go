// Package bignum centralises the arbitrary-precision arithmetic every
// token-amount computation requires: vault-delta math,
// volume accumulators, candle aggregates and staking balances. Only the
// serialization boundary (UI fields) is allowed to round to a fixed
// width, and that conversion lives here too so every call site rounds
// the same way.
package bignum

import (
	"fmt"
	"math/big"
)

// ParseAtoms parses a decimal integer string (as returned by
// uiTokenAmount.amount) into a *big.Int. Token-balance atoms must
// come only from this field, never a floating-point UI amount.
func ParseAtoms(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bignum: invalid atoms string %q", s)
	}
	return n, nil
}

// Delta returns post-pre as a signed arbitrary-precision integer.
func Delta(pre, post *big.Int) *big.Int {
	return new(big.Int).Sub(post, pre)
}

// pow10 returns 10^n as a *big.Float, used to convert atoms to UI
// units without accumulating float error for typical decimals ranges.
func pow10(n int) *big.Float {
	f := big.NewFloat(1)
	ten := big.NewFloat(10)
	for i := 0; i < n; i++ {
		f.Mul(f, ten)
	}
	return f
}

// ToUI converts an atoms amount to its UI-denominated value given the
// mint's decimals: ui = atoms / 10^decimals.
func ToUI(atoms *big.Int, decimals int) *big.Float {
	if atoms == nil {
		return big.NewFloat(0)
	}
	f := new(big.Float).SetPrec(200).SetInt(atoms)
	return new(big.Float).SetPrec(200).Quo(f, pow10(decimals))
}

// FromUI converts a UI-denominated value back to atoms, rounding down,
// used only at boundaries that accept UI-denominated input.
func FromUI(ui *big.Float, decimals int) *big.Int {
	scaled := new(big.Float).SetPrec(200).Mul(ui, pow10(decimals))
	i, _ := scaled.Int(nil)
	return i
}

// Price computes quote-per-base given an in/out leg of a trade and the
// mints involved:
//
//	price = amountOutUI/amountInUI when inMint == baseMint
//	price = amountInUI/amountOutUI otherwise
func Price(amountInUI, amountOutUI *big.Float, inIsBase bool) *big.Float {
	if inIsBase {
		return safeQuo(amountOutUI, amountInUI)
	}
	return safeQuo(amountInUI, amountOutUI)
}

func safeQuo(a, b *big.Float) *big.Float {
	if b.Sign() == 0 {
		return big.NewFloat(0)
	}
	return new(big.Float).SetPrec(200).Quo(a, b)
}

// Max returns the larger of two big.Floats.
func Max(a, b *big.Float) *big.Float {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of two big.Floats.
func Min(a, b *big.Float) *big.Float {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Add returns a+b as a new big.Float, leaving both inputs untouched.
func Add(a, b *big.Float) *big.Float {
	return new(big.Float).SetPrec(200).Add(a, b)
}

// Zero returns a fresh zero-valued big.Float at the precision used
// throughout this package.
func Zero() *big.Float { return new(big.Float).SetPrec(200) }

// RoundUI rounds a UI big.Float to a fixed number of decimal places
// for presentation/serialization; the only place this package permits
// loss of precision.
func RoundUI(v *big.Float, places int) float64 {
	scaled := pow10(places)
	scaledVal := new(big.Float).Mul(v, scaled)
	i, _ := scaledVal.Int(nil)
	f := new(big.Float).SetInt(i)
	f.Quo(f, scaled)
	out, _ := f.Float64()
	return out
}

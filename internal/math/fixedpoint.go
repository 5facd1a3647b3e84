package math

import (
	"errors"
	"math/big"
)

// All fee and NAV math runs in a fixed 18-decimal normalized unit regardless
// of the pooled asset's native decimal count. Amounts are *big.Int because
// normalized values exceed int64 range.
const (
	NormalizedDecimals = 18

	// DenomBps is the basis-point denominator: 10_000 bps = 100%.
	DenomBps = 10_000

	// SecondsPerYear is the annualization base for management fees (365d).
	SecondsPerYear = 31_536_000
)

// Wad is 1e18, the normalized unit scale. NAV per share at inception is Wad.
var Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(NormalizedDecimals), nil)

var ErrUnsupportedDecimals = errors.New("native decimal count outside supported range [0, 18]")

// DecimalFactor returns 10^(18-decimals), the multiplier converting native
// amounts to normalized units. The factor is threaded through every fee and
// NAV computation; nothing below assumes a fixed native decimal count.
func DecimalFactor(decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > NormalizedDecimals {
		return nil, ErrUnsupportedDecimals
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(NormalizedDecimals-decimals)), nil), nil
}

// Normalize converts a native amount to the 18-decimal normalized unit.
func Normalize(native, factor *big.Int) *big.Int {
	return new(big.Int).Mul(native, factor)
}

// Denormalize converts a normalized amount back to native units, flooring.
// The sub-native remainder stays in the normalized balance it came from.
func Denormalize(normalized, factor *big.Int) *big.Int {
	return new(big.Int).Quo(normalized, factor)
}

// MulDiv computes a*b/den with a full-width intermediate, flooring.
func MulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// BpsOf computes amount*bps/DenomBps, flooring.
func BpsOf(amount *big.Int, bps int64) *big.Int {
	return MulDiv(amount, big.NewInt(bps), big.NewInt(DenomBps))
}

// NavPerShare computes adjustedAum*Wad/totalSupply. totalSupply must be > 0.
func NavPerShare(adjustedAum, totalSupply *big.Int) *big.Int {
	return MulDiv(adjustedAum, Wad, totalSupply)
}

// SharesForAmount computes the shares minted for a normalized deposit amount
// at the given NAV per share: amount*Wad/nav.
func SharesForAmount(normalized, nav *big.Int) *big.Int {
	return MulDiv(normalized, Wad, nav)
}

// AmountForShares computes the normalized value of a share count at the
// given NAV per share: shares*nav/Wad.
func AmountForShares(shares, nav *big.Int) *big.Int {
	return MulDiv(shares, nav, Wad)
}

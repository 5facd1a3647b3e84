package math_test

import (
	"math/big"
	"testing"

	fixmath "vaultcore/internal/math"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big.Int literal %q", s)
	}
	return v
}

// ============================================================================
// Test: DecimalFactor
// ============================================================================

func TestDecimalFactor_SixDecimals(t *testing.T) {
	factor, err := fixmath.DecimalFactor(6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bigFromString(t, "1000000000000") // 10^12
	if factor.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", factor, want)
	}
}

func TestDecimalFactor_EighteenDecimals(t *testing.T) {
	factor, err := fixmath.DecimalFactor(18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factor.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", factor)
	}
}

func TestDecimalFactor_OutOfRange(t *testing.T) {
	for _, decimals := range []int{-1, 19, 100} {
		if _, err := fixmath.DecimalFactor(decimals); err == nil {
			t.Errorf("decimals=%d: expected error, got nil", decimals)
		}
	}
}

// ============================================================================
// Test: Normalize / Denormalize
// ============================================================================

func TestNormalize_SixDecimals(t *testing.T) {
	factor, _ := fixmath.DecimalFactor(6)

	// 1,000,000 native units of a 6-decimal asset is exactly 1.0 in
	// normalized terms.
	got := fixmath.Normalize(big.NewInt(1_000_000), factor)
	if got.Cmp(fixmath.Wad) != 0 {
		t.Errorf("got %s, want %s", got, fixmath.Wad)
	}
}

func TestDenormalize_Floors(t *testing.T) {
	factor, _ := fixmath.DecimalFactor(6)

	// One normalized sub-unit below 2 native units floors to 1.
	normalized := bigFromString(t, "1999999999999")
	got := fixmath.Denormalize(normalized, factor)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1", got)
	}
}

func TestNormalizeDenormalize_RoundTrip(t *testing.T) {
	factor, _ := fixmath.DecimalFactor(8)
	native := big.NewInt(123_456_789)

	back := fixmath.Denormalize(fixmath.Normalize(native, factor), factor)
	if back.Cmp(native) != 0 {
		t.Errorf("got %s, want %s", back, native)
	}
}

// ============================================================================
// Test: MulDiv / BpsOf
// ============================================================================

func TestMulDiv_FullWidthIntermediate(t *testing.T) {
	// a*b overflows int64 but must not overflow here.
	a := bigFromString(t, "1000000000000000000000")
	b := bigFromString(t, "3000000000000000000")
	den := bigFromString(t, "1000000000000000000")

	got := fixmath.MulDiv(a, b, den)
	want := bigFromString(t, "3000000000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMulDiv_Floors(t *testing.T) {
	got := fixmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10", got)
	}
}

func TestBpsOf(t *testing.T) {
	cases := []struct {
		amount int64
		bps    int64
		want   int64
	}{
		{10_000, 100, 100},  // 1%
		{10_000, 10_000, 10_000},
		{10_000, 0, 0},
		{33, 100, 0}, // floors below one unit
	}
	for _, c := range cases {
		got := fixmath.BpsOf(big.NewInt(c.amount), c.bps)
		if got.Cmp(big.NewInt(c.want)) != 0 {
			t.Errorf("BpsOf(%d, %d): got %s, want %d", c.amount, c.bps, got, c.want)
		}
	}
}

// ============================================================================
// Test: NAV / share conversions
// ============================================================================

func TestSharesForAmount_ParityNav(t *testing.T) {
	// At NAV parity a normalized deposit converts 1:1 into shares.
	factor, _ := fixmath.DecimalFactor(6)
	normalized := fixmath.Normalize(big.NewInt(1_000_000), factor)

	shares := fixmath.SharesForAmount(normalized, fixmath.Wad)
	if shares.Cmp(fixmath.Wad) != 0 {
		t.Errorf("got %s, want %s", shares, fixmath.Wad)
	}
}

func TestSharesForAmount_AboveParity(t *testing.T) {
	// NAV 2.0: the same deposit buys half the shares.
	nav := new(big.Int).Mul(fixmath.Wad, big.NewInt(2))
	shares := fixmath.SharesForAmount(fixmath.Wad, nav)

	want := new(big.Int).Quo(fixmath.Wad, big.NewInt(2))
	if shares.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", shares, want)
	}
}

func TestAmountForShares_InvertsSharesForAmount(t *testing.T) {
	nav := bigFromString(t, "1234500000000000000")
	amount := bigFromString(t, "9876000000000000000000")

	shares := fixmath.SharesForAmount(amount, nav)
	back := fixmath.AmountForShares(shares, nav)

	// Flooring may lose up to one normalized sub-unit per conversion.
	diff := new(big.Int).Sub(amount, back)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
		t.Errorf("round trip drift %s, want within [0, 2]", diff)
	}
}

func TestNavPerShare(t *testing.T) {
	supply := new(big.Int).Mul(fixmath.Wad, big.NewInt(1000))
	aum := new(big.Int).Mul(fixmath.Wad, big.NewInt(1080))

	nav := fixmath.NavPerShare(aum, supply)
	want := bigFromString(t, "1080000000000000000")
	if nav.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", nav, want)
	}
}

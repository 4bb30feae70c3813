package fixedpoint_test

import (
	"math/big"
	"testing"

	"VaultCore/internal/fixedpoint"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad decimal literal %q", s)
	}
	return v
}

// ============================================================================
// Test: scales
// ============================================================================

func TestScales(t *testing.T) {
	if fixedpoint.Wad.String() != "1000000000000000000" {
		t.Errorf("wad: got %s", fixedpoint.Wad)
	}
	if fixedpoint.Ray.String() != "1000000000000000000000000000" {
		t.Errorf("ray: got %s", fixedpoint.Ray)
	}
	if fixedpoint.Rad.Cmp(new(big.Int).Mul(fixedpoint.Wad, fixedpoint.Ray)) != 0 {
		t.Error("rad should equal wad * ray")
	}
}

// ============================================================================
// Test: rounding asymmetry
// ============================================================================

func TestDivCeil_RoundsUp(t *testing.T) {
	got := fixedpoint.DivCeil(big.NewInt(7), big.NewInt(2))
	if got.Int64() != 4 {
		t.Errorf("got %d, want 4", got.Int64())
	}
}

func TestDivFloor_RoundsDown(t *testing.T) {
	got := fixedpoint.DivFloor(big.NewInt(7), big.NewInt(2))
	if got.Int64() != 3 {
		t.Errorf("got %d, want 3", got.Int64())
	}
}

func TestDivCeilFloor_ExactDivision(t *testing.T) {
	num := big.NewInt(10)
	den := big.NewInt(5)
	up := fixedpoint.DivCeil(num, den)
	down := fixedpoint.DivFloor(num, den)
	if up.Int64() != 2 || down.Int64() != 2 {
		t.Errorf("exact division should agree: ceil=%d floor=%d", up.Int64(), down.Int64())
	}
}

func TestDivCeil_NeverBelowFloor(t *testing.T) {
	rate := bigFromString(t, "1001000000000000000000000000") // 1.001 ray
	wad := bigFromString(t, "50000000000000000000")          // 50 wad
	rad := fixedpoint.WadToRad(wad)

	up := fixedpoint.DivCeil(rad, rate)
	down := fixedpoint.DivFloor(rad, rate)

	diff := new(big.Int).Sub(up, down)
	if diff.Int64() != 1 {
		t.Errorf("inexact division: ceil-floor = %s, want 1", diff)
	}

	// Rounded-up normalized debt must cover at least the requested amount.
	covered := fixedpoint.MulRay(up, rate)
	if covered.Cmp(rad) < 0 {
		t.Error("ceil result times rate under-covers the drawn amount")
	}
}

func TestDivCeil_PanicsOnZeroDivisor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero divisor")
		}
	}()
	fixedpoint.DivCeil(big.NewInt(1), new(big.Int))
}

// ============================================================================
// Test: ray arithmetic
// ============================================================================

func TestRMul(t *testing.T) {
	x := bigFromString(t, "1050000000000000000000000000") // 1.05 ray
	y := bigFromString(t, "2000000000000000000000000000") // 2.0 ray
	got := fixedpoint.RMul(x, y)
	want := bigFromString(t, "2100000000000000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRPow_ZeroExponentIsIdentity(t *testing.T) {
	x := bigFromString(t, "1050000000000000000000000000")
	got := fixedpoint.RPow(x, 0, fixedpoint.Ray)
	if got.Cmp(fixedpoint.Ray) != 0 {
		t.Errorf("got %s, want 1.0 ray", got)
	}
}

func TestRPow_Squares(t *testing.T) {
	x := bigFromString(t, "1050000000000000000000000000") // 1.05
	got := fixedpoint.RPow(x, 2, fixedpoint.Ray)
	want := bigFromString(t, "1102500000000000000000000000") // 1.1025
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestRPow_OddExponent(t *testing.T) {
	x := bigFromString(t, "1050000000000000000000000000") // 1.05
	got := fixedpoint.RPow(x, 3, fixedpoint.Ray)
	want := bigFromString(t, "1157625000000000000000000000") // 1.157625
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

// ============================================================================
// Test: scale lifts
// ============================================================================

func TestWadToRad(t *testing.T) {
	wad := bigFromString(t, "50000000000000000000") // 50 wad
	got := fixedpoint.WadToRad(wad)
	want := bigFromString(t, "50000000000000000000000000000000000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMulRay_AbsoluteDebt(t *testing.T) {
	art := bigFromString(t, "50000000000000000000")          // 50 wad
	rate := bigFromString(t, "1001000000000000000000000000") // 1.001 ray
	got := fixedpoint.MulRay(art, rate)
	want := new(big.Int).Mul(art, rate)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestClamp(t *testing.T) {
	if fixedpoint.Clamp(big.NewInt(-5)).Sign() != 0 {
		t.Error("negative should clamp to zero")
	}
	if fixedpoint.Clamp(big.NewInt(5)).Int64() != 5 {
		t.Error("positive should pass through")
	}
}

package fixedpoint

import (
	"math/big"
	"sync"
)

// Fixed-point scales used across the vault.
// Wad: 18-decimal token/collateral amounts.
// Ray: 27-decimal rate accumulator.
// Rad: 45-decimal absolute-debt intermediates (wad * ray).
var (
	Wad = exp10(18)
	Ray = exp10(27)
	Rad = exp10(45)
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// Pooled big.Int for intermediate calculations
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	intPool.Put(v)
}

// Mul returns a * b in a fresh big.Int.
func Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(a, b)
}

// MulRay returns wad * ray, i.e. a rad-scale value. Absolute debt is
// normalized_debt (wad) * rate (ray), truncated to nothing — the product
// is exact at rad scale.
func MulRay(wad, ray *big.Int) *big.Int {
	return new(big.Int).Mul(wad, ray)
}

// WadToRad lifts a wad amount to rad scale for exact comparison against
// absolute debt.
func WadToRad(wad *big.Int) *big.Int {
	return new(big.Int).Mul(wad, Ray)
}

// DivFloor returns num / den rounded toward zero. Both operands must be
// non-negative and den must be positive. This is the SAFE direction for
// debt-decreasing conversions: the caller can never claim more debt
// reduction than the numerator paid for.
func DivFloor(num, den *big.Int) *big.Int {
	if den.Sign() <= 0 {
		panic("fixedpoint: non-positive divisor")
	}
	return new(big.Int).Quo(num, den)
}

// DivCeil returns num / den rounded up. Both operands must be non-negative
// and den must be positive. This is the SAFE direction for debt-increasing
// conversions: truncation can never make a position appear to owe less
// than it truly does.
func DivCeil(num, den *big.Int) *big.Int {
	if den.Sign() <= 0 {
		panic("fixedpoint: non-positive divisor")
	}
	q := new(big.Int)
	r := getInt()
	q.QuoRem(num, den, r)
	if r.Sign() != 0 {
		q.Add(q, oneInt)
	}
	putInt(r)
	return q
}

var oneInt = big.NewInt(1)

// RMul returns x * y / Ray, truncated. Used to apply a ray-scale factor to
// a ray-scale accumulator.
func RMul(x, y *big.Int) *big.Int {
	p := getInt()
	p.Mul(x, y)
	out := new(big.Int).Quo(p, Ray)
	putInt(p)
	return out
}

// RPow computes x^n with x in base units (exponentiation by squaring,
// truncating to base scale at every step). With x = per-second stability
// fee in ray and base = Ray, RPow(x, seconds, Ray) is the compounded
// accrual factor for the elapsed interval.
func RPow(x *big.Int, n int64, base *big.Int) *big.Int {
	z := new(big.Int).Set(base)
	if n == 0 {
		return z
	}

	acc := getInt()
	acc.Set(x)
	tmp := getInt()

	for n > 0 {
		if n&1 == 1 {
			tmp.Mul(z, acc)
			z.Quo(tmp, base)
		}
		n >>= 1
		if n > 0 {
			tmp.Mul(acc, acc)
			acc.Quo(tmp, base)
		}
	}

	putInt(acc)
	putInt(tmp)
	return z
}

// Clamp returns v if v > 0, else a fresh zero.
func Clamp(v *big.Int) *big.Int {
	if v.Sign() > 0 {
		return v
	}
	return new(big.Int)
}

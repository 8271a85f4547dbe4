// Package fixedpoint implements the overflow-checked integer arithmetic
// that every monetary computation in the engine goes through. All
// fractional configuration values are unsigned integers scaled by
// Accuracy; the decay base of the descending auction is scaled by
// DecayOne. No floating point is used anywhere.
package fixedpoint

import (
	"github.com/holiman/uint256"

	"launchcontrol/internal/engine"
)

const (
	// Accuracy is the scale factor for fractional values (release rates,
	// unlock fractions, clearing prices).
	Accuracy uint64 = 1_000_000_000

	// DecayOne is the fixed-point one of the exponential decay base,
	// matching the 1e12 precision of the original price curve.
	DecayOne uint64 = 1_000_000_000_000

	// BasisPointMax is the denominator for discounts expressed in bips.
	BasisPointMax uint64 = 10_000
)

// MulDiv computes a * b / c over a 256-bit intermediate. The product of
// two u64 always fits the intermediate, so the only failure modes are a
// zero divisor and a quotient that does not fit back into u64.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, engine.ErrDivisionByZero
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quot := prod.Div(prod, uint256.NewInt(c))
	if !quot.IsUint64() {
		return 0, engine.ErrArithmeticOverflow
	}
	return quot.Uint64(), nil
}

// MulDivCeil is MulDiv rounding the quotient up instead of down. The
// descending auction charges the least payment amount that suffices, so
// remainders round against the buyer.
func MulDivCeil(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, engine.ErrDivisionByZero
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quot, rem := new(uint256.Int).DivMod(prod, uint256.NewInt(c), new(uint256.Int))
	if !rem.IsZero() {
		quot.AddUint64(quot, 1)
	}
	if !quot.IsUint64() {
		return 0, engine.ErrArithmeticOverflow
	}
	return quot.Uint64(), nil
}

// DecayPow computes baseScaled^exp by square-and-multiply, keeping the
// running value scaled by DecayOne. Every multiplication is checked;
// a 256-bit overflow aborts the whole operation.
func DecayPow(baseScaled uint64, exp uint64) (*uint256.Int, error) {
	one := uint256.NewInt(DecayOne)
	result := new(uint256.Int).Set(one)
	cur := uint256.NewInt(baseScaled)

	for exp > 0 {
		if exp&1 == 1 {
			if _, overflow := result.MulOverflow(result, cur); overflow {
				return nil, engine.ErrArithmeticOverflow
			}
			result.Div(result, one)
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		if _, overflow := cur.MulOverflow(cur, cur); overflow {
			return nil, engine.ErrArithmeticOverflow
		}
		cur.Div(cur, one)
	}
	return result, nil
}

// Pow10 returns 10^n for token decimal rescaling.
func Pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}

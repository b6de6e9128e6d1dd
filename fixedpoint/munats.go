// Package fixedpoint implements the integer μ-nat arithmetic of the PoIES
// scoring predicate. One nat is 1,000,000 μ-nats; every consensus quantity
// (ψ, Θ, H(u)) is an unsigned 64-bit μ-nat count. All operations truncate
// toward zero and are bit-identical across implementations; floating point
// never appears.
package fixedpoint

import (
	"errors"
	"math"
	"math/bits"
)

// MicroPerNat is the fixed-point scale: μ-nats per nat.
const MicroPerNat = 1_000_000

// Ln2Micro is ln(2) in μ-nats, truncated.
const Ln2Micro = 693147

// Micronats is an unsigned μ-nat quantity.
type Micronats = uint64

var errDivByZero = errors.New("fixedpoint: division by zero")

// AddSat returns a+b, saturating at the uint64 maximum.
func AddSat(a, b Micronats) Micronats {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

// AddCap returns min(a+b, cap), saturating before the comparison so an
// overflowing sum still lands on the cap.
func AddCap(a, b, cap Micronats) Micronats {
	s := AddSat(a, b)
	if s > cap {
		return cap
	}
	return s
}

// Clamp bounds v to [lo, hi]. Callers must order the bounds.
func Clamp(v, lo, hi Micronats) Micronats {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Min returns the smaller of a and b.
func Min(a, b Micronats) Micronats {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Micronats) Micronats {
	if a > b {
		return a
	}
	return b
}

// MulSat returns a*b, saturating at the uint64 maximum.
func MulSat(a, b Micronats) Micronats {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// MulDiv returns a*b/den with a 128-bit intermediate, truncating.
// A zero denominator is an error; a quotient above the uint64 range
// saturates.
func MulDiv(a, b, den Micronats) (Micronats, error) {
	if den == 0 {
		return 0, errDivByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return math.MaxUint64, nil
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}

// MulMicro scales a by a μ-scaled factor: a*f/1e6, truncating. Factors
// above 1e6 amplify, below attenuate.
func MulMicro(a, factorMicro Micronats) Micronats {
	v, err := MulDiv(a, factorMicro, MicroPerNat)
	if err != nil {
		return 0
	}
	return v
}

// mulShift64 returns (a*b) >> 64, the high word of the full product.
func mulShift64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

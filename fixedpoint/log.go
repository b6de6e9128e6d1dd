// log.go implements the binary-logarithm kernel behind H(u) and the
// retargeter's ln. The kernel is the classic shift-and-square fractional
// log2: 64 rounds of squaring a Q1.63 mantissa, emitting one result bit per
// round. It involves only integer multiplies and shifts, so every
// implementation computes identical bits. The algorithm identity is pinned
// into the policy root as LnVersion.
package fixedpoint

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

// LnVersion identifies the log kernel. It participates in the policy
// content hash; changing the kernel is a policy change.
const LnVersion = "ln64/v1"

var errLnDomain = errors.New("fixedpoint: ln of zero")

// Log2Frac returns the fractional part of log2(m / 2^63) as a Q0.64 value.
// m must have its top bit set (m/2^63 in [1,2)); the result is in [0,1).
func Log2Frac(m uint64) uint64 {
	var frac uint64
	for i := 0; i < 64; i++ {
		hi, lo := bits.Mul64(m, m) // Q2.126
		frac <<= 1
		if hi&(1<<63) != 0 {
			// Squared value >= 2: emit a 1 and renormalize by halving.
			frac |= 1
			m = hi // (hi:lo) >> 64, back to Q1.63
		} else {
			m = hi<<1 | lo>>63 // (hi:lo) >> 63
		}
	}
	return frac
}

// log2Parts decomposes log2(z) for z > 0 into its integer part and Q0.64
// fractional part.
func log2Parts(z uint64) (int64, uint64) {
	n := bits.Len64(z)         // z in [2^(n-1), 2^n)
	m := z << (64 - uint(n))   // Q1.63 mantissa, top bit set
	return int64(n - 1), Log2Frac(m)
}

// HDraw256 returns H(u) = -ln(u) in μ-nats for a 256-bit draw interpreted
// as the fraction u = U / 2^256. A zero draw is treated as the smallest
// positive unit 2^-256, giving the maximum H(u) of 256·ln2 without
// overflow.
func HDraw256(u *uint256.Int) Micronats {
	if u.IsZero() {
		return 256 * Ln2Micro
	}
	n := u.BitLen() // U in [2^(n-1), 2^n)

	// Normalize so the top limb is a full Q1.63-style mantissa; lower bits
	// beyond 64 are truncated, which can only raise H(u), by far less than
	// one μ-nat.
	v := new(uint256.Int).Lsh(u, uint(256-n))
	m := v[3] // top 64 bits, top bit set

	// -log2(u) = (256 - n) + (1 - log2frac(m)) split into integer and
	// Q0.64 fractional components.
	e := uint64(256 - n)
	f := Log2Frac(m)
	if f == 0 {
		return (e + 1) * Ln2Micro
	}
	// H = (e + (1 - f)) · ln2
	return e*Ln2Micro + mulShift64(-f, Ln2Micro)
}

// HDraw64 is HDraw256 for a 64-bit fraction u = z / 2^64; retained for
// tests that reason about narrow draws.
func HDraw64(z uint64) Micronats {
	if z == 0 {
		return 64 * Ln2Micro
	}
	i, f := log2Parts(z)
	e := uint64(63 - i)
	if f == 0 {
		return (e + 1) * Ln2Micro
	}
	return e*Ln2Micro + mulShift64(-f, Ln2Micro)
}

// LnRatioMicro returns ln(num/den) in signed μ-nats, truncating toward
// zero on the log2 components. Zero operands are a domain error.
func LnRatioMicro(num, den uint64) (int64, error) {
	if num == 0 || den == 0 {
		return 0, errLnDomain
	}
	if num == den {
		return 0, nil
	}
	iN, fN := log2Parts(num)
	iD, fD := log2Parts(den)

	d := iN - iD
	if fN >= fD {
		return d*Ln2Micro + int64(mulShift64(fN-fD, Ln2Micro)), nil
	}
	return (d-1)*Ln2Micro + int64(mulShift64(^(fD-fN)+1, Ln2Micro)), nil
}

// Ln1pRatioMicro returns ln(1 + x/x0) in μ-nats (non-negative), the form
// the logarithmic ψ curve consumes. x0 must be non-zero; x+x0 saturates
// before the ratio so huge inputs stay in-domain.
func Ln1pRatioMicro(x, x0 uint64) (Micronats, error) {
	if x0 == 0 {
		return 0, errLnDomain
	}
	sum := AddSat(x, x0)
	v, err := LnRatioMicro(sum, x0)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return uint64(v), nil
}

// derive.go implements the deterministic derivations used by VDF
// verification: rejection sampling into Z_n* and into the primes. Both walk
// a counter-extended hash stream, so every implementation lands on the same
// element for the same input.
package crypto

import (
	"encoding/binary"
	"errors"
	"math/big"
)

var (
	errDeriveNilModulus   = errors.New("crypto: nil or zero modulus")
	errDeriveBitsTooSmall = errors.New("crypto: challenge bits below 64")
	errDeriveExhausted    = errors.New("crypto: derivation counter exhausted")
)

// deriveRounds bounds the rejection-sampling walk. By the prime number
// theorem a 128-bit window yields a prime roughly every 44 odd candidates;
// 64k rounds makes failure a practical impossibility.
const deriveRounds = 1 << 16

// expandStream produces at least byteLen bytes of
// H(tag || data || counter_be4 || block_be4) blocks.
func expandStream(tag string, data []byte, counter uint32, byteLen int) []byte {
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], counter)
	buf := make([]byte, 0, byteLen+32)
	for block := uint32(0); len(buf) < byteLen; block++ {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], block)
		h := TagHash(tag, data, c[:], b[:])
		buf = append(buf, h[:]...)
	}
	return buf
}

// HashToZnStar maps data into the multiplicative group Z_n*. Candidates are
// drawn from the counter-extended hash stream, reduced mod n, and rejected
// while they are 0, 1, or share a factor with n.
func HashToZnStar(tag string, data []byte, n *big.Int) (*big.Int, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, errDeriveNilModulus
	}
	byteLen := (n.BitLen() + 7) / 8
	one := big.NewInt(1)
	gcd := new(big.Int)

	for counter := uint32(0); counter < deriveRounds; counter++ {
		// Widen the stream to the modulus size before reducing so the
		// candidate distribution covers the full group.
		buf := expandStream(tag, data, counter, byteLen)
		x := new(big.Int).SetBytes(buf[:byteLen])
		x.Mod(x, n)
		if x.Cmp(one) <= 0 {
			continue
		}
		if gcd.GCD(nil, nil, x, n); gcd.Cmp(one) != 0 {
			continue
		}
		return x, nil
	}
	return nil, errDeriveExhausted
}

// HashToPrime derives a probable prime of exactly bits length from data.
// Each candidate is a bits-wide slice of the counter-extended hash stream
// with the top and bottom bits forced, tested with ProbablyPrime. The walk
// is deterministic, so all verifiers agree on the challenge.
func HashToPrime(tag string, data []byte, bits uint) (*big.Int, error) {
	if bits < 64 {
		return nil, errDeriveBitsTooSmall
	}
	byteLen := int(bits+7) / 8

	for counter := uint32(0); counter < deriveRounds; counter++ {
		buf := expandStream(tag, data, counter, byteLen)
		cand := new(big.Int).SetBytes(buf[:byteLen])
		// Force exact bit length and oddness.
		cand.SetBit(cand, int(bits-1), 1)
		cand.SetBit(cand, 0, 1)
		if cand.BitLen() > int(bits) {
			cand.Rsh(cand, uint(cand.BitLen()-int(bits)))
			cand.SetBit(cand, int(bits-1), 1)
			cand.SetBit(cand, 0, 1)
		}
		if cand.ProbablyPrime(20) {
			return cand, nil
		}
	}
	return nil, errDeriveExhausted
}

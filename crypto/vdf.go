// vdf.go implements the Wesolowski VDF over a group of unknown order
// (an RSA modulus). The engine only ever verifies proofs on the consensus
// path; evaluation exists for provers and tests. Verification checks
// y == x^(2^T) via the succinct proof equation pi^l * x^r == y (mod N) with
// a deterministically derived prime challenge l.
package crypto

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// VDF errors.
var (
	ErrVDFNilModulus     = errors.New("vdf: nil or undersized modulus")
	ErrVDFZeroDelay      = errors.New("vdf: zero delay parameter")
	ErrVDFEmptyInput     = errors.New("vdf: empty input")
	ErrVDFBadWidth       = errors.New("vdf: y or pi not modulus-width")
	ErrVDFOutOfRange     = errors.New("vdf: y or pi not reduced mod N")
	ErrVDFBaseDerivation = errors.New("vdf: base derivation failed")
	ErrVDFMismatch       = errors.New("vdf: proof equation does not hold")
)

// minModulusBits rejects toy moduli on the consensus path. Test code uses
// NewWesolowskiUnchecked to bypass the floor.
const minModulusBits = 1024

// Wesolowski verifies (and, for provers, evaluates) VDFs over a fixed
// modulus with a fixed challenge size. Instances are immutable.
type Wesolowski struct {
	n             *big.Int
	challengeBits uint
}

// NewWesolowski creates a verifier for modulus n. The modulus must be at
// least minModulusBits wide; challengeBits below 128 are raised to 128.
func NewWesolowski(n *big.Int, challengeBits uint) (*Wesolowski, error) {
	if n == nil || n.BitLen() < minModulusBits {
		return nil, ErrVDFNilModulus
	}
	if challengeBits < 128 {
		challengeBits = 128
	}
	return &Wesolowski{n: new(big.Int).Set(n), challengeBits: challengeBits}, nil
}

// NewWesolowskiUnchecked creates a verifier without the modulus-size floor.
// Only tests with small known-factorization moduli should use it.
func NewWesolowskiUnchecked(n *big.Int, challengeBits uint) *Wesolowski {
	if challengeBits < 64 {
		challengeBits = 64
	}
	return &Wesolowski{n: new(big.Int).Set(n), challengeBits: challengeBits}
}

// Modulus returns a copy of the modulus.
func (w *Wesolowski) Modulus() *big.Int { return new(big.Int).Set(w.n) }

// WidthBytes returns the fixed encoding width ceil(|N|/8).
func (w *Wesolowski) WidthBytes() int { return (w.n.BitLen() + 7) / 8 }

// PadToWidth left-pads b to the modulus width. Values wider than the
// modulus are returned unchanged (and will fail range checks downstream).
func (w *Wesolowski) PadToWidth(b []byte) []byte {
	width := w.WidthBytes()
	if len(b) >= width {
		return b
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out
}

// challengeData assembles N || x || y || T_be8, the transcript the prime
// challenge binds.
func (w *Wesolowski) challengeData(x, y *big.Int, delay uint64) []byte {
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], delay)
	buf := make([]byte, 0, 3*w.WidthBytes()+8)
	buf = append(buf, w.PadToWidth(w.n.Bytes())...)
	buf = append(buf, w.PadToWidth(x.Bytes())...)
	buf = append(buf, w.PadToWidth(y.Bytes())...)
	buf = append(buf, t[:]...)
	return buf
}

// Verify checks a Wesolowski proof that y == base^(2^delay) mod N, where
// base is derived from input via hash-to-Z_n*. yBytes and piBytes must be
// modulus-width big-endian encodings of reduced values.
func (w *Wesolowski) Verify(input []byte, delay uint64, yBytes, piBytes []byte) error {
	if len(input) == 0 {
		return ErrVDFEmptyInput
	}
	if delay == 0 {
		return ErrVDFZeroDelay
	}
	width := w.WidthBytes()
	if len(yBytes) != width || len(piBytes) != width {
		return ErrVDFBadWidth
	}
	y := new(big.Int).SetBytes(yBytes)
	pi := new(big.Int).SetBytes(piBytes)
	if y.Cmp(w.n) >= 0 || pi.Cmp(w.n) >= 0 {
		return ErrVDFOutOfRange
	}

	x, err := HashToZnStar(TagVDFBase, input, w.n)
	if err != nil {
		return ErrVDFBaseDerivation
	}

	l, err := HashToPrime(TagVDFChallenge, w.challengeData(x, y, delay), w.challengeBits)
	if err != nil {
		return err
	}

	// r = 2^T mod l
	r := new(big.Int).Exp(big.NewInt(2), new(big.Int).SetUint64(delay), l)

	// pi^l * x^r == y (mod N)
	lhs := new(big.Int).Exp(pi, l, w.n)
	xr := new(big.Int).Exp(x, r, w.n)
	lhs.Mul(lhs, xr)
	lhs.Mod(lhs, w.n)
	if lhs.Cmp(y) != 0 {
		return ErrVDFMismatch
	}
	return nil
}

// Evaluate computes y = base^(2^delay) mod N by sequential squaring and the
// matching proof pi = base^floor(2^delay / l). Not a consensus operation;
// provers and tests use it to produce records Verify accepts.
func (w *Wesolowski) Evaluate(input []byte, delay uint64) (yBytes, piBytes []byte, err error) {
	if len(input) == 0 {
		return nil, nil, ErrVDFEmptyInput
	}
	if delay == 0 {
		return nil, nil, ErrVDFZeroDelay
	}
	x, err := HashToZnStar(TagVDFBase, input, w.n)
	if err != nil {
		return nil, nil, ErrVDFBaseDerivation
	}

	y := new(big.Int).Set(x)
	for i := uint64(0); i < delay; i++ {
		y.Mul(y, y)
		y.Mod(y, w.n)
	}

	l, err := HashToPrime(TagVDFChallenge, w.challengeData(x, y, delay), w.challengeBits)
	if err != nil {
		return nil, nil, err
	}

	// pi = x^floor(2^T / l) by tracking the quotient bits while squaring,
	// avoiding materializing 2^T.
	pi := big.NewInt(1)
	rem := big.NewInt(1)
	for i := uint64(0); i < delay; i++ {
		rem.Lsh(rem, 1)
		pi.Mul(pi, pi)
		pi.Mod(pi, w.n)
		if rem.Cmp(l) >= 0 {
			rem.Sub(rem, l)
			pi.Mul(pi, x)
			pi.Mod(pi, w.n)
		}
	}

	return w.PadToWidth(y.Bytes()), w.PadToWidth(pi.Bytes()), nil
}

package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
)

// tolerance in μ-nats for cases whose exact value has a fractional log2.
const lnTol = 3

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestLog2FracExactPowers(t *testing.T) {
	// Mantissa 1.0: fractional log2 is exactly zero.
	if got := Log2Frac(1 << 63); got != 0 {
		t.Errorf("Log2Frac(2^63) = %d, want 0", got)
	}
}

func TestHDraw64ExactHalves(t *testing.T) {
	// u = 1/2 -> H = ln2.
	if got := HDraw64(1 << 63); got != Ln2Micro {
		t.Errorf("H(1/2) = %d, want %d", got, Ln2Micro)
	}
	// u = 1/4 -> H = 2·ln2.
	if got := HDraw64(1 << 62); got != 2*Ln2Micro {
		t.Errorf("H(1/4) = %d, want %d", got, 2*Ln2Micro)
	}
	// u = 1/2^32 -> H = 32·ln2.
	if got := HDraw64(1 << 32); got != 32*Ln2Micro {
		t.Errorf("H(2^-32) = %d, want %d", got, 32*Ln2Micro)
	}
	// Zero draw: smallest positive unit.
	if got := HDraw64(0); got != 64*Ln2Micro {
		t.Errorf("H(0) = %d, want %d", got, 64*Ln2Micro)
	}
}

func TestHDraw64Approximations(t *testing.T) {
	// u = 0.1: z = floor(0.1 · 2^64), H ≈ 2.302585 nats.
	z := uint64(1844674407370955161)
	if got := HDraw64(z); absDiff(got, 2302585) > lnTol {
		t.Errorf("H(0.1) = %d, want 2302585 ± %d", got, lnTol)
	}
	// u = 0.001: H ≈ 6.907755 nats.
	z = uint64(18446744073709551) // floor(0.001 · 2^64)
	if got := HDraw64(z); absDiff(got, 6907755) > lnTol {
		t.Errorf("H(0.001) = %d, want 6907755 ± %d", got, lnTol)
	}
	// u ≈ e^-2: accept boundary of the near-global-cap scenario.
	z = uint64(2496495333790613373) // floor(e^-2 · 2^64)
	if got := HDraw64(z); absDiff(got, 2000000) > lnTol {
		t.Errorf("H(e^-2) = %d, want 2000000 ± %d", got, lnTol)
	}
}

func TestHDraw64Monotone(t *testing.T) {
	// Smaller u must give larger H.
	prev := HDraw64(1)
	for _, z := range []uint64{2, 1000, 1 << 20, 1 << 40, 1 << 63, ^uint64(0)} {
		cur := HDraw64(z)
		if cur > prev {
			t.Fatalf("H not monotone: H(%d)=%d > H(prev)=%d", z, cur, prev)
		}
		prev = cur
	}
}

func TestHDraw256(t *testing.T) {
	// Zero draw: maximum H without overflow.
	if got := HDraw256(new(uint256.Int)); got != 256*Ln2Micro {
		t.Errorf("H256(0) = %d, want %d", got, 256*Ln2Micro)
	}
	// u = 1/2 as a 256-bit fraction.
	u := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	if got := HDraw256(u); got != Ln2Micro {
		t.Errorf("H256(1/2) = %d, want %d", got, Ln2Micro)
	}
	// u = 1/2^192: exact power.
	u = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	if got := HDraw256(u); got != 192*Ln2Micro {
		t.Errorf("H256(2^-192) = %d, want %d", got, 192*Ln2Micro)
	}
	// A 64-bit value embedded at the top of 256 bits must agree with the
	// 64-bit kernel.
	z := uint64(1844674407370955161)
	u = new(uint256.Int).Lsh(uint256.NewInt(z), 192)
	if got, want := HDraw256(u), HDraw64(z); absDiff(got, want) > 1 {
		t.Errorf("H256/H64 disagree: %d vs %d", got, want)
	}
}

func TestLnRatioMicro(t *testing.T) {
	cases := []struct {
		num, den uint64
		want     int64
	}{
		{1, 1, 0},
		{2, 1, Ln2Micro},
		{1, 2, -Ln2Micro},
		{4, 1, 2 * Ln2Micro},
		{1024, 1, 10 * Ln2Micro},
	}
	for _, c := range cases {
		got, err := LnRatioMicro(c.num, c.den)
		if err != nil {
			t.Fatalf("LnRatioMicro(%d,%d) failed: %v", c.num, c.den, err)
		}
		if got != c.want {
			t.Errorf("LnRatioMicro(%d,%d) = %d, want %d", c.num, c.den, got, c.want)
		}
	}

	// ln(3) ≈ 1.098612.
	got, err := LnRatioMicro(3, 1)
	if err != nil {
		t.Fatalf("LnRatioMicro(3,1) failed: %v", err)
	}
	if d := got - 1098612; d > lnTol || d < -lnTol {
		t.Errorf("ln(3) = %d, want 1098612 ± %d", got, lnTol)
	}

	// Antisymmetry within truncation slack.
	a, _ := LnRatioMicro(7, 3)
	b, _ := LnRatioMicro(3, 7)
	if sum := a + b; sum > lnTol || sum < -lnTol {
		t.Errorf("ln(7/3)+ln(3/7) = %d, want ~0", sum)
	}

	if _, err := LnRatioMicro(0, 1); err == nil {
		t.Fatal("LnRatioMicro(0,1) should fail")
	}
	if _, err := LnRatioMicro(1, 0); err == nil {
		t.Fatal("LnRatioMicro(1,0) should fail")
	}
}

func TestLn1pRatioMicro(t *testing.T) {
	// ln(1 + 1) = ln2.
	got, err := Ln1pRatioMicro(1000, 1000)
	if err != nil {
		t.Fatalf("Ln1pRatioMicro failed: %v", err)
	}
	if got != uint64(Ln2Micro) {
		t.Errorf("ln(1+1) = %d, want %d", got, Ln2Micro)
	}
	// x = 0 contributes nothing.
	got, err = Ln1pRatioMicro(0, 1000)
	if err != nil {
		t.Fatalf("Ln1pRatioMicro zero failed: %v", err)
	}
	if got != 0 {
		t.Errorf("ln(1+0) = %d, want 0", got)
	}
	if _, err := Ln1pRatioMicro(1, 0); err == nil {
		t.Fatal("zero knee should fail")
	}
}

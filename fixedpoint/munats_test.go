package fixedpoint

import (
	"math"
	"testing"
)

func TestAddSat(t *testing.T) {
	if got := AddSat(1, 2); got != 3 {
		t.Errorf("AddSat(1,2) = %d, want 3", got)
	}
	if got := AddSat(math.MaxUint64, 1); got != math.MaxUint64 {
		t.Errorf("AddSat overflow = %d, want max", got)
	}
	if got := AddSat(math.MaxUint64, math.MaxUint64); got != math.MaxUint64 {
		t.Errorf("AddSat double-max = %d, want max", got)
	}
}

func TestAddCap(t *testing.T) {
	if got := AddCap(2, 3, 4); got != 4 {
		t.Errorf("AddCap(2,3,4) = %d, want 4", got)
	}
	if got := AddCap(1, 1, 10); got != 2 {
		t.Errorf("AddCap(1,1,10) = %d, want 2", got)
	}
	// Overflowing sum still lands on the cap.
	if got := AddCap(math.MaxUint64, math.MaxUint64, 7); got != 7 {
		t.Errorf("AddCap overflow = %d, want 7", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want uint64
	}{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{11, 1, 10, 10},
		{1, 1, 10, 1},
		{10, 1, 10, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%d,%d,%d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(1_000_000, 1_000_000, 2)
	if err != nil {
		t.Fatalf("MulDiv failed: %v", err)
	}
	if got != 500_000_000_000 {
		t.Errorf("MulDiv = %d, want 500000000000", got)
	}

	// 128-bit intermediate: a*b overflows 64 bits but the quotient fits.
	got, err = MulDiv(math.MaxUint64, 2, 4)
	if err != nil {
		t.Fatalf("MulDiv wide failed: %v", err)
	}
	if want := uint64(math.MaxUint64 / 2); got != want {
		t.Errorf("MulDiv wide = %d, want %d", got, want)
	}

	if _, err := MulDiv(1, 1, 0); err == nil {
		t.Fatal("MulDiv by zero should fail")
	}

	// Quotient above range saturates.
	got, err = MulDiv(math.MaxUint64, math.MaxUint64, 1)
	if err != nil {
		t.Fatalf("MulDiv saturating failed: %v", err)
	}
	if got != math.MaxUint64 {
		t.Errorf("MulDiv saturating = %d, want max", got)
	}
}

func TestMulMicro(t *testing.T) {
	// Neutral factor.
	if got := MulMicro(123456, MicroPerNat); got != 123456 {
		t.Errorf("MulMicro neutral = %d, want 123456", got)
	}
	// Halving.
	if got := MulMicro(1_000_000, 500_000); got != 500_000 {
		t.Errorf("MulMicro half = %d, want 500000", got)
	}
	// Amplify 1.5x.
	if got := MulMicro(2_000_000, 1_500_000); got != 3_000_000 {
		t.Errorf("MulMicro 1.5x = %d, want 3000000", got)
	}
	// Truncation toward zero.
	if got := MulMicro(1, 500_000); got != 0 {
		t.Errorf("MulMicro truncation = %d, want 0", got)
	}
}

func TestMulSat(t *testing.T) {
	if got := MulSat(1000, 1000); got != 1_000_000 {
		t.Errorf("MulSat = %d, want 1000000", got)
	}
	if got := MulSat(math.MaxUint64, 2); got != math.MaxUint64 {
		t.Errorf("MulSat overflow = %d, want max", got)
	}
}

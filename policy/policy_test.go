package policy

import (
	"bytes"
	"testing"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
)

// testModulusBytes is a deterministic 1024-bit odd composite stand-in.
func testModulusBytes() []byte {
	b := make([]byte, 128)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	b[0] |= 0x80
	b[127] |= 0x01
	return b
}

func testDocument() Document {
	doc := Document{
		Version:    1,
		LnVersion:  fixedpoint.LnVersion,
		GammaMicro: 4_000_000,
		Escort: EscortParams{
			Mode:      EscortBoth,
			BMaxMicro: 1_000_000,
			RefMicro: map[uint8]uint64{
				uint8(types.ProofStorage): 1_000_000,
				uint8(types.ProofVDF):     1_000_000,
			},
		},
		Alpha: AlphaParams{
			TargetMicro: map[uint8]uint64{
				uint8(types.ProofAI):      400_000,
				uint8(types.ProofStorage): 300_000,
			},
			Window:    8,
			StepMicro: 100_000,
			MinMicro:  500_000,
			MaxMicro:  2_000_000,
		},
		Theta: ThetaParams{
			Genesis:          6_000_000,
			Min:              6_000_000,
			Max:              100_000_000,
			StepMax:          1_000_000,
			EtaMicro:         1_000_000,
			TargetIntervalMS: 10_000,
			EMAAlphaMicro:    200_000,
			EpochLength:      10,
			MarginMicro:      1_000_000,
		},
		VDF: VDFParams{
			ModulusBytes:  testModulusBytes(),
			ChallengeBits: 128,
			Delay:         16,
			RoundLength:   100,
			CommitLen:     40,
			RevealOffset:  40,
			RevealLen:     40,
			Lag:           1,
		},
		TTL: TTLParams{RevealTTL: 50, ProofTTL: 100},
	}
	for i := range doc.Types {
		doc.Types[i] = TypeParams{
			WeightMicro:   1_000_000,
			Curve:         Curve{Kind: CurveAffine, AMicro: 1_000_000, UMaxMicro: 50_000_000},
			CapProofMicro: 8_000_000,
			CapTypeMicro:  8_000_000,
			BoostMicro:    0,
			MaxBodyBytes:  1 << 16,
			TimeBudgetMS:  100,
		}
	}
	return doc
}

func TestLoadAndRoot(t *testing.T) {
	p, err := Load(testDocument())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Root().IsZero() {
		t.Fatal("policy root is zero")
	}

	// Identical documents produce identical roots.
	p2, err := Load(testDocument())
	if err != nil {
		t.Fatalf("Load repeat failed: %v", err)
	}
	if p.Root() != p2.Root() {
		t.Fatal("identical documents produced different roots")
	}

	// Any field change moves the root.
	doc := testDocument()
	doc.GammaMicro = 3_000_000
	p3, err := Load(doc)
	if err != nil {
		t.Fatalf("Load changed failed: %v", err)
	}
	if p.Root() == p3.Root() {
		t.Fatal("changed document kept the same root")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p, err := Load(testDocument())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	enc, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if dec.Root() != p.Root() {
		t.Fatal("decode changed the policy root")
	}
	enc2, err := dec.Encode()
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if !bytes.Equal(enc, enc2) {
		t.Fatal("re-encoding not byte-identical")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Document)
		want   error
	}{
		{"gamma above theta min", func(d *Document) { d.GammaMicro = 10_000_000 }, ErrGammaAboveThetaMin},
		{"margin eats the gap", func(d *Document) { d.Theta.MarginMicro = 5_000_000 }, ErrGammaAboveThetaMin},
		{"theta bounds inverted", func(d *Document) { d.Theta.Min = 200_000_000 }, ErrThetaBounds},
		{"zero epoch length", func(d *Document) { d.Theta.EpochLength = 0 }, ErrZeroEpochLength},
		{"zero target interval", func(d *Document) { d.Theta.TargetIntervalMS = 0 }, ErrZeroTargetInterval},
		{"alpha bounds inverted", func(d *Document) { d.Alpha.MinMicro = 3_000_000 }, ErrAlphaBounds},
		{"zero alpha window", func(d *Document) { d.Alpha.Window = 0 }, ErrZeroAlphaWindow},
		{"boost above bmax", func(d *Document) { d.Types[0].BoostMicro = 2_000_000 }, ErrEscortBoost},
		{"small modulus", func(d *Document) { d.VDF.ModulusBytes = d.VDF.ModulusBytes[:64] }, ErrVDFModulus},
		{"reveal outside round", func(d *Document) { d.VDF.RevealLen = 100 }, ErrVDFWindows},
		{"zero lag", func(d *Document) { d.VDF.Lag = 0 }, ErrZeroLag},
		{"zero ttl", func(d *Document) { d.TTL.ProofTTL = 0 }, ErrZeroTTL},
		{"wrong ln kernel", func(d *Document) { d.LnVersion = "ln64/v0" }, ErrLnVersion},
		{"log curve without knee", func(d *Document) {
			d.Types[1].Curve = Curve{Kind: CurveLog, KMicro: 1_000_000, X0: 0}
		}, ErrCurveDomain},
		{"tier caps not increasing", func(d *Document) {
			d.Types[1].Tiers = []Tier{{CapMicro: 8_000_000}}
		}, ErrTierOrder},
	}
	for _, c := range cases {
		doc := testDocument()
		c.mutate(&doc)
		if _, err := Load(doc); err != c.want {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestStoreLookupAndGrandfather(t *testing.T) {
	p1, err := Load(testDocument())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	doc := testDocument()
	doc.Version = 2
	p2, err := Load(doc)
	if err != nil {
		t.Fatalf("Load v2 failed: %v", err)
	}

	s, err := NewStore(p1)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if s.Active() != p1 {
		t.Fatal("active policy mismatch")
	}
	if _, err := s.Lookup(p2.Root()); err != ErrUnknownRoot {
		t.Errorf("unknown root lookup: got %v, want %v", err, ErrUnknownRoot)
	}

	if err := s.Activate(p2); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if s.Active() != p2 {
		t.Fatal("activation did not swap the active policy")
	}
	// The predecessor remains resolvable.
	got, err := s.Lookup(p1.Root())
	if err != nil {
		t.Fatalf("grandfathered lookup failed: %v", err)
	}
	if got != p1 {
		t.Fatal("grandfathered lookup returned wrong policy")
	}
}

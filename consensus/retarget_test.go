package consensus

import (
	"errors"
	"testing"

	"github.com/animica/poies/core/types"
)

func TestGenesisTheta(t *testing.T) {
	pol := testPolicy(t, nil)
	st := GenesisTheta(pol)
	if st.ThetaMicro != 6_000_000 || st.EpochIndex != 0 {
		t.Errorf("genesis state = %+v", st)
	}
	if st.EMAIntervalMS != 10_000 {
		t.Errorf("genesis EMA = %d, want target interval", st.EMAIntervalMS)
	}
}

func TestObserveInterval(t *testing.T) {
	pol := testPolicy(t, nil)
	st := GenesisTheta(pol)

	// αEMA = 0.2: ema moves a fifth of the way toward the observation.
	st2, err := st.ObserveInterval(20_000, pol)
	if err != nil {
		t.Fatalf("ObserveInterval failed: %v", err)
	}
	if st2.EMAIntervalMS != 12_000 {
		t.Errorf("ema = %d, want 12000", st2.EMAIntervalMS)
	}

	// Downward moves symmetrically.
	st3, err := st2.ObserveInterval(2_000, pol)
	if err != nil {
		t.Fatalf("ObserveInterval failed: %v", err)
	}
	if st3.EMAIntervalMS != 10_000 {
		t.Errorf("ema = %d, want 10000", st3.EMAIntervalMS)
	}

	// Zero interval is a retarget error.
	if _, err := st.ObserveInterval(0, pol); KindOf(err) != KindRetarget {
		t.Errorf("zero interval: got %v, want retarget kind", err)
	}
}

func TestRetargetDirection(t *testing.T) {
	pol := testPolicy(t, nil)

	// Blocks on target: Θ unchanged.
	st := GenesisTheta(pol)
	next, err := st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if next.ThetaMicro != st.ThetaMicro {
		t.Errorf("on-target retarget moved Θ: %d -> %d", st.ThetaMicro, next.ThetaMicro)
	}
	if next.EpochIndex != 1 {
		t.Errorf("epoch = %d, want 1", next.EpochIndex)
	}

	// Blocks too fast (Δ < Δ*): Θ rises.
	st = GenesisTheta(pol)
	st.ThetaMicro = 8_000_000
	st.EMAIntervalMS = 5_000
	next, err = st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if next.ThetaMicro <= st.ThetaMicro {
		t.Errorf("fast blocks must raise Θ: %d -> %d", st.ThetaMicro, next.ThetaMicro)
	}

	// Blocks too slow (Δ > Δ*): Θ falls, clamped at Θ_min.
	st = GenesisTheta(pol)
	st.ThetaMicro = 8_000_000
	st.EMAIntervalMS = 20_000
	next, err = st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if next.ThetaMicro >= st.ThetaMicro {
		t.Errorf("slow blocks must lower Θ: %d -> %d", st.ThetaMicro, next.ThetaMicro)
	}
}

func TestRetargetStepBoundAndClamps(t *testing.T) {
	pol := testPolicy(t, nil)

	// A wild interval is bounded by StepMax.
	st := GenesisTheta(pol)
	st.ThetaMicro = 50_000_000
	st.EMAIntervalMS = 10_000_000 // ln(1000) ≈ 6.9 nats, step clamps at 1
	next, err := st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if st.ThetaMicro-next.ThetaMicro != 1_000_000 {
		t.Errorf("step = %d, want StepMax 1000000", st.ThetaMicro-next.ThetaMicro)
	}

	// Clamp at Θ_min.
	st = GenesisTheta(pol)
	st.ThetaMicro = 6_000_000
	st.EMAIntervalMS = 40_000
	next, err = st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if next.ThetaMicro != pol.Theta().Min {
		t.Errorf("Θ = %d, want clamp at min %d", next.ThetaMicro, pol.Theta().Min)
	}

	// Clamp at Θ_max.
	st = GenesisTheta(pol)
	st.ThetaMicro = pol.Theta().Max
	st.EMAIntervalMS = 1_000
	next, err = st.Retarget(pol)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if next.ThetaMicro != pol.Theta().Max {
		t.Errorf("Θ = %d, want clamp at max %d", next.ThetaMicro, pol.Theta().Max)
	}
}

func TestEpochHelpers(t *testing.T) {
	pol := testPolicy(t, nil) // epoch length 10
	if got := EpochOfHeight(0, pol); got != 0 {
		t.Errorf("epoch of 0 = %d", got)
	}
	if got := EpochOfHeight(25, pol); got != 2 {
		t.Errorf("epoch of 25 = %d, want 2", got)
	}
	if IsEpochBoundary(0, pol) {
		t.Error("height 0 is not a boundary")
	}
	if !IsEpochBoundary(10, pol) {
		t.Error("height 10 is a boundary")
	}
	if IsEpochBoundary(11, pol) {
		t.Error("height 11 is not a boundary")
	}
}

func TestRetargetEpoch(t *testing.T) {
	pol := testPolicy(t, nil)
	theta := GenesisTheta(pol)
	alpha := GenesisAlpha(pol)

	stats := []BlockStat{
		{IntervalMS: 10_000, Score: &ScoreVector{TotalMicro: 2_000_000,
			PerTypeMicro: [types.NumProofTypes]uint64{0, 2_000_000, 0, 0, 0}}},
		{IntervalMS: 10_000, Score: &ScoreVector{TotalMicro: 1_000_000,
			PerTypeMicro: [types.NumProofTypes]uint64{0, 1_000_000, 0, 0, 0}}},
	}
	theta2, alpha2, err := RetargetEpoch(theta, alpha, stats, pol)
	if err != nil {
		t.Fatalf("RetargetEpoch failed: %v", err)
	}
	if theta2.EpochIndex != 1 {
		t.Errorf("epoch = %d, want 1", theta2.EpochIndex)
	}
	// All ψ flowed through AI: its share (1.0) sits above the 0.4 target,
	// so α[AI] must fall; storage is below target and must rise.
	if alpha2.AlphaMicro[types.ProofAI] >= alpha.AlphaMicro[types.ProofAI] {
		t.Errorf("α[ai] = %d, want below neutral", alpha2.AlphaMicro[types.ProofAI])
	}
	if alpha2.AlphaMicro[types.ProofStorage] <= alpha.AlphaMicro[types.ProofStorage] {
		t.Errorf("α[storage] = %d, want above neutral", alpha2.AlphaMicro[types.ProofStorage])
	}

	// A bad interval aborts the whole epoch fold.
	if _, _, err := RetargetEpoch(theta, alpha, []BlockStat{{IntervalMS: 0}}, pol); err == nil {
		t.Fatal("zero interval must fail the epoch retarget")
	}
	var ce *Error
	_, _, err = RetargetEpoch(theta, alpha, []BlockStat{{IntervalMS: 0}}, pol)
	if !errors.As(err, &ce) || ce.Kind != KindRetarget {
		t.Errorf("kind = %v, want retarget", err)
	}
}

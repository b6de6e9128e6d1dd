// score.go is the caps and escort engine. It consumes canonically sorted,
// per-proof raw ψ values and applies the fixed cap order: per-proof cap,
// smooth diversity multipliers, tiered escort unlocks, per-type caps, and
// the global Γ cap. Excess is discarded, never reallocated.
package consensus

import (
	"errors"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
	"github.com/animica/poies/policy"
	"github.com/animica/poies/proofs"
)

var errScoreOverflow = errors.New("score arithmetic overflow")

// ScoreVector is the outcome of cap application for one candidate block.
type ScoreVector struct {
	// TotalMicro is Σψ_eff, never above Γ.
	TotalMicro fixedpoint.Micronats
	// PerTypeMicro are the post-cap per-type sums Ψ_type.
	PerTypeMicro [types.NumProofTypes]fixedpoint.Micronats
	// DiscardedMicro totals the overflow dropped at every cap stage.
	DiscardedMicro fixedpoint.Micronats
	// DiversityMicro is the smooth-mode diversity index D in [0, 1e6];
	// zero when smooth escorts are off.
	DiversityMicro uint64
	// TierIndex records the unlocked tier per type (0 = base cap).
	TierIndex [types.NumProofTypes]int
}

// diversityIndex computes D: the normalized min-ratio of provisional
// per-type sums against the policy's reference escorts. No references
// means no diversity signal.
func diversityIndex(provisional *[types.NumProofTypes]uint64, es *policy.EscortParams) uint64 {
	if len(es.RefMicro) == 0 {
		return 0
	}
	const one = fixedpoint.MicroPerNat
	d := uint64(one)
	// Dense per-type iteration keeps the fold order deterministic.
	for tag := 0; tag < types.NumProofTypes; tag++ {
		ref, ok := es.RefMicro[uint8(tag)]
		if !ok || ref == 0 {
			continue
		}
		ratio, err := fixedpoint.MulDiv(provisional[tag], one, ref)
		if err != nil {
			return 0
		}
		if ratio > one {
			ratio = one
		}
		if ratio < d {
			d = ratio
		}
	}
	return d
}

// effectiveTypeCap resolves the tiered escort cap for one type: the
// highest tier whose requirements are met by the provisional capped sums.
func effectiveTypeCap(tp *policy.TypeParams, provisional *[types.NumProofTypes]uint64) (uint64, int) {
	capMicro := tp.CapTypeMicro
	idx := 0
	for i, tier := range tp.Tiers {
		met := true
		for tag := 0; tag < types.NumProofTypes; tag++ {
			need, ok := tier.Requires[uint8(tag)]
			if !ok {
				continue
			}
			if provisional[tag] < need {
				met = false
				break
			}
		}
		if !met {
			break
		}
		capMicro = tier.CapMicro
		idx = i + 1
	}
	return capMicro, idx
}

// ApplyCaps runs the cap order over the scored proofs and returns the
// score vector. The input must already be in canonical order; the engine
// preserves it so the discard summary is reproducible.
func ApplyCaps(scored []proofs.Scored, pol *policy.Policy) (*ScoreVector, error) {
	es := pol.Escort()
	smooth := es.Mode == policy.EscortSmooth || es.Mode == policy.EscortBoth
	tiered := es.Mode == policy.EscortTiered || es.Mode == policy.EscortBoth

	sv := &ScoreVector{}

	// Stage 1: per-proof caps and the provisional per-type sums every
	// later stage keys on.
	capped := make([]fixedpoint.Micronats, len(scored))
	var provisional [types.NumProofTypes]uint64
	for i := range scored {
		t := scored[i].Metrics.Type()
		if !t.Valid() {
			return nil, reject(KindProof, proofs.ErrUnknownType)
		}
		c := fixedpoint.Min(scored[i].PsiRaw, pol.Type(t).CapProofMicro)
		capped[i] = c
		sv.DiscardedMicro = fixedpoint.AddSat(sv.DiscardedMicro, scored[i].PsiRaw-c)
		provisional[t] = fixedpoint.AddSat(provisional[t], c)
	}

	// Stage 2: smooth diversity multipliers.
	if smooth {
		sv.DiversityMicro = diversityIndex(&provisional, es)
	}

	var typeSums [types.NumProofTypes]uint64
	for i := range scored {
		t := scored[i].Metrics.Type()
		v := capped[i]
		if smooth && sv.DiversityMicro > 0 {
			boost := fixedpoint.MulMicro(pol.Type(t).BoostMicro, sv.DiversityMicro)
			beta := fixedpoint.AddSat(fixedpoint.MicroPerNat, boost)
			v = fixedpoint.MulMicro(v, beta)
		}
		typeSums[t] = fixedpoint.AddSat(typeSums[t], v)
	}

	// Stages 3–4: per-type caps, tiered when unlocked.
	var sum fixedpoint.Micronats
	for tag := 0; tag < types.NumProofTypes; tag++ {
		tp := pol.Type(types.ProofType(tag))
		capMicro := tp.CapTypeMicro
		if tiered {
			capMicro, sv.TierIndex[tag] = effectiveTypeCap(tp, &provisional)
		}
		eff := fixedpoint.Min(typeSums[tag], capMicro)
		sv.PerTypeMicro[tag] = eff
		sv.DiscardedMicro = fixedpoint.AddSat(sv.DiscardedMicro, typeSums[tag]-eff)
		sum = fixedpoint.AddSat(sum, eff)
	}

	// Stage 5: the global Γ cap.
	gamma := pol.Gamma()
	sv.TotalMicro = fixedpoint.Min(sum, gamma)
	sv.DiscardedMicro = fixedpoint.AddSat(sv.DiscardedMicro, sum-sv.TotalMicro)

	// Σψ_eff ≤ Γ is the load-bearing invariant; a violation here means a
	// broken policy or arithmetic and is fatal by taxonomy.
	if sv.TotalMicro > gamma {
		return nil, reject(KindScoring, errScoreOverflow)
	}
	return sv, nil
}

// alpha.go is the per-type fairness tuner: trailing per-type ψ shares over
// a window of accepted blocks pull each α[t] toward the policy target
// share, clamped. Like Θ, α state is derived from canonical history.
package consensus

import (
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
	"github.com/animica/poies/policy"
)

// AlphaState holds the per-type multipliers and the trailing share window.
type AlphaState struct {
	// AlphaMicro are the current multipliers; 1e6 is neutral.
	AlphaMicro [types.NumProofTypes]uint64 `cbor:"1,keyasint"`
	// Samples is a ring buffer of per-block share vectors (μ-fractions).
	Samples [][types.NumProofTypes]uint64 `cbor:"2,keyasint,omitempty"`
	Next    int                           `cbor:"3,keyasint"`
	Count   int                           `cbor:"4,keyasint"`
}

// GenesisAlpha returns the neutral state sized to the policy window.
func GenesisAlpha(pol *policy.Policy) AlphaState {
	var st AlphaState
	for i := range st.AlphaMicro {
		st.AlphaMicro[i] = fixedpoint.MicroPerNat
	}
	st.Samples = make([][types.NumProofTypes]uint64, pol.Alpha().Window)
	return st
}

// Alpha returns α[t] for the adapter; unknown types get the neutral
// multiplier.
func (s *AlphaState) Alpha(t types.ProofType) uint64 {
	if !t.Valid() {
		return fixedpoint.MicroPerNat
	}
	return s.AlphaMicro[t]
}

// ObserveBlock folds one accepted block's score vector into the share
// window. Blocks with zero Σψ contribute an all-zero share sample.
func (s AlphaState) ObserveBlock(score *ScoreVector) AlphaState {
	next := s
	next.Samples = make([][types.NumProofTypes]uint64, len(s.Samples))
	copy(next.Samples, s.Samples)

	var sample [types.NumProofTypes]uint64
	if score.TotalMicro > 0 {
		for t := 0; t < types.NumProofTypes; t++ {
			v, err := fixedpoint.MulDiv(score.PerTypeMicro[t], fixedpoint.MicroPerNat, score.TotalMicro)
			if err != nil {
				v = 0
			}
			sample[t] = v
		}
	}
	if len(next.Samples) == 0 {
		return next
	}
	next.Samples[next.Next] = sample
	next.Next = (next.Next + 1) % len(next.Samples)
	if next.Count < len(next.Samples) {
		next.Count++
	}
	return next
}

// meanShares averages the window per type.
func (s *AlphaState) meanShares() [types.NumProofTypes]uint64 {
	var mean [types.NumProofTypes]uint64
	if s.Count == 0 {
		return mean
	}
	for t := 0; t < types.NumProofTypes; t++ {
		var sum uint64
		for i := 0; i < s.Count; i++ {
			sum = fixedpoint.AddSat(sum, s.Samples[i][t])
		}
		mean[t] = sum / uint64(s.Count)
	}
	return mean
}

// Retarget nudges each α toward its target share at an epoch boundary:
// α_t += η_α·(τ_t − share_t), clamped to the policy bounds.
func (s AlphaState) Retarget(pol *policy.Policy) AlphaState {
	al := pol.Alpha()
	next := s
	if s.Count == 0 || len(al.TargetMicro) == 0 {
		return next
	}
	shares := s.meanShares()
	for t := 0; t < types.NumProofTypes; t++ {
		target, ok := al.TargetMicro[uint8(t)]
		if !ok {
			continue
		}
		alpha := next.AlphaMicro[t]
		if target >= shares[t] {
			step := fixedpoint.MulMicro(target-shares[t], al.StepMicro)
			alpha = fixedpoint.AddSat(alpha, step)
		} else {
			step := fixedpoint.MulMicro(shares[t]-target, al.StepMicro)
			if alpha > step {
				alpha -= step
			} else {
				alpha = 0
			}
		}
		next.AlphaMicro[t] = fixedpoint.Clamp(alpha, al.MinMicro, al.MaxMicro)
	}
	return next
}

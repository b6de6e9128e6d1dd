// retarget.go advances Θ across epochs: an EMA of observed inter-block
// intervals feeds Θ += η·ln(Δ/Δ*), clamped per epoch and to the policy
// bounds. Retarget state is derived from canonical history, never carried
// in blocks.
package consensus

import (
	"errors"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
	"github.com/animica/poies/policy"
)

var (
	errNonPositiveInterval = errors.New("observed interval non-positive")
	errLnDomain            = errors.New("fixed-point log domain error")
)

// ThetaState is the retargeter's per-epoch state.
type ThetaState struct {
	ThetaMicro    fixedpoint.Micronats `cbor:"1,keyasint"`
	EpochIndex    types.Epoch          `cbor:"2,keyasint"`
	EMAIntervalMS uint64               `cbor:"3,keyasint"`
}

// GenesisTheta returns the epoch-0 state for a policy.
func GenesisTheta(pol *policy.Policy) ThetaState {
	th := pol.Theta()
	return ThetaState{
		ThetaMicro:    th.Genesis,
		EpochIndex:    0,
		EMAIntervalMS: th.TargetIntervalMS,
	}
}

// ObserveInterval folds one observed inter-block interval into the EMA:
// ema += αEMA·(Δ − ema), all integer μ-scaled arithmetic.
func (s ThetaState) ObserveInterval(intervalMS uint64, pol *policy.Policy) (ThetaState, error) {
	if intervalMS == 0 {
		return s, reject(KindRetarget, errNonPositiveInterval)
	}
	th := pol.Theta()
	next := s
	if next.EMAIntervalMS == 0 {
		next.EMAIntervalMS = intervalMS
		return next, nil
	}
	if intervalMS >= next.EMAIntervalMS {
		delta := fixedpoint.MulMicro(intervalMS-next.EMAIntervalMS, th.EMAAlphaMicro)
		next.EMAIntervalMS = fixedpoint.AddSat(next.EMAIntervalMS, delta)
	} else {
		delta := fixedpoint.MulMicro(next.EMAIntervalMS-intervalMS, th.EMAAlphaMicro)
		next.EMAIntervalMS -= delta
	}
	return next, nil
}

// Retarget advances Θ at an epoch boundary from the EMA-smoothed interval.
func (s ThetaState) Retarget(pol *policy.Policy) (ThetaState, error) {
	th := pol.Theta()
	if s.EMAIntervalMS == 0 {
		return s, reject(KindRetarget, errNonPositiveInterval)
	}

	lnMicro, err := fixedpoint.LnRatioMicro(s.EMAIntervalMS, th.TargetIntervalMS)
	if err != nil {
		return s, reject(KindRetarget, errLnDomain)
	}

	// ΔΘ = η·ln(Δ/Δ*), η μ-scaled; bound the per-epoch step.
	var stepMicro uint64
	positive := lnMicro >= 0
	if positive {
		stepMicro = fixedpoint.MulMicro(uint64(lnMicro), th.EtaMicro)
	} else {
		stepMicro = fixedpoint.MulMicro(uint64(-lnMicro), th.EtaMicro)
	}
	if stepMicro > th.StepMax {
		stepMicro = th.StepMax
	}

	// Blocks arriving slower than target means the chain is too hard:
	// ln(Δ/Δ*) > 0 must lower Θ, and vice versa.
	next := s
	if positive {
		if next.ThetaMicro > stepMicro {
			next.ThetaMicro -= stepMicro
		} else {
			next.ThetaMicro = 0
		}
	} else {
		next.ThetaMicro = fixedpoint.AddSat(next.ThetaMicro, stepMicro)
	}
	next.ThetaMicro = fixedpoint.Clamp(next.ThetaMicro, th.Min, th.Max)
	next.EpochIndex++
	return next, nil
}

// EpochOfHeight returns the retarget epoch a height belongs to.
func EpochOfHeight(h types.Height, pol *policy.Policy) types.Epoch {
	return types.Epoch(uint64(h) / pol.Theta().EpochLength)
}

// IsEpochBoundary reports whether a height starts a new epoch.
func IsEpochBoundary(h types.Height, pol *policy.Policy) bool {
	return h != 0 && uint64(h)%pol.Theta().EpochLength == 0
}

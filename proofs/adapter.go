// adapter.go maps verified metrics to raw ψ in μ-nats under the policy's
// per-type curve, weight, and the α-tuner multiplier. Every curve is
// monotone non-decreasing and concave on its admissible domain, and every
// evaluation is integer-only with truncation toward zero.
package proofs

import (
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
	"github.com/animica/poies/policy"
)

// normalizedInput converts a metrics value to the μ-scaled curve input and
// the μ-scaled modifier product. Counts are widened to μ-scale; fractional
// modifiers are clamped to [0, 1e6].
func normalizedInput(m Metrics) (xMicro, modMicro uint64, err error) {
	const one = fixedpoint.MicroPerNat
	switch v := m.(type) {
	case HashMetrics:
		// The hash share contributes through H(u) only.
		return 0, one, nil
	case AIMetrics:
		mod := fixedpoint.MulMicro(
			fixedpoint.Clamp(v.TrapsScoreMicro, 0, one),
			fixedpoint.Clamp(v.QoSMicro, 0, one),
		)
		return fixedpoint.MulSat(v.Units, one), mod, nil
	case QuantumMetrics:
		return fixedpoint.MulSat(v.Units, one), fixedpoint.Clamp(v.TrapsScoreMicro, 0, one), nil
	case StorageMetrics:
		return v.RedundancyMicro, fixedpoint.Clamp(v.QoSMicro, 0, one), nil
	case VDFMetrics:
		return fixedpoint.MulSat(v.Seconds, one), one, nil
	default:
		return 0, 0, ErrUnknownType
	}
}

// evalCurve computes the bare curve value in μ-nats for a μ-scaled input.
func evalCurve(c *policy.Curve, xMicro uint64) (uint64, error) {
	switch c.Kind {
	case policy.CurveAffine:
		v := fixedpoint.AddSat(fixedpoint.MulMicro(xMicro, c.AMicro), c.BMicro)
		return fixedpoint.Min(v, c.UMaxMicro), nil
	case policy.CurveLog:
		if c.KMicro == 0 {
			return 0, nil
		}
		ln, err := fixedpoint.Ln1pRatioMicro(xMicro, c.X0)
		if err != nil {
			return 0, err
		}
		return fixedpoint.MulMicro(ln, c.KMicro), nil
	case policy.CurveRational:
		if c.KMicro == 0 {
			return 0, nil
		}
		den := fixedpoint.AddSat(xMicro, c.X0)
		if den == 0 {
			return 0, nil
		}
		frac, err := fixedpoint.MulDiv(xMicro, fixedpoint.MicroPerNat, den)
		if err != nil {
			return 0, err
		}
		return fixedpoint.MulMicro(frac, c.KMicro), nil
	default:
		return 0, ErrUnknownType
	}
}

// RawScore computes ψ'_raw for one proof: α[t] · w[t] · modifiers ·
// curve(x). The α multiplier is applied here, before any cap or escort
// step; alphaMicro of 1e6 is the neutral value.
func RawScore(m Metrics, pol *policy.Policy, alphaMicro uint64) (fixedpoint.Micronats, error) {
	if m == nil {
		return 0, ErrSchema
	}
	t := m.Type()
	if !t.Valid() {
		return 0, ErrUnknownType
	}
	xMicro, modMicro, err := normalizedInput(m)
	if err != nil {
		return 0, err
	}
	tp := pol.Type(t)
	base, err := evalCurve(&tp.Curve, xMicro)
	if err != nil {
		return 0, err
	}
	psi := fixedpoint.MulMicro(base, modMicro)
	psi = fixedpoint.MulMicro(psi, tp.WeightMicro)
	psi = fixedpoint.MulMicro(psi, alphaMicro)
	return psi, nil
}

// Scored pairs an envelope with its verified metrics and raw score, in
// canonical position.
type Scored struct {
	Env     *Envelope
	Metrics Metrics
	SortKey types.Hash
	PsiRaw  fixedpoint.Micronats
}

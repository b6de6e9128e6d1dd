// scorer.go recomputes the u-draw from the header template and evaluates
// the acceptance predicate H(u) + Σψ_eff ≥ Θ. The draw is a 256-bit
// fraction; H(u) = −ln(u) in μ-nats via the fixed-point log kernel.
package consensus

import (
	"github.com/holiman/uint256"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
	"github.com/animica/poies/fixedpoint"
)

// ComputeUDraw derives the u-draw fraction from the header template bytes
// and the nonce: H("poies/u-draw" || template || nonce_be8) read as a
// Q0.256 fraction of [0, 1); HDraw256 treats 0 as 2^-256.
func ComputeUDraw(template []byte, nonce [8]byte) *uint256.Int {
	h := crypto.TagHash(crypto.TagUDraw, template, nonce[:])
	u := new(uint256.Int)
	u.SetBytes(h.Bytes())
	return u
}

// HDrawMicro returns H(u) = −ln(u) in μ-nats for a u-draw fraction.
func HDrawMicro(u *uint256.Int) fixedpoint.Micronats {
	return fixedpoint.HDraw256(u)
}

// Acceptance is the scorer's verdict for one candidate block.
type Acceptance struct {
	UDraw      types.Hash
	HMicro     fixedpoint.Micronats
	ThetaMicro fixedpoint.Micronats
	Score      *ScoreVector
	Accepted   bool
	// DeficitMicro is Θ − (H(u) + Σψ_eff) when rejected, zero otherwise.
	DeficitMicro fixedpoint.Micronats
}

// Evaluate runs the acceptance comparison. Equality accepts.
func Evaluate(hMicro fixedpoint.Micronats, score *ScoreVector, thetaMicro fixedpoint.Micronats) *Acceptance {
	total := fixedpoint.AddSat(hMicro, score.TotalMicro)
	acc := &Acceptance{
		HMicro:     hMicro,
		ThetaMicro: thetaMicro,
		Score:      score,
		Accepted:   total >= thetaMicro,
	}
	if !acc.Accepted {
		acc.DeficitMicro = thetaMicro - total
	}
	return acc
}

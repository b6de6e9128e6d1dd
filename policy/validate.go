// validate.go rejects malformed policies at load time so that no malformed
// parameter can reach a consensus decision. Validation failures are
// PolicyError kinds; a policy that loads is safe for the whole cap and
// retarget arithmetic.
package policy

import (
	"errors"
	"fmt"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/fixedpoint"
)

// Policy load errors.
var (
	ErrGammaAboveThetaMin = errors.New("policy: gamma + margin not below theta min")
	ErrThetaBounds        = errors.New("policy: theta bounds out of order")
	ErrZeroEpochLength    = errors.New("policy: zero epoch length")
	ErrZeroTargetInterval = errors.New("policy: zero target interval")
	ErrCurveDomain        = errors.New("policy: curve parameter out of admissible domain")
	ErrAlphaBounds        = errors.New("policy: alpha bounds out of order")
	ErrZeroAlphaWindow    = errors.New("policy: zero alpha window")
	ErrEscortBoost        = errors.New("policy: escort boost above BMax")
	ErrEscortRef          = errors.New("policy: unknown type in escort reference")
	ErrTierOrder          = errors.New("policy: tier caps not increasing")
	ErrVDFModulus         = errors.New("policy: vdf modulus too small")
	ErrVDFWindows         = errors.New("policy: vdf round windows malformed")
	ErrZeroLag            = errors.New("policy: beacon lag must be >= 1")
	ErrZeroTTL            = errors.New("policy: zero nullifier ttl")
	ErrLnVersion          = errors.New("policy: unsupported ln kernel version")
)

// minVDFModulusBytes mirrors the crypto package floor (1024 bits).
const minVDFModulusBytes = 128

func validate(doc *Document) error {
	if doc.LnVersion != fixedpoint.LnVersion {
		return ErrLnVersion
	}

	// Θ ordering and the Γ gap: acceptance probability must stay bounded
	// away from 1, so Θ_min has to clear Γ plus the configured margin.
	th := &doc.Theta
	if th.Min > th.Max || th.Genesis < th.Min || th.Genesis > th.Max {
		return ErrThetaBounds
	}
	if th.EpochLength == 0 {
		return ErrZeroEpochLength
	}
	if th.TargetIntervalMS == 0 {
		return ErrZeroTargetInterval
	}
	if fixedpoint.AddSat(doc.GammaMicro, th.MarginMicro) >= th.Min {
		return ErrGammaAboveThetaMin
	}

	al := &doc.Alpha
	if al.MinMicro > al.MaxMicro {
		return ErrAlphaBounds
	}
	if al.Window == 0 {
		return ErrZeroAlphaWindow
	}
	for tag := range al.TargetMicro {
		if !types.ProofType(tag).Valid() {
			return fmt.Errorf("policy: alpha target: unknown type %d", tag)
		}
	}

	es := &doc.Escort
	for tag := range es.RefMicro {
		if !types.ProofType(tag).Valid() {
			return ErrEscortRef
		}
	}

	for i := range doc.Types {
		tp := &doc.Types[i]
		if err := validateCurve(&tp.Curve); err != nil {
			return err
		}
		if tp.BoostMicro > es.BMaxMicro {
			return ErrEscortBoost
		}
		prev := tp.CapTypeMicro
		for _, tier := range tp.Tiers {
			if tier.CapMicro <= prev {
				return ErrTierOrder
			}
			for tag := range tier.Requires {
				if !types.ProofType(tag).Valid() {
					return fmt.Errorf("policy: tier requires: unknown type %d", tag)
				}
			}
			prev = tier.CapMicro
		}
	}

	v := &doc.VDF
	if len(v.ModulusBytes) < minVDFModulusBytes {
		return ErrVDFModulus
	}
	if v.RoundLength == 0 || v.CommitLen == 0 || v.RevealLen == 0 {
		return ErrVDFWindows
	}
	if v.RevealOffset < v.CommitLen || v.RevealOffset+v.RevealLen > v.RoundLength {
		return ErrVDFWindows
	}
	if v.Lag == 0 {
		return ErrZeroLag
	}

	if doc.TTL.RevealTTL == 0 || doc.TTL.ProofTTL == 0 {
		return ErrZeroTTL
	}
	return nil
}

// validateCurve checks the admissible domain per curve kind: the log and
// rational curves need a non-zero knee, the affine curve a usable clamp.
func validateCurve(c *Curve) error {
	switch c.Kind {
	case CurveAffine:
		if c.AMicro == 0 && c.BMicro == 0 {
			return nil // degenerate zero curve is allowed (type disabled)
		}
		if c.UMaxMicro == 0 {
			return ErrCurveDomain
		}
	case CurveLog, CurveRational:
		if c.KMicro != 0 && c.X0 == 0 {
			return ErrCurveDomain
		}
	default:
		return ErrCurveDomain
	}
	return nil
}

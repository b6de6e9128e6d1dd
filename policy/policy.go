// Package policy holds the versioned scoring policy of the PoIES engine:
// per-type weights and curves, the cap hierarchy, escort and diversity
// rules, α-tuner and Θ-retarget parameters, VDF parameters, and nullifier
// TTLs. A policy is immutable once loaded; its canonical-CBOR content hash
// (the policy root) is pinned into every block header.
package policy

import (
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
	"github.com/animica/poies/fixedpoint"
)

// rootTag domain-separates the policy content hash.
const rootTag = "poies/policy"

// CurveKind selects the ψ mapping family for a proof type.
type CurveKind uint8

const (
	// CurveAffine is clamp(a·x + b, 0, umax).
	CurveAffine CurveKind = 0
	// CurveLog is k · ln(1 + x/x0).
	CurveLog CurveKind = 1
	// CurveRational is the saturating k · x / (x + x0).
	CurveRational CurveKind = 2
)

// Curve holds the μ-scaled parameters of a ψ mapping. Unused fields are
// zero for a given kind.
type Curve struct {
	Kind CurveKind `cbor:"1,keyasint"`
	// AMicro and BMicro parameterize the affine curve; AMicro is a μ-scaled
	// slope applied to the metric, BMicro a μ-nat offset.
	AMicro uint64 `cbor:"2,keyasint"`
	BMicro uint64 `cbor:"3,keyasint"`
	// UMaxMicro caps the affine curve.
	UMaxMicro uint64 `cbor:"4,keyasint"`
	// KMicro scales the log and rational curves.
	KMicro uint64 `cbor:"5,keyasint"`
	// X0 is the knee of the log and rational curves, in metric units.
	X0 uint64 `cbor:"6,keyasint"`
}

// Tier is one escort tier for a proof type: a per-type cap unlocked when
// every Requires entry is met by the provisional capped per-type sums.
type Tier struct {
	CapMicro uint64 `cbor:"1,keyasint"`
	// Requires maps proof type tag -> minimum provisional μ-nat sum.
	// Tier 0 has no requirements.
	Requires map[uint8]uint64 `cbor:"2,keyasint,omitempty"`
}

// TypeParams bundles everything the adapter and caps engine read for one
// proof type.
type TypeParams struct {
	WeightMicro uint64 `cbor:"1,keyasint"`
	Curve       Curve  `cbor:"2,keyasint"`
	// CapProofMicro is the per-proof cap C_p, CapTypeMicro the base
	// per-type cap C_t (tier 0 when tiers are configured).
	CapProofMicro uint64 `cbor:"3,keyasint"`
	CapTypeMicro  uint64 `cbor:"4,keyasint"`
	// BoostMicro is the smooth-escort slope b[t], μ-scaled.
	BoostMicro uint64 `cbor:"5,keyasint"`
	// Tiers beyond the base cap, in unlock order.
	Tiers []Tier `cbor:"6,keyasint,omitempty"`
	// MaxBodyBytes and TimeBudgetMS bound proof verification.
	MaxBodyBytes uint32 `cbor:"7,keyasint"`
	TimeBudgetMS uint32 `cbor:"8,keyasint"`
}

// EscortMode selects how diversity adjusts scores.
type EscortMode uint8

const (
	EscortOff    EscortMode = 0
	EscortSmooth EscortMode = 1
	EscortTiered EscortMode = 2
	// EscortBoth applies smooth multipliers before tiered cap evaluation.
	EscortBoth EscortMode = 3
)

// EscortParams configures the diversity adjustment.
type EscortParams struct {
	Mode EscortMode `cbor:"1,keyasint"`
	// BMaxMicro bounds every per-type boost slope.
	BMaxMicro uint64 `cbor:"2,keyasint"`
	// RefMicro maps proof type tag -> reference escort sum; the diversity
	// index is the normalized min-ratio over these entries.
	RefMicro map[uint8]uint64 `cbor:"3,keyasint,omitempty"`
}

// AlphaParams configures the per-type fairness tuner.
type AlphaParams struct {
	// TargetMicro is the target share τ per type tag, μ-fractions summing
	// to roughly 1e6.
	TargetMicro map[uint8]uint64 `cbor:"1,keyasint,omitempty"`
	Window      uint32           `cbor:"2,keyasint"`
	StepMicro   uint64           `cbor:"3,keyasint"`
	MinMicro    uint64           `cbor:"4,keyasint"`
	MaxMicro    uint64           `cbor:"5,keyasint"`
}

// ThetaParams configures threshold retargeting.
type ThetaParams struct {
	Genesis uint64 `cbor:"1,keyasint"` // Θ at epoch 0, μ-nats
	Min     uint64 `cbor:"2,keyasint"`
	Max     uint64 `cbor:"3,keyasint"`
	// StepMax bounds |ΔΘ| per epoch.
	StepMax uint64 `cbor:"4,keyasint"`
	// EtaMicro is the μ-scaled gain on ln(Δ/Δ*).
	EtaMicro uint64 `cbor:"5,keyasint"`
	// TargetIntervalMS is Δ*, EMAAlphaMicro the μ-scaled smoothing factor
	// on observed intervals.
	TargetIntervalMS uint64 `cbor:"6,keyasint"`
	EMAAlphaMicro    uint64 `cbor:"7,keyasint"`
	// EpochLength is the retarget period in blocks.
	EpochLength uint64 `cbor:"8,keyasint"`
	// MarginMicro is the required gap Θ_min − Γ.
	MarginMicro uint64 `cbor:"9,keyasint"`
}

// VDFParams configures the beacon's delay function and round schedule.
type VDFParams struct {
	ModulusBytes  []byte `cbor:"1,keyasint"`
	ChallengeBits uint32 `cbor:"2,keyasint"`
	Delay         uint64 `cbor:"3,keyasint"`
	// RoundLength is the height span of one beacon round; the commit
	// window opens at the round start, the reveal window at RevealOffset.
	RoundLength  uint64 `cbor:"4,keyasint"`
	CommitLen    uint64 `cbor:"5,keyasint"`
	RevealOffset uint64 `cbor:"6,keyasint"`
	RevealLen    uint64 `cbor:"7,keyasint"`
	// Lag is the consumer lag L >= 1.
	Lag uint64 `cbor:"8,keyasint"`
}

// TTLParams holds nullifier lifetimes in blocks.
type TTLParams struct {
	RevealTTL uint64 `cbor:"1,keyasint"`
	ProofTTL  uint64 `cbor:"2,keyasint"`
}

// Document is the complete policy. Per-type parameters are dense arrays
// indexed by proof type tag.
type Document struct {
	Version uint32 `cbor:"1,keyasint"`
	// LnVersion pins the fixed-point log kernel into the root.
	LnVersion string                              `cbor:"2,keyasint"`
	Types     [types.NumProofTypes]TypeParams     `cbor:"3,keyasint"`
	// GammaMicro is the global cap Γ on Σψ_eff.
	GammaMicro uint64       `cbor:"4,keyasint"`
	Escort     EscortParams `cbor:"5,keyasint"`
	Alpha      AlphaParams  `cbor:"6,keyasint"`
	Theta      ThetaParams  `cbor:"7,keyasint"`
	VDF        VDFParams    `cbor:"8,keyasint"`
	TTL        TTLParams    `cbor:"9,keyasint"`
}

// Policy is a loaded, validated, immutable policy with its content root.
type Policy struct {
	doc  Document
	root types.Hash
}

// Load validates the document, computes its root, and freezes it.
func Load(doc Document) (*Policy, error) {
	if err := validate(&doc); err != nil {
		return nil, err
	}
	enc, err := types.MarshalCanonical(&doc)
	if err != nil {
		return nil, err
	}
	return &Policy{doc: doc, root: crypto.TagHash(rootTag, enc)}, nil
}

// Decode loads a policy from its canonical encoding.
func Decode(data []byte) (*Policy, error) {
	var doc Document
	if err := types.UnmarshalCanonical(data, &doc); err != nil {
		return nil, err
	}
	return Load(doc)
}

// Encode returns the canonical encoding of the document.
func (p *Policy) Encode() ([]byte, error) {
	return types.MarshalCanonical(&p.doc)
}

// Root returns the content hash pinned into headers.
func (p *Policy) Root() types.Hash { return p.root }

// Gamma returns the global cap Γ in μ-nats.
func (p *Policy) Gamma() fixedpoint.Micronats { return p.doc.GammaMicro }

// Type returns the parameters for a proof type. The tag must be valid.
func (p *Policy) Type(t types.ProofType) *TypeParams { return &p.doc.Types[t] }

// Escort returns the escort configuration.
func (p *Policy) Escort() *EscortParams { return &p.doc.Escort }

// Alpha returns the α-tuner configuration.
func (p *Policy) Alpha() *AlphaParams { return &p.doc.Alpha }

// Theta returns the retarget configuration.
func (p *Policy) Theta() *ThetaParams { return &p.doc.Theta }

// VDF returns the beacon configuration.
func (p *Policy) VDF() *VDFParams { return &p.doc.VDF }

// TTL returns the nullifier lifetimes.
func (p *Policy) TTL() *TTLParams { return &p.doc.TTL }

// Version returns the policy version number.
func (p *Policy) Version() uint32 { return p.doc.Version }

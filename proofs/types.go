// Package proofs defines the proof envelopes entering block bodies, the
// verified metrics extracted from them, the verifier registry, and the
// adapter mapping metrics to raw ψ scores under the active policy.
package proofs

import (
	"errors"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
	"github.com/animica/poies/nullifier"
)

// Proof errors surfaced to the validator.
var (
	ErrBudget        = errors.New("proofs: size or time budget exceeded")
	ErrSchema        = errors.New("proofs: envelope schema invalid")
	ErrRejected      = errors.New("proofs: verifier rejected proof")
	ErrMetricRange   = errors.New("proofs: metric out of range")
	ErrUnknownType   = errors.New("proofs: unknown proof type")
	ErrNoVerifier    = errors.New("proofs: no verifier for type")
	ErrNullifierBind = errors.New("proofs: nullifier does not match body")
)

// Envelope is one proof as it appears in a block body. Body is the
// verifier-specific canonical encoding; the nullifier must equal the
// domain-separated hash of Body.
type Envelope struct {
	Type            types.ProofType `cbor:"1,keyasint"`
	Body            []byte          `cbor:"2,keyasint"`
	Nullifier       types.Hash      `cbor:"3,keyasint"`
	VerifierVersion uint32          `cbor:"4,keyasint"`
}

// BodyHash returns the canonical sort key of the envelope.
func (e *Envelope) BodyHash() types.Hash {
	return crypto.Sum256(e.Body)
}

// CheckNullifier recomputes the domain-separated nullifier and compares.
func (e *Envelope) CheckNullifier() error {
	if nullifier.Compute(e.Type, e.Body) != e.Nullifier {
		return ErrNullifierBind
	}
	return nil
}

// Metrics is the tagged union of verified per-type measurements. Fractional
// fields are μ-scaled (1e6 = 1.0).
type Metrics interface {
	Type() types.ProofType
}

// HashMetrics marks a hash-share proof. Its contribution is the header's
// u-draw; it adds no ψ of its own.
type HashMetrics struct{}

// AIMetrics is the output of a verified AI useful-work proof.
type AIMetrics struct {
	Units           uint64 // accepted work units
	TrapsScoreMicro uint64 // trap-task pass score in [0, 1e6]
	QoSMicro        uint64 // quality-of-service score in [0, 1e6]
}

// QuantumMetrics is the output of a verified quantum-sampling proof.
type QuantumMetrics struct {
	Units           uint64
	TrapsScoreMicro uint64
}

// StorageMetrics is the output of a verified storage proof.
type StorageMetrics struct {
	RedundancyMicro uint64 // μ-scaled replicated-capacity units
	QoSMicro        uint64 // retrieval quality in [0, 1e6]
}

// VDFMetrics is the output of a verified standalone delay proof.
type VDFMetrics struct {
	Seconds uint64 // attested sequential delay
}

func (HashMetrics) Type() types.ProofType    { return types.ProofHash }
func (AIMetrics) Type() types.ProofType      { return types.ProofAI }
func (QuantumMetrics) Type() types.ProofType { return types.ProofQuantum }
func (StorageMetrics) Type() types.ProofType { return types.ProofStorage }
func (VDFMetrics) Type() types.ProofType     { return types.ProofVDF }

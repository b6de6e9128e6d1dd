// registry.go maps proof types to their verifiers. Verifiers are external
// collaborators: deterministic, bounded, and pure. The registry enforces
// the policy's byte budget before a verifier ever sees an envelope.
package proofs

import (
	"sync"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/policy"
)

// Verifier validates one proof family and extracts its metrics.
// Implementations must be deterministic and must respect the policy's time
// budget internally, returning ErrBudget when exceeded.
type Verifier interface {
	VerifyAndExtract(env *Envelope) (Metrics, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(env *Envelope) (Metrics, error)

// VerifyAndExtract implements Verifier.
func (f VerifierFunc) VerifyAndExtract(env *Envelope) (Metrics, error) { return f(env) }

// Registry holds one verifier per proof type.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[types.ProofType]Verifier
}

// NewRegistry creates an empty verifier registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[types.ProofType]Verifier)}
}

// Register installs a verifier for a proof type, replacing any previous
// one.
func (r *Registry) Register(t types.ProofType, v Verifier) error {
	if !t.Valid() {
		return ErrUnknownType
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[t] = v
	return nil
}

// Verify validates an envelope under the policy's budgets and returns its
// metrics: schema checks, byte bound, nullifier binding, then the
// type-specific verifier.
func (r *Registry) Verify(env *Envelope, pol *policy.Policy) (Metrics, error) {
	if env == nil || len(env.Body) == 0 {
		return nil, ErrSchema
	}
	if !env.Type.Valid() {
		return nil, ErrUnknownType
	}
	tp := pol.Type(env.Type)
	if tp.MaxBodyBytes != 0 && uint32(len(env.Body)) > tp.MaxBodyBytes {
		return nil, ErrBudget
	}
	if err := env.CheckNullifier(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	v, ok := r.verifiers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNoVerifier
	}

	m, err := v.VerifyAndExtract(env)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Type() != env.Type {
		return nil, ErrRejected
	}
	return m, nil
}

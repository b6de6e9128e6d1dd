// store.go holds the active policy plus the upgrade table of grandfathered
// predecessors. Headers may pin any root in the table; anything else fails
// validation. Policy swaps are out-of-band governance actions and happen
// only between blocks.
package policy

import (
	"errors"
	"sync"

	"github.com/animica/poies/core/types"
)

var (
	ErrUnknownRoot  = errors.New("policy: unknown policy root")
	ErrNilPolicy    = errors.New("policy: nil policy")
	ErrDuplicateKey = errors.New("policy: root already registered")
)

// Store resolves header policy roots to immutable policies.
type Store struct {
	mu      sync.RWMutex
	active  *Policy
	history map[types.Hash]*Policy
}

// NewStore creates a store with the given active policy.
func NewStore(active *Policy) (*Store, error) {
	if active == nil {
		return nil, ErrNilPolicy
	}
	s := &Store{history: make(map[types.Hash]*Policy)}
	s.active = active
	s.history[active.Root()] = active
	return s, nil
}

// Active returns the current policy.
func (s *Store) Active() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Lookup resolves a header's policy root against the active policy and the
// grandfathered history.
func (s *Store) Lookup(root types.Hash) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.history[root]
	if !ok {
		return nil, ErrUnknownRoot
	}
	return p, nil
}

// Grandfather registers a predecessor policy that headers may still pin.
func (s *Store) Grandfather(p *Policy) error {
	if p == nil {
		return ErrNilPolicy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.history[p.Root()]; exists {
		return ErrDuplicateKey
	}
	s.history[p.Root()] = p
	return nil
}

// Activate swaps the active policy, keeping the predecessor in the history
// table. Callers must drain in-flight validations first.
func (s *Store) Activate(p *Policy) error {
	if p == nil {
		return ErrNilPolicy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[p.Root()] = p
	s.active = p
	return nil
}

// Package consensus implements the PoIES acceptance core: the caps and
// escort engine, the scorer, threshold retargeting, the α fairness tuner,
// and the block validation facade tying them together with the beacon and
// nullifier subsystems.
package consensus

import (
	"errors"
	"fmt"
)

// Kind is the stable rejection taxonomy. Kinds, not messages, are the
// consensus-visible surface: logging and metrics key on them and no
// free-form string ever affects a decision.
type Kind uint8

const (
	KindPolicy Kind = iota + 1
	KindProof
	KindNullifierReuse
	KindScoring
	KindBelowThreshold
	KindBeacon
	KindRetarget
)

// String returns the stable kind tag.
func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy"
	case KindProof:
		return "proof"
	case KindNullifierReuse:
		return "nullifier-reuse"
	case KindScoring:
		return "scoring"
	case KindBelowThreshold:
		return "below-threshold"
	case KindBeacon:
		return "beacon"
	case KindRetarget:
		return "retarget"
	default:
		return "unknown"
	}
}

// Error is a consensus rejection with its kind and underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("consensus: %s", e.Kind)
	}
	return fmt.Sprintf("consensus: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so callers can test
// errors.Is(err, &Error{Kind: KindBelowThreshold}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func reject(k Kind, err error) *Error { return &Error{Kind: k, Err: err} }

// KindOf extracts the rejection kind, or 0 for non-consensus errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// Facade-local causes.
var (
	errThetaMismatch   = errors.New("header theta does not match retarget state")
	errEpochMismatch   = errors.New("header epoch does not match retarget state")
	errUDrawBind       = errors.New("header u-draw binding mismatch")
	errProofsRoot      = errors.New("header proofs root mismatch")
	errBeaconRef       = errors.New("header beacon reference mismatch")
	errBeaconRefNoRec  = errors.New("header references a beacon record the body lacks")
	errDuplicateInBody = errors.New("duplicate nullifier within block body")
	errNilInput        = errors.New("nil header, body, or state")
)

// validator.go is the block validation facade: one transactional decision
// combining policy pinning, proof verification, nullifier replay checks,
// scoring, and beacon finalization. It is a pure function of the header,
// body, pinned policy, retarget state, and a nullifier snapshot; nothing
// is mutated before acceptance.
package consensus

import (
	"encoding/binary"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/animica/poies/beacon"
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
	"github.com/animica/poies/nullifier"
	"github.com/animica/poies/policy"
	"github.com/animica/poies/proofs"
)

var log = logrus.WithField("prefix", "poies")

// Body is the consensus-relevant part of a block body: the proof envelopes
// and, when the block finalizes a beacon round, the finalization record.
type Body struct {
	Proofs []proofs.Envelope `cbor:"1,keyasint,omitempty"`
	Beacon *beacon.Record    `cbor:"2,keyasint,omitempty"`
}

// ProofsRoot computes the Merkle-free commitment to the envelope list: the
// hash of its canonical encoding. Cheap and order-binding, which is all
// the header needs.
func (b *Body) ProofsRoot() (types.Hash, error) {
	enc, err := types.MarshalCanonical(b.Proofs)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Sum256(enc), nil
}

// State bundles the immutable inputs a validation runs against.
type State struct {
	Nullifiers *nullifier.Snapshot
	Theta      ThetaState
	Alpha      AlphaState
	// PrevBeacon is the output of the last finalized round on this branch
	// (zero before any round).
	PrevBeacon types.Hash
}

// AcceptedBlock is the successful outcome: the verdict plus the side
// effects the chain-head advancer must commit atomically.
type AcceptedBlock struct {
	Header     *types.Header
	Acceptance *Acceptance
	// Nullifiers are the records to insert on head advance.
	Nullifiers []nullifier.Record
	// Beacon is the finalized record, when the block finalized a round.
	Beacon *beacon.Record
}

// Validator wires the collaborating subsystems into the facade.
type Validator struct {
	policies  *policy.Store
	verifiers *proofs.Registry
}

// NewValidator creates a validation facade.
func NewValidator(policies *policy.Store, verifiers *proofs.Registry) *Validator {
	return &Validator{policies: policies, verifiers: verifiers}
}

// VerifyBlockConsensus runs the full acceptance decision. It never mutates
// the snapshot; on success the returned nullifier records are the only
// pending side effect.
func (v *Validator) VerifyBlockConsensus(header *types.Header, body *Body, state *State) (*AcceptedBlock, error) {
	if header == nil || body == nil || state == nil || state.Nullifiers == nil {
		return nil, reject(KindPolicy, errNilInput)
	}

	// 1. Policy pinning: the header's root must resolve to the active
	// policy or a grandfathered predecessor.
	pol, err := v.policies.Lookup(header.PolicyRoot)
	if err != nil {
		return nil, reject(KindPolicy, err)
	}
	if header.EpochIndex != state.Theta.EpochIndex {
		return nil, reject(KindRetarget, errEpochMismatch)
	}
	if header.Theta != state.Theta.ThetaMicro {
		return nil, reject(KindRetarget, errThetaMismatch)
	}

	// 2. Header bindings: template commitment and proofs root.
	template, err := header.TemplateBytes()
	if err != nil {
		return nil, reject(KindPolicy, err)
	}
	if crypto.Sum256(template) != header.UDrawBind {
		return nil, reject(KindPolicy, errUDrawBind)
	}
	proofsRoot, err := body.ProofsRoot()
	if err != nil {
		return nil, reject(KindProof, err)
	}
	if proofsRoot != header.ProofsRoot {
		return nil, reject(KindProof, errProofsRoot)
	}

	// 3. Verify envelopes and collect nullifiers; replay inside the body
	// or against the snapshot rejects the block.
	ttl := pol.TTL()
	seen := make(map[types.Hash]struct{}, len(body.Proofs))
	pending := make([]nullifier.Record, 0, len(body.Proofs))
	scored := make([]proofs.Scored, 0, len(body.Proofs))
	for i := range body.Proofs {
		env := &body.Proofs[i]
		m, verr := v.verifiers.Verify(env, pol)
		if verr != nil {
			return nil, reject(KindProof, verr)
		}
		if _, dup := seen[env.Nullifier]; dup {
			return nil, reject(KindNullifierReuse, errDuplicateInBody)
		}
		seen[env.Nullifier] = struct{}{}
		if state.Nullifiers.Contains(env.Nullifier) {
			return nil, reject(KindNullifierReuse, nullifier.ErrDuplicate)
		}
		pending = append(pending, nullifier.Record{
			ID:        env.Nullifier,
			Type:      env.Type,
			FirstSeen: header.Height,
			ExpiresAt: header.Height + types.Height(ttl.ProofTTL),
		})
		scored = append(scored, proofs.Scored{
			Env:     env,
			Metrics: m,
			SortKey: env.BodyHash(),
		})
	}

	// 4. Canonical order: type tag ascending, then body hash ascending.
	sort.Slice(scored, func(i, j int) bool {
		ti, tj := scored[i].Metrics.Type(), scored[j].Metrics.Type()
		if ti != tj {
			return ti < tj
		}
		return lessHash(scored[i].SortKey, scored[j].SortKey)
	})

	// 5. Adapter: raw ψ with the α multiplier, then the cap order.
	for i := range scored {
		psi, aerr := proofs.RawScore(scored[i].Metrics, pol, state.Alpha.Alpha(scored[i].Metrics.Type()))
		if aerr != nil {
			return nil, reject(KindProof, aerr)
		}
		scored[i].PsiRaw = psi
	}
	score, err := ApplyCaps(scored, pol)
	if err != nil {
		return nil, err
	}

	// 6. The draw and the predicate.
	u := ComputeUDraw(template, header.NonceBytes())
	acc := Evaluate(HDrawMicro(u), score, header.Theta)
	acc.UDraw = types.BytesToHash(u.Bytes())
	if !acc.Accepted {
		return nil, reject(KindBelowThreshold, nil)
	}

	// 7. Beacon finalization, when the header references a record.
	if !header.BeaconRef.IsZero() {
		rec := body.Beacon
		if rec == nil {
			return nil, reject(KindBeacon, errBeaconRefNoRec)
		}
		recHash, herr := rec.Hash()
		if herr != nil {
			return nil, reject(KindBeacon, herr)
		}
		if recHash != header.BeaconRef {
			return nil, reject(KindBeacon, errBeaconRef)
		}
		if berr := beacon.VerifyFinalization(rec, header.Height, state.PrevBeacon, pol); berr != nil {
			return nil, reject(KindBeacon, berr)
		}
		// Reveals are replay-protected under their own TTL.
		for i := range rec.Reveals {
			r := &rec.Reveals[i]
			id := nullifier.Compute(types.ProofReveal, revealNullifierBody(rec.Round, r))
			if _, dup := seen[id]; dup {
				return nil, reject(KindNullifierReuse, errDuplicateInBody)
			}
			seen[id] = struct{}{}
			if state.Nullifiers.Contains(id) {
				return nil, reject(KindNullifierReuse, nullifier.ErrDuplicate)
			}
			pending = append(pending, nullifier.Record{
				ID:        id,
				Type:      types.ProofReveal,
				FirstSeen: header.Height,
				ExpiresAt: header.Height + types.Height(ttl.RevealTTL),
			})
		}
	} else if body.Beacon != nil {
		return nil, reject(KindBeacon, errBeaconRef)
	}

	log.WithFields(logrus.Fields{
		"height": header.Height,
		"h_u":    acc.HMicro,
		"psi":    score.TotalMicro,
		"theta":  header.Theta,
	}).Debug("block accepted")

	return &AcceptedBlock{
		Header:     header,
		Acceptance: acc,
		Nullifiers: pending,
		Beacon:     body.Beacon,
	}, nil
}

// revealNullifierBody is the canonical byte form a reveal nullifier
// hashes: round_be8 || addr || salt || payload_hash. Binding the round
// means the same participant material cannot replay across rounds even
// after TTL expiry.
func revealNullifierBody(round uint64, r *beacon.Reveal) []byte {
	buf := make([]byte, 8, 8+types.AddressLength+beacon.SaltLength+types.HashLength)
	binary.BigEndian.PutUint64(buf, round)
	buf = append(buf, r.Addr.Bytes()...)
	buf = append(buf, r.Salt[:]...)
	buf = append(buf, r.PayloadHash.Bytes()...)
	return buf
}

func lessHash(a, b types.Hash) bool {
	for i := 0; i < types.HashLength; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// RetargetEpoch advances Θ and α from one epoch's accepted-block history.
// BlockStat carries what the canonical chain records per block.
type BlockStat struct {
	IntervalMS uint64
	Score      *ScoreVector
}

// RetargetEpoch folds a completed epoch's stats into the retarget states
// and applies both boundary updates. Pure: inputs are returned advanced,
// never mutated in place.
func RetargetEpoch(theta ThetaState, alpha AlphaState, stats []BlockStat, pol *policy.Policy) (ThetaState, AlphaState, error) {
	var err error
	for _, st := range stats {
		theta, err = theta.ObserveInterval(st.IntervalMS, pol)
		if err != nil {
			return theta, alpha, err
		}
		if st.Score != nil {
			alpha = alpha.ObserveBlock(st.Score)
		}
	}
	theta, err = theta.Retarget(pol)
	if err != nil {
		return theta, alpha, err
	}
	alpha = alpha.Retarget(pol)

	log.WithFields(logrus.Fields{
		"epoch": theta.EpochIndex,
		"theta": theta.ThetaMicro,
	}).Debug("epoch retargeted")
	return theta, alpha, nil
}

// Package beacon implements the PoIES randomness beacon: commit–reveal
// rounds scheduled by block height, XOR-fold aggregation of reveals, VDF
// input derivation, Wesolowski verification, and the lagged consumer chain
// that hands finalized outputs to downstream subsystems.
package beacon

import (
	"bytes"
	"errors"
	"sort"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
)

// Beacon errors surfaced through the validator's BeaconError kind.
var (
	ErrNoReveals      = errors.New("beacon: empty reveal set")
	ErrCommitMismatch = errors.New("beacon: reveal commit not under commit root")
	ErrRevealRoot     = errors.New("beacon: reveal root mismatch")
	ErrAggregate      = errors.New("beacon: aggregate hash mismatch")
	ErrVDFInput       = errors.New("beacon: vdf input mismatch")
	ErrVDFInvalid     = errors.New("beacon: vdf verification failed")
	ErrOutsideWindow  = errors.New("beacon: finalization outside round window")
	ErrPrevMismatch   = errors.New("beacon: previous beacon mismatch")
	ErrRoundGap       = errors.New("beacon: non-contiguous round")
	ErrUnknownRound   = errors.New("beacon: round not finalized")
	ErrLagWindow      = errors.New("beacon: round younger than consumer lag")
)

// SaltLength is the fixed reveal salt size.
const SaltLength = 32

// Reveal opens one commitment: the participant address, the salt, and the
// payload hash the commitment bound. Payload bytes themselves stay
// off-chain; the hash is what the aggregation folds.
type Reveal struct {
	Addr        types.Address    `cbor:"1,keyasint"`
	Salt        [SaltLength]byte `cbor:"2,keyasint"`
	PayloadHash types.Hash       `cbor:"3,keyasint"`
	CommitProof MerkleProof      `cbor:"4,keyasint"`
}

// Commit returns the commitment hash the reveal must open.
func (r *Reveal) Commit() types.Hash {
	return crypto.TagHash(crypto.TagRandCommit, r.Addr.Bytes(), r.Salt[:], r.PayloadHash.Bytes())
}

// leafBytes is the canonical reveal leaf: addr || salt || payload_hash.
func (r *Reveal) leafBytes() []byte {
	buf := make([]byte, 0, types.AddressLength+SaltLength+types.HashLength)
	buf = append(buf, r.Addr.Bytes()...)
	buf = append(buf, r.Salt[:]...)
	buf = append(buf, r.PayloadHash.Bytes()...)
	return buf
}

// Record is one finalized beacon round as carried in a finalizing block.
type Record struct {
	Round       uint64     `cbor:"1,keyasint"`
	CommitRoot  types.Hash `cbor:"2,keyasint"`
	RevealRoot  types.Hash `cbor:"3,keyasint"`
	Reveals     []Reveal   `cbor:"4,keyasint"`
	Aggregate   types.Hash `cbor:"5,keyasint"`
	X           types.Hash `cbor:"6,keyasint"`
	Delay       uint64     `cbor:"7,keyasint"`
	Y           []byte     `cbor:"8,keyasint"`
	Pi          []byte     `cbor:"9,keyasint"`
	PrevBeacon  types.Hash `cbor:"10,keyasint"`
}

// Hash returns the record's canonical content hash, the value headers
// reference through BeaconRef.
func (rec *Record) Hash() (types.Hash, error) {
	enc, err := types.MarshalCanonical(rec)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Sum256(enc), nil
}

// Output is the randomness consumers draw: the hash of the VDF output.
func (rec *Record) Output() types.Hash {
	return crypto.Sum256(rec.Y)
}

// sortReveals orders reveals by their canonical leaf bytes, the
// consensus-mandated transcript order.
func sortReveals(reveals []Reveal) []Reveal {
	out := make([]Reveal, len(reveals))
	copy(out, reveals)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].leafBytes(), out[j].leafBytes()) < 0
	})
	return out
}

// FoldReveals XOR-folds H(addr||salt||payload_hash) over the sorted
// reveals and returns the domain-tagged aggregate.
func FoldReveals(reveals []Reveal) (types.Hash, error) {
	if len(reveals) == 0 {
		return types.Hash{}, ErrNoReveals
	}
	var fold types.Hash
	for _, r := range sortReveals(reveals) {
		h := crypto.Sum256(r.leafBytes())
		for i := range fold {
			fold[i] ^= h[i]
		}
	}
	return crypto.TagHash(crypto.TagRandAgg, fold[:]), nil
}

// RevealRootOf recomputes the reveal Merkle root over the sorted leaves.
func RevealRootOf(reveals []Reveal) (types.Hash, error) {
	if len(reveals) == 0 {
		return types.Hash{}, ErrNoReveals
	}
	sorted := sortReveals(reveals)
	leaves := make([][]byte, len(sorted))
	for i := range sorted {
		leaves[i] = sorted[i].leafBytes()
	}
	return MerkleRoot(leaves)
}

// DeriveInput computes X = H("rand/vdf-input" || aggregate || prev).
func DeriveInput(aggregate, prevBeacon types.Hash) types.Hash {
	return crypto.TagHash(crypto.TagVDFInput, aggregate.Bytes(), prevBeacon.Bytes())
}

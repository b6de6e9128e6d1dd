// Package nullifier implements the insert-once anti-replay registry. Every
// accepted proof and beacon reveal contributes a 32-byte domain-separated
// nullifier; reuse inside the type's TTL window invalidates the block.
// The registry has a single writer (the chain-head advancer); fork
// validation runs against immutable snapshots.
package nullifier

import (
	"errors"
	"sync"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
)

var (
	ErrDuplicate = errors.New("nullifier: id already present")
	ErrInvalid   = errors.New("nullifier: invalid record")
)

// Record is one registered nullifier.
type Record struct {
	ID        types.Hash      `cbor:"1,keyasint"`
	Type      types.ProofType `cbor:"2,keyasint"`
	FirstSeen types.Height    `cbor:"3,keyasint"`
	ExpiresAt types.Height    `cbor:"4,keyasint"`
}

// Compute derives the nullifier id for a proof body under the per-type
// domain tag.
func Compute(t types.ProofType, canonicalBody []byte) types.Hash {
	return crypto.TagHash(crypto.NullifierTag(t.String()), canonicalBody)
}

// Registry is the authoritative nullifier set. All methods are safe for
// concurrent use, but by contract only the head advancer mutates it.
type Registry struct {
	mu      sync.RWMutex
	records map[types.Hash]Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[types.Hash]Record)}
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id types.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// InsertIfAbsent registers a record, failing if the id is already present.
func (r *Registry) InsertIfAbsent(rec Record) error {
	if rec.ID.IsZero() || rec.ExpiresAt < rec.FirstSeen {
		return ErrInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return ErrDuplicate
	}
	r.records[rec.ID] = rec
	return nil
}

// Commit inserts a batch atomically: either every record is new and all are
// inserted, or none are.
func (r *Registry) Commit(recs []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		if rec.ID.IsZero() || rec.ExpiresAt < rec.FirstSeen {
			return ErrInvalid
		}
		if _, ok := r.records[rec.ID]; ok {
			return ErrDuplicate
		}
	}
	for _, rec := range recs {
		r.records[rec.ID] = rec
	}
	return nil
}

// GC drops records that expired strictly before the given height and
// returns how many were removed.
func (r *Registry) GC(height types.Height) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, rec := range r.records {
		if rec.ExpiresAt < height {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns an immutable view of the current set for fork-local
// validation. The copy is O(n); validators hold it for the lifetime of one
// candidate block.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make(map[types.Hash]Record, len(r.records))
	for id, rec := range r.records {
		records[id] = rec
	}
	return &Snapshot{records: records}
}

// Snapshot is a frozen registry view. It never mutates.
type Snapshot struct {
	records map[types.Hash]Record
}

// Contains reports whether id was registered when the snapshot was taken.
func (s *Snapshot) Contains(id types.Hash) bool {
	_, ok := s.records[id]
	return ok
}

// Get returns the record for id, if present.
func (s *Snapshot) Get(id types.Hash) (Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

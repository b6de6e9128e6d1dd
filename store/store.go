// Package store persists the acceptance engine's durable state in
// goleveldb: the nullifier registry, the per-epoch Θ/α cache, and the
// policy history. Values are canonical CBOR so persisted state re-encodes
// byte-identically. The store is a recovery substrate; consensus decisions
// only ever read in-memory snapshots.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/animica/poies/consensus"
	"github.com/animica/poies/core/types"
	"github.com/animica/poies/nullifier"
	"github.com/animica/poies/policy"
)

var log = logrus.WithField("prefix", "poies-store")

// ErrNotFound is returned for missing keys.
var ErrNotFound = errors.New("store: not found")

// Key prefixes.
var (
	prefixNullifier = []byte("n/")
	prefixEpoch     = []byte("e/")
	prefixPolicy    = []byte("p/")
)

// EpochState is the cached retarget state for one epoch boundary.
type EpochState struct {
	Theta consensus.ThetaState `cbor:"1,keyasint"`
	Alpha consensus.AlphaState `cbor:"2,keyasint"`
}

// Store wraps a leveldb database.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func nullifierKey(id types.Hash) []byte {
	return append(append([]byte{}, prefixNullifier...), id[:]...)
}

func epochKey(e types.Epoch) []byte {
	k := append([]byte{}, prefixEpoch...)
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], uint64(e))
	return append(k, be[:]...)
}

func policyKey(root types.Hash) []byte {
	return append(append([]byte{}, prefixPolicy...), root[:]...)
}

// PutNullifiers writes a batch of records atomically, the persistence half
// of a head-advance commit.
func (s *Store) PutNullifiers(recs []nullifier.Record) error {
	batch := new(leveldb.Batch)
	for i := range recs {
		enc, err := types.MarshalCanonical(&recs[i])
		if err != nil {
			return err
		}
		batch.Put(nullifierKey(recs[i].ID), enc)
	}
	return s.db.Write(batch, nil)
}

// GetNullifier loads one record.
func (s *Store) GetNullifier(id types.Hash) (nullifier.Record, error) {
	var rec nullifier.Record
	data, err := s.db.Get(nullifierKey(id), nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return rec, ErrNotFound
		}
		return rec, err
	}
	if err := types.UnmarshalCanonical(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// GCNullifiers deletes records expired before height and returns the
// count removed.
func (s *Store) GCNullifiers(height types.Height) (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefixNullifier), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	removed := 0
	for iter.Next() {
		var rec nullifier.Record
		if err := types.UnmarshalCanonical(iter.Value(), &rec); err != nil {
			return removed, err
		}
		if rec.ExpiresAt < height {
			batch.Delete(append([]byte{}, iter.Key()...))
			removed++
		}
	}
	if err := iter.Error(); err != nil {
		return removed, err
	}
	if removed > 0 {
		if err := s.db.Write(batch, nil); err != nil {
			return 0, err
		}
		log.WithField("removed", removed).Debug("nullifier gc")
	}
	return removed, nil
}

// LoadRegistry rebuilds the in-memory registry from persisted records,
// the recovery path after restart.
func (s *Store) LoadRegistry() (*nullifier.Registry, error) {
	reg := nullifier.NewRegistry()
	iter := s.db.NewIterator(util.BytesPrefix(prefixNullifier), nil)
	defer iter.Release()
	for iter.Next() {
		var rec nullifier.Record
		if err := types.UnmarshalCanonical(iter.Value(), &rec); err != nil {
			return nil, err
		}
		if err := reg.InsertIfAbsent(rec); err != nil {
			return nil, err
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return reg, nil
}

// PutEpoch caches the retarget state at an epoch boundary.
func (s *Store) PutEpoch(e types.Epoch, st EpochState) error {
	enc, err := types.MarshalCanonical(&st)
	if err != nil {
		return err
	}
	return s.db.Put(epochKey(e), enc, nil)
}

// GetEpoch loads a cached epoch state.
func (s *Store) GetEpoch(e types.Epoch) (EpochState, error) {
	var st EpochState
	data, err := s.db.Get(epochKey(e), nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return st, ErrNotFound
		}
		return st, err
	}
	if err := types.UnmarshalCanonical(data, &st); err != nil {
		return st, err
	}
	return st, nil
}

// PutPolicy persists a policy document under its root.
func (s *Store) PutPolicy(p *policy.Policy) error {
	enc, err := p.Encode()
	if err != nil {
		return err
	}
	return s.db.Put(policyKey(p.Root()), enc, nil)
}

// GetPolicy loads and re-validates a policy by root.
func (s *Store) GetPolicy(root types.Hash) (*policy.Policy, error) {
	data, err := s.db.Get(policyKey(root), nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p, err := policy.Decode(data)
	if err != nil {
		return nil, err
	}
	if p.Root() != root {
		return nil, errors.New("store: policy root mismatch")
	}
	return p, nil
}

// CommitAccepted persists an accepted block's nullifier side effects.
func (s *Store) CommitAccepted(blk *consensus.AcceptedBlock) error {
	return s.PutNullifiers(blk.Nullifiers)
}

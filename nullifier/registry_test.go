package nullifier

import (
	"testing"

	"github.com/animica/poies/core/types"
)

func rec(id byte, first, expires types.Height) Record {
	return Record{
		ID:        types.BytesToHash([]byte{id}),
		Type:      types.ProofAI,
		FirstSeen: first,
		ExpiresAt: expires,
	}
}

func TestComputeDomainSeparation(t *testing.T) {
	body := []byte("proof body")
	a := Compute(types.ProofAI, body)
	b := Compute(types.ProofQuantum, body)
	if a == b {
		t.Fatal("different proof types must yield different nullifiers")
	}
	if a != Compute(types.ProofAI, body) {
		t.Fatal("Compute not deterministic")
	}
}

func TestInsertIfAbsent(t *testing.T) {
	r := NewRegistry()
	if err := r.InsertIfAbsent(rec(1, 10, 100)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := r.InsertIfAbsent(rec(1, 11, 101)); err != ErrDuplicate {
		t.Errorf("duplicate insert: got %v, want %v", err, ErrDuplicate)
	}
	if !r.Contains(rec(1, 0, 0).ID) {
		t.Error("registry must contain inserted id")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	// Malformed records are rejected.
	if err := r.InsertIfAbsent(Record{}); err != ErrInvalid {
		t.Errorf("zero record: got %v, want %v", err, ErrInvalid)
	}
	if err := r.InsertIfAbsent(rec(2, 100, 10)); err != ErrInvalid {
		t.Errorf("inverted window: got %v, want %v", err, ErrInvalid)
	}
}

func TestCommitAtomicity(t *testing.T) {
	r := NewRegistry()
	if err := r.InsertIfAbsent(rec(1, 10, 100)); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	// A batch containing one duplicate inserts nothing.
	batch := []Record{rec(2, 20, 120), rec(1, 20, 120), rec(3, 20, 120)}
	if err := r.Commit(batch); err != ErrDuplicate {
		t.Fatalf("commit with duplicate: got %v, want %v", err, ErrDuplicate)
	}
	if r.Contains(rec(2, 0, 0).ID) || r.Contains(rec(3, 0, 0).ID) {
		t.Fatal("failed commit must not leave partial inserts")
	}

	if err := r.Commit([]Record{rec(2, 20, 120), rec(3, 20, 120)}); err != nil {
		t.Fatalf("clean commit failed: %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
}

func TestGC(t *testing.T) {
	r := NewRegistry()
	for i, exp := range []types.Height{50, 100, 150} {
		if err := r.InsertIfAbsent(rec(byte(i+1), 10, exp)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	if removed := r.GC(100); removed != 1 {
		t.Errorf("GC(100) removed %d, want 1", removed)
	}
	if r.Contains(rec(1, 0, 0).ID) {
		t.Error("expired record survived gc")
	}
	// Expiring exactly at the height is still live.
	if !r.Contains(rec(2, 0, 0).ID) {
		t.Error("record expiring at current height must survive")
	}
}

func TestSnapshotImmutability(t *testing.T) {
	r := NewRegistry()
	if err := r.InsertIfAbsent(rec(1, 10, 100)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	snap := r.Snapshot()
	if !snap.Contains(rec(1, 0, 0).ID) {
		t.Fatal("snapshot missing existing record")
	}

	// Later registry inserts do not leak into the snapshot.
	if err := r.InsertIfAbsent(rec(2, 20, 120)); err != nil {
		t.Fatalf("post-snapshot insert failed: %v", err)
	}
	if snap.Contains(rec(2, 0, 0).ID) {
		t.Fatal("snapshot must be immutable")
	}
	if snap.Len() != 1 {
		t.Errorf("snapshot Len = %d, want 1", snap.Len())
	}

	got, ok := snap.Get(rec(1, 0, 0).ID)
	if !ok || got.ExpiresAt != 100 {
		t.Errorf("snapshot Get = %+v, %v", got, ok)
	}
}

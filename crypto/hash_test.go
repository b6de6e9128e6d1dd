package crypto

import (
	"testing"
)

func TestSum256Deterministic(t *testing.T) {
	a := Sum256([]byte("poies"))
	b := Sum256([]byte("poies"))
	if a != b {
		t.Fatal("Sum256 not deterministic")
	}
	if a.IsZero() {
		t.Fatal("Sum256 returned zero hash")
	}
}

func TestTagHashDomainSeparation(t *testing.T) {
	data := []byte("same payload")
	commits := TagHash(TagRandCommit, data)
	agg := TagHash(TagRandAgg, data)
	if commits == agg {
		t.Fatal("different tags must produce different hashes")
	}
	// Tagged and untagged hashing must never collide trivially.
	if commits == Sum256(data) {
		t.Fatal("tagged hash equals raw hash")
	}
}

func TestTagHashConcatenation(t *testing.T) {
	// Multi-part hashing is over the concatenation, not per-part.
	a := TagHash(TagUDraw, []byte("ab"), []byte("c"))
	b := TagHash(TagUDraw, []byte("a"), []byte("bc"))
	if a != b {
		t.Fatal("part boundaries must not affect the digest")
	}
}

func TestNullifierTag(t *testing.T) {
	if got := NullifierTag("ai"); got != "poies/nullifier/ai" {
		t.Errorf("NullifierTag = %q, want %q", got, "poies/nullifier/ai")
	}
}

// Package crypto provides the hashing and number-theoretic primitives of the
// PoIES acceptance engine: domain-tagged SHA3-256, deterministic
// hash-to-prime and hash-to-Z_n* derivations, and Wesolowski VDF
// evaluation and verification.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/animica/poies/core/types"
)

// Domain-separation tags for the commit, aggregate, VDF, u-draw and
// nullifier hashes; each of those prepends exactly one of these ASCII
// strings. Other digests (proof roots, body and record hashes, Merkle
// nodes, fold leaves) use the untagged Sum256.
const (
	TagRandCommit   = "rand/commit"
	TagRandAgg      = "rand/aggregate"
	TagVDFInput     = "rand/vdf-input"
	TagVDFBase      = "rand/vdf/base"
	TagVDFChallenge = "rand/vdf/chal"
	TagUDraw        = "poies/u-draw"

	// TagNullifierPrefix is completed with the proof type name, e.g.
	// "poies/nullifier/ai".
	TagNullifierPrefix = "poies/nullifier/"
)

// Sum256 returns the SHA3-256 digest of the concatenation of parts.
func Sum256(parts ...[]byte) types.Hash {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// TagHash hashes parts under the given domain tag.
func TagHash(tag string, parts ...[]byte) types.Hash {
	h := sha3.New256()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// NullifierTag returns the full domain tag for a proof type name.
func NullifierTag(typeName string) string {
	return TagNullifierPrefix + typeName
}

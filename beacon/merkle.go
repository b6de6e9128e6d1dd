// merkle.go implements the binary SHA3 Merkle tree over beacon commitments.
// Leaves and interior nodes are domain-separated with a prefix byte so a
// leaf can never be replayed as a node. Odd levels promote the last node
// unchanged.
package beacon

import (
	"errors"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
)

var (
	ErrEmptyTree    = errors.New("beacon: empty merkle tree")
	ErrBadProof     = errors.New("beacon: merkle proof does not verify")
	ErrProofIndex   = errors.New("beacon: merkle proof index out of range")
)

var (
	merkleLeafPrefix = []byte{0x00}
	merkleNodePrefix = []byte{0x01}
)

func hashLeaf(data []byte) types.Hash {
	return crypto.Sum256(merkleLeafPrefix, data)
}

func hashNode(left, right types.Hash) types.Hash {
	return crypto.Sum256(merkleNodePrefix, left[:], right[:])
}

// MerkleProof authenticates one leaf against a root.
type MerkleProof struct {
	Index    uint64       `cbor:"1,keyasint"`
	Siblings []types.Hash `cbor:"2,keyasint"`
}

// MerkleRoot computes the root over the given leaves.
func MerkleRoot(leaves [][]byte) (types.Hash, error) {
	if len(leaves) == 0 {
		return types.Hash{}, ErrEmptyTree
	}
	level := make([]types.Hash, len(leaves))
	for i, l := range leaves {
		level[i] = hashLeaf(l)
	}
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashNode(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0], nil
}

// MerkleProve builds the proof for the leaf at index.
func MerkleProve(leaves [][]byte, index uint64) (*MerkleProof, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	if index >= uint64(len(leaves)) {
		return nil, ErrProofIndex
	}
	level := make([]types.Hash, len(leaves))
	for i, l := range leaves {
		level[i] = hashLeaf(l)
	}
	proof := &MerkleProof{Index: index}
	pos := index
	for len(level) > 1 {
		sib := pos ^ 1
		if sib < uint64(len(level)) {
			proof.Siblings = append(proof.Siblings, level[sib])
		} else {
			// Promoted node: no sibling at this level.
			proof.Siblings = append(proof.Siblings, types.Hash{})
		}
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashNode(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
		pos /= 2
	}
	return proof, nil
}

// VerifyMerkle checks a leaf against a root using the proof. Zero-hash
// siblings mark promoted nodes and hash through unchanged.
func VerifyMerkle(leaf []byte, proof *MerkleProof, root types.Hash) error {
	if proof == nil {
		return ErrBadProof
	}
	cur := hashLeaf(leaf)
	pos := proof.Index
	for _, sib := range proof.Siblings {
		switch {
		case sib.IsZero():
			// promoted, keep cur
		case pos%2 == 0:
			cur = hashNode(cur, sib)
		default:
			cur = hashNode(sib, cur)
		}
		pos /= 2
	}
	if cur != root {
		return ErrBadProof
	}
	return nil
}

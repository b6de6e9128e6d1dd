// transcript.go collects commitments during a round's commit window and
// assembles the finalization record once reveals and the VDF output are
// available. This is the participant/prover side; consensus only ever
// calls VerifyFinalization.
package beacon

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/animica/poies/core/types"
)

var (
	ErrDuplicateCommit = errors.New("beacon: address already committed")
	ErrUnknownCommit   = errors.New("beacon: reveal without commitment")
)

// Transcript accumulates one round's commitments.
type Transcript struct {
	mu      sync.Mutex
	round   uint64
	commits map[types.Address]types.Hash
}

// NewTranscript starts an empty transcript for a round.
func NewTranscript(round uint64) *Transcript {
	return &Transcript{round: round, commits: make(map[types.Address]types.Hash)}
}

// Round returns the transcript's round id.
func (t *Transcript) Round() uint64 { return t.round }

// AddCommit records a participant's commitment. One commitment per address.
func (t *Transcript) AddCommit(addr types.Address, commit types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.commits[addr]; ok {
		return ErrDuplicateCommit
	}
	t.commits[addr] = commit
	return nil
}

// commitLeaves returns the commitment hashes sorted bytewise, the order
// the commit tree is built in.
func (t *Transcript) commitLeaves() [][]byte {
	leaves := make([][]byte, 0, len(t.commits))
	for _, c := range t.commits {
		leaves = append(leaves, c.Bytes())
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i], leaves[j]) < 0 })
	return leaves
}

// CommitRoot returns the Merkle root over the sorted commitments.
func (t *Transcript) CommitRoot() (types.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return MerkleRoot(t.commitLeaves())
}

// ProveCommit builds the Merkle proof for a commitment.
func (t *Transcript) ProveCommit(commit types.Hash) (*MerkleProof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	leaves := t.commitLeaves()
	for i, l := range leaves {
		if bytes.Equal(l, commit.Bytes()) {
			return MerkleProve(leaves, uint64(i))
		}
	}
	return nil, ErrUnknownCommit
}

// BuildRecord assembles an unproven finalization record from the reveal
// set: roots, aggregate, and VDF input. The caller supplies the VDF output
// once evaluated.
func (t *Transcript) BuildRecord(reveals []Reveal, prevBeacon types.Hash, delay uint64) (*Record, error) {
	commitRoot, err := t.CommitRoot()
	if err != nil {
		return nil, err
	}
	revealRoot, err := RevealRootOf(reveals)
	if err != nil {
		return nil, err
	}
	agg, err := FoldReveals(reveals)
	if err != nil {
		return nil, err
	}
	return &Record{
		Round:      t.round,
		CommitRoot: commitRoot,
		RevealRoot: revealRoot,
		Reveals:    sortReveals(reveals),
		Aggregate:  agg,
		X:          DeriveInput(agg, prevBeacon),
		Delay:      delay,
		PrevBeacon: prevBeacon,
	}, nil
}

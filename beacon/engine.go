// engine.go verifies beacon finalizations against the policy's round
// schedule and VDF parameters, and maintains the finalized chain consumed
// with a lag.
package beacon

import (
	"math/big"
	"sync"

	"github.com/animica/poies/core/types"
	"github.com/animica/poies/crypto"
	"github.com/animica/poies/policy"
)

// Schedule resolves round windows from the policy. All windows are
// half-open height intervals.
type Schedule struct {
	roundLength  uint64
	commitLen    uint64
	revealOffset uint64
	revealLen    uint64
}

// NewSchedule builds the round schedule from validated policy parameters.
func NewSchedule(v *policy.VDFParams) Schedule {
	return Schedule{
		roundLength:  v.RoundLength,
		commitLen:    v.CommitLen,
		revealOffset: v.RevealOffset,
		revealLen:    v.RevealLen,
	}
}

// CommitWindow returns [start, end) of the commit window for a round.
func (s Schedule) CommitWindow(round uint64) (types.Height, types.Height) {
	start := round * s.roundLength
	return types.Height(start), types.Height(start + s.commitLen)
}

// RevealWindow returns [start, end) of the reveal window for a round.
func (s Schedule) RevealWindow(round uint64) (types.Height, types.Height) {
	start := round*s.roundLength + s.revealOffset
	return types.Height(start), types.Height(start + s.revealLen)
}

// FinalizeHeight returns the unique height at which a round finalizes.
func (s Schedule) FinalizeHeight(round uint64) types.Height {
	return types.Height(round*s.roundLength + s.revealOffset + s.revealLen)
}

// VerifyFinalization checks a full beacon record finalized at the given
// height against the policy: window, commit openings, reveal root,
// aggregate, VDF input, and the Wesolowski proof. prevBeacon is the output
// of the previous finalized round (zero for the first).
func VerifyFinalization(rec *Record, height types.Height, prevBeacon types.Hash, pol *policy.Policy) error {
	if rec == nil || len(rec.Reveals) == 0 {
		return ErrNoReveals
	}
	v := pol.VDF()
	sched := NewSchedule(v)
	if height != sched.FinalizeHeight(rec.Round) {
		return ErrOutsideWindow
	}
	if rec.PrevBeacon != prevBeacon {
		return ErrPrevMismatch
	}
	if rec.Delay != v.Delay {
		return ErrVDFInvalid
	}

	// Every reveal must open a commitment under the round's commit root.
	for i := range rec.Reveals {
		r := &rec.Reveals[i]
		commit := r.Commit()
		if err := VerifyMerkle(commit.Bytes(), &r.CommitProof, rec.CommitRoot); err != nil {
			return ErrCommitMismatch
		}
	}

	root, err := RevealRootOf(rec.Reveals)
	if err != nil {
		return err
	}
	if root != rec.RevealRoot {
		return ErrRevealRoot
	}

	agg, err := FoldReveals(rec.Reveals)
	if err != nil {
		return err
	}
	if agg != rec.Aggregate {
		return ErrAggregate
	}

	if DeriveInput(agg, prevBeacon) != rec.X {
		return ErrVDFInput
	}

	n := new(big.Int).SetBytes(v.ModulusBytes)
	ves, err := crypto.NewWesolowski(n, uint(v.ChallengeBits))
	if err != nil {
		return ErrVDFInvalid
	}
	if err := ves.Verify(rec.X.Bytes(), rec.Delay, rec.Y, rec.Pi); err != nil {
		return ErrVDFInvalid
	}
	return nil
}

// Chain is the canonical sequence of finalized beacon records. Fork choice
// owns it: records on orphaned branches are dropped with DropFrom. All
// methods are safe for concurrent use.
type Chain struct {
	mu      sync.RWMutex
	lag     uint64
	records map[uint64]*Record
	tip     uint64
	genesis bool // true once any round has been appended
}

// NewChain creates an empty chain with the policy's consumer lag.
func NewChain(lag uint64) *Chain {
	if lag == 0 {
		lag = 1
	}
	return &Chain{lag: lag, records: make(map[uint64]*Record)}
}

// Tip returns the newest finalized round and whether any round exists.
func (c *Chain) Tip() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip, c.genesis
}

// PrevOutput returns the chaining value for the next round: the output of
// the tip, or the zero hash before any round finalized.
func (c *Chain) PrevOutput() types.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.genesis {
		return types.Hash{}
	}
	return c.records[c.tip].Output()
}

// Append adds a finalized record. Rounds must be contiguous and chain to
// the previous output.
func (c *Chain) Append(rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genesis {
		if rec.Round != c.tip+1 {
			return ErrRoundGap
		}
		if rec.PrevBeacon != c.records[c.tip].Output() {
			return ErrPrevMismatch
		}
	} else {
		if rec.PrevBeacon != (types.Hash{}) {
			return ErrPrevMismatch
		}
	}
	c.records[rec.Round] = rec
	c.tip = rec.Round
	c.genesis = true
	return nil
}

// Get returns a finalized round's record.
func (c *Chain) Get(round uint64) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[round]
	if !ok {
		return nil, ErrUnknownRound
	}
	return rec, nil
}

// Lagged returns the output consumers at the given round should use:
// round − lag. Consuming younger rounds is a grinding vector and is
// refused.
func (c *Chain) Lagged(round uint64) (types.Hash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if round < c.lag {
		return types.Hash{}, ErrLagWindow
	}
	rec, ok := c.records[round-c.lag]
	if !ok {
		return types.Hash{}, ErrUnknownRound
	}
	return rec.Output(), nil
}

// DropFrom removes the given round and everything after it, rolling the
// tip back. Used when fork choice discards a branch.
func (c *Chain) DropFrom(round uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.genesis {
		return
	}
	for r := round; r <= c.tip; r++ {
		delete(c.records, r)
	}
	if round == 0 {
		c.genesis = false
		c.tip = 0
		return
	}
	if round <= c.tip {
		c.tip = round - 1
	}
	if _, ok := c.records[c.tip]; !ok {
		c.genesis = false
		c.tip = 0
	}
}

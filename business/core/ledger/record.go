package ledger

import (
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/block"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// Record represents a mined block and the facts about how it was mined.
type Record struct {
	Block      block.Block   `json:"block"`
	Difficulty uint          `json:"difficulty"`
	Target     string        `json:"target"`
	MerkleRoot string        `json:"merkle_root"`
	Hash       hashing.Hash  `json:"hash"`
	BlockHash  hashing.Hash  `json:"block_hash"`
	Attempts   uint64        `json:"attempts"`
	Start      time.Time     `json:"start"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Difficulty returns the number of leading zero units the block at index
// must be mined with: the length of the chain before it, capped at
// maxDifficulty. A maxDifficulty of zero or above pow.MaxDifficulty means
// pow.MaxDifficulty.
func Difficulty(index uint64, maxDifficulty uint) uint {
	if maxDifficulty == 0 || maxDifficulty > pow.MaxDifficulty {
		maxDifficulty = pow.MaxDifficulty
	}

	if index == 0 {
		return 0
	}

	if d := index - 1; d < uint64(maxDifficulty) {
		return uint(d)
	}
	return maxDifficulty
}

// ValidateChain checks every record links to the one before it and that
// the merkle root and proof stored with it are correct. The difficulty
// and target of each record must be the ones the ledger mines with, not
// whatever the record claims.
func ValidateChain(records []Record, maxDifficulty uint, target pow.Target) error {
	var prev hashing.Hash
	for i, rec := range records {
		exp := uint64(i + 1)
		if err := validateRecord(rec, exp, prev, Difficulty(exp, maxDifficulty), target); err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrInvalidChain, exp, err)
		}
		prev = rec.BlockHash
	}

	return nil
}

// validateRecord checks a single record against the expected index,
// previous block hash, difficulty and target.
func validateRecord(rec Record, index uint64, prevHash hashing.Hash, difficulty uint, target pow.Target) error {
	b := rec.Block

	if rec.Difficulty != difficulty {
		return fmt.Errorf("difficulty %d does not match %d", rec.Difficulty, difficulty)
	}

	if rec.Target != target.String() {
		return fmt.Errorf("target %q does not match %q", rec.Target, target)
	}

	if b.Index() != index {
		return fmt.Errorf("index %d out of order", b.Index())
	}

	if b.PrevHash() != prevHash {
		return fmt.Errorf("prev hash %s does not match %s", b.PrevHash(), prevHash)
	}

	if h := b.Hash(); h != rec.BlockHash {
		return fmt.Errorf("block hash %s does not match %s", rec.BlockHash, h)
	}

	tree := merkle.NewTree(b.Transactions())
	if err := tree.Build(); err != nil {
		return err
	}

	root, err := tree.Root()
	if err != nil {
		return err
	}

	if root != rec.MerkleRoot {
		return fmt.Errorf("merkle root %s does not match %s", rec.MerkleRoot, root)
	}

	p, err := pow.New(b, difficulty, pow.WithTarget(target))
	if err != nil {
		return err
	}

	if err := p.Verify(b.Proof()); err != nil {
		return err
	}

	if h := p.Hash(b.Proof()); h != rec.Hash {
		return fmt.Errorf("proof hash %s does not match %s", rec.Hash, h)
	}

	return nil
}

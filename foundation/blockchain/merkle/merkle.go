// Package merkle provides an implementation of a merkle tree that reduces an
// ordered list of transactions to a single root for block validation.
package merkle

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
)

// ErrSize is the structural size error. Every error reporting an empty or
// inconsistent collection wraps it.
var ErrSize = errors.New("sizing error")

// Set of structural errors returned by the tree.
var (
	ErrEmptyLevel = fmt.Errorf("%w: length of pairs must be greater than 0", ErrSize)
	ErrEmptyTree  = fmt.Errorf("%w: merkle tree cannot be empty when computing the root", ErrSize)
	ErrNotBuilt   = fmt.Errorf("%w: merkle tree has not been built", ErrSize)
)

// ErrNotFound is returned when a transaction is not part of the tree.
var ErrNotFound = errors.New("unable to find data in tree")

// =============================================================================

// Tree represents a merkle tree over an ordered list of transactions. The
// tree owns its copy of the transactions. A tree is built once and never
// changed afterwards.
type Tree struct {
	transactions []string
	levels       [][]string
	built        bool
	err          error
}

// NewTree constructs an unbuilt tree from a copy of the transactions.
func NewTree(transactions []string) *Tree {
	txs := make([]string, len(transactions))
	copy(txs, transactions)

	return &Tree{
		transactions: txs,
	}
}

// Build constructs the leafs and every intermediate level of the tree. An
// empty list of transactions produces an empty tree, not an error. Calling
// Build on a built tree returns the original result.
func (t *Tree) Build() error {
	if t.built {
		return t.err
	}
	t.built = true

	if len(t.transactions) == 0 {
		return nil
	}

	// The leaf level is the encoded hash of every transaction in order.
	level := make([]string, len(t.transactions))
	for i, tx := range t.transactions {
		level[i] = hashing.Encode(hashing.SumString(tx))
	}
	t.levels = append(t.levels, level)

	// Reduce the level until only the root remains.
	for len(level) > 1 {
		next, err := CombinePairs(level)
		if err != nil {
			t.err = err
			t.levels = nil
			return err
		}

		t.levels = append(t.levels, next)
		level = next
	}

	return nil
}

// Root returns the merkle root. The root is only available for a built,
// non-empty tree. A failed build returns the error that caused it.
func (t *Tree) Root() (string, error) {
	tree, err := t.Tree()
	if err != nil {
		return "", err
	}

	if len(tree) == 0 {
		return "", ErrEmptyTree
	}

	return tree[0], nil
}

// Tree returns the final level of the tree, which holds the root once the
// tree is built, or the error the build produced.
func (t *Tree) Tree() ([]string, error) {
	if !t.built {
		return nil, ErrNotBuilt
	}

	if t.err != nil {
		return nil, fmt.Errorf("computing root: %w", t.err)
	}

	if len(t.levels) == 0 {
		return []string{}, nil
	}

	last := t.levels[len(t.levels)-1]
	out := make([]string, len(last))
	copy(out, last)

	return out, nil
}

// Rounds returns the number of reductions performed to reach the root.
func (t *Tree) Rounds() int {
	if len(t.levels) == 0 {
		return 0
	}

	return len(t.levels) - 1
}

// Levels returns a copy of every level of the tree, starting with the leafs.
func (t *Tree) Levels() [][]string {
	levels := make([][]string, len(t.levels))
	for i, level := range t.levels {
		levels[i] = make([]string, len(level))
		copy(levels[i], level)
	}

	return levels
}

// Values returns a copy of the transactions stored in the tree.
func (t *Tree) Values() []string {
	values := make([]string, len(t.transactions))
	copy(values, t.transactions)

	return values
}

// Verify rebuilds the tree from its transactions and validates the resulting
// root matches the root this tree holds.
func (t *Tree) Verify() error {
	root, err := t.Root()
	if err != nil {
		return err
	}

	check := NewTree(t.transactions)
	if err := check.Build(); err != nil {
		return err
	}

	calculated, err := check.Root()
	if err != nil {
		return err
	}

	if calculated != root {
		return fmt.Errorf("root hash invalid, got %s, exp %s", calculated, root)
	}

	return nil
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a transaction is in the tree. This is how you can use
// the information returned by this function.
//
// Hash the transaction in question and know the merkle tree root.
// leaf = Encode(Sum(tx))
//
// Given the proof and order from this function for the transaction.
// proof = [p0, p1, p2]
// order = [0, 1, 1]
//
// Process the leaf against the proof like this.
// h1   = Encode(Sum(p0 + leaf))  -- Order 0 says proof comes first.
// h2   = Encode(Sum(h1 + p1))    -- Order 1 says proof comes second.
// root = Encode(Sum(h2 + p2))    -- Order 1 says proof comes second.
//
// The calculated root should match the merkle root.
func (t *Tree) Proof(tx string) ([]string, []int64, error) {
	if _, err := t.Root(); err != nil {
		return nil, nil, err
	}

	idx := -1
	for i, v := range t.transactions {
		if v == tx {
			idx = i
			break
		}
	}

	if idx == -1 {
		return nil, nil, ErrNotFound
	}

	var proof []string
	var order []int64

	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case idx%2 == 1:
			proof = append(proof, level[idx-1])
			order = append(order, 0) // left sibling, concat first.

		case idx+1 < len(level):
			proof = append(proof, level[idx+1])
			order = append(order, 1) // right sibling, concat second.

		default:
			proof = append(proof, level[idx])
			order = append(order, 1) // duplicated tail, concat second.
		}

		idx /= 2
	}

	return proof, order, nil
}

// VerifyProof validates the transaction is part of the tree with the
// specified root by walking the proof produced by Proof.
func VerifyProof(root string, tx string, proof []string, order []int64) error {
	if len(proof) != len(order) {
		return fmt.Errorf("proof has %d hashes but %d order values", len(proof), len(order))
	}

	h := hashing.Encode(hashing.SumString(tx))
	for i, p := range proof {
		switch order[i] {
		case 0:
			h = combine(p, h)
		case 1:
			h = combine(h, p)
		default:
			return fmt.Errorf("invalid proof order %d at position %d", order[i], i)
		}
	}

	if h != root {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// =============================================================================

// CombinePairs reduces a level to the next level up the tree. The level is
// walked in non-overlapping pairs from left to right and the encoded text of
// each pair is concatenated and hashed. An odd element at the end is paired
// with itself.
func CombinePairs(level []string) ([]string, error) {
	if len(level) == 0 {
		return nil, ErrEmptyLevel
	}

	next := make([]string, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left, right := level[i], level[i]
		if i+1 < len(level) {
			right = level[i+1]
		}

		next = append(next, combine(left, right))
	}

	return next, nil
}

// combine hashes the concatenation of two encoded child hashes.
func combine(left string, right string) string {
	return hashing.Encode(hashing.SumString(left + right))
}

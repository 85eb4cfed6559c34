// Package block provides the immutable record describing one ledger entry.
package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
)

// MaxOwnerLength is the maximum number of characters allowed for an owner.
const MaxOwnerLength = 25

// ErrOwnerTooLong is returned when an owner identifier is longer than
// MaxOwnerLength characters.
var ErrOwnerTooLong = errors.New("owner identifier too long")

// =============================================================================

// Block represents a group of transactions batched together. Once
// constructed a Block is never changed, the accessors hand out copies.
type Block struct {
	index        uint64
	owner        string
	timestamp    int64
	transactions []string
	proof        uint64
	prevHash     hashing.Hash
}

// New constructs a block. The owner must be at most MaxOwnerLength
// characters long, longer values are rejected and never truncated.
func New(index uint64, owner string, timestamp int64, transactions []string, proof uint64, prevHash hashing.Hash) (Block, error) {
	if n := utf8.RuneCountInString(owner); n > MaxOwnerLength {
		return Block{}, fmt.Errorf("owner %q has %d characters, max %d: %w", owner, n, MaxOwnerLength, ErrOwnerTooLong)
	}

	b := Block{
		index:        index,
		owner:        owner,
		timestamp:    timestamp,
		transactions: copyOf(transactions),
		proof:        proof,
		prevHash:     prevHash,
	}

	return b, nil
}

// Index returns the position of the block in the chain.
func (b Block) Index() uint64 {
	return b.index
}

// Owner returns the identifier of the account that owns the block.
func (b Block) Owner() string {
	return b.owner
}

// Timestamp returns the unix time the block was created.
func (b Block) Timestamp() int64 {
	return b.timestamp
}

// Transactions returns a copy of the ordered transactions.
func (b Block) Transactions() []string {
	return copyOf(b.transactions)
}

// Proof returns the nonce that solved the proof of work.
func (b Block) Proof() uint64 {
	return b.proof
}

// PrevHash returns the hash of the previous block in the chain.
func (b Block) PrevHash() hashing.Hash {
	return b.prevHash
}

// WithProof returns a copy of the block carrying the specified nonce.
func (b Block) WithProof(nonce uint64) Block {
	nb := b
	nb.transactions = copyOf(b.transactions)
	nb.proof = nonce
	return nb
}

// Hash returns the unique hash for the block. The JSON form of every field,
// including the proof and previous hash, is hashed.
func (b Block) Hash() hashing.Hash {
	h, err := hashing.SumJSON(b.data())
	if err != nil {
		return hashing.Hash{}
	}

	return h
}

// =============================================================================

// Data represents the serialized form of a block.
type Data struct {
	Index        uint64       `json:"index"`
	Owner        string       `json:"owner"`
	Timestamp    int64        `json:"timestamp"`
	Transactions []string     `json:"transactions"`
	Proof        uint64       `json:"proof"`
	PrevHash     hashing.Hash `json:"prev_hash"`
}

// ToBlock converts the serialized form back into a block, applying the
// same checks as New.
func (d Data) ToBlock() (Block, error) {
	return New(d.Index, d.Owner, d.Timestamp, d.Transactions, d.Proof, d.PrevHash)
}

// MarshalJSON implements the json.Marshaler interface.
func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.data())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Block) UnmarshalJSON(data []byte) error {
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	nb, err := d.ToBlock()
	if err != nil {
		return err
	}

	*b = nb
	return nil
}

func (b Block) data() Data {
	return Data{
		Index:        b.index,
		Owner:        b.owner,
		Timestamp:    b.timestamp,
		Transactions: copyOf(b.transactions),
		Proof:        b.proof,
		PrevHash:     b.prevHash,
	}
}

func copyOf(s []string) []string {
	if s == nil {
		return []string{}
	}

	c := make([]string, len(s))
	copy(c, s)
	return c
}

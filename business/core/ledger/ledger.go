// Package ledger is the core API for the single node ledger and implements
// the mining rules and chain bookkeeping.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/block"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// DefaultTransactions are mined when a caller provides none of their own.
var DefaultTransactions = []string{"tx1", "tx2", "tx3"}

// EventHandler defines a function that is called when events
// occur in the processing of mining blocks.
type EventHandler func(v string, args ...any)

// Storer represents the behavior required to persist the ledger.
type Storer interface {
	AppendMine(hash string, start time.Time, elapsed time.Duration) error
	AppendHash(index uint64, hash string) error
	WriteChain(chain any) error
	LoadChain(chain any) error
}

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	Address       string
	Owner         string
	Target        pow.Target
	MaxAttempts   uint64
	MaxDifficulty uint
	Store         Storer
	EvHandler     EventHandler
}

// Ledger manages the chain of mined blocks for the node.
type Ledger struct {
	address       string
	owner         string
	target        pow.Target
	maxAttempts   uint64
	maxDifficulty uint
	store         Storer
	evHandler     EventHandler

	receiving atomic.Bool
	mineable  atomic.Bool
	mined     atomic.Uint64

	mining sync.Mutex
	mu     sync.RWMutex
	chain  []Record
}

// New constructs a ledger, loading and validating any chain already held
// by the store. The node starts neither receiving connections nor mining.
func New(cfg Config) (*Ledger, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Store == nil {
		return nil, errors.New("ledger store must be provided")
	}

	if cfg.Owner == "" {
		cfg.Owner = cfg.Address
	}

	if _, err := block.New(0, cfg.Owner, 0, nil, 0, hashing.Hash{}); err != nil {
		return nil, err
	}

	if cfg.MaxDifficulty == 0 || cfg.MaxDifficulty > pow.MaxDifficulty {
		cfg.MaxDifficulty = pow.MaxDifficulty
	}

	// Load all existing blocks from storage into memory for processing.
	var chain []Record
	if err := cfg.Store.LoadChain(&chain); err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	if err := ValidateChain(chain, cfg.MaxDifficulty, cfg.Target); err != nil {
		return nil, err
	}

	ev("ledger: New: loaded chain: blocks[%d]", len(chain))

	l := Ledger{
		address:       cfg.Address,
		owner:         cfg.Owner,
		target:        cfg.Target,
		maxAttempts:   cfg.MaxAttempts,
		maxDifficulty: cfg.MaxDifficulty,
		store:         cfg.Store,
		evHandler:     ev,
		chain:         chain,
	}

	return &l, nil
}

// Address returns the address the node dispatches connections on.
func (l *Ledger) Address() string {
	return l.address
}

// Owner returns the default owner used for mined blocks.
func (l *Ledger) Owner() string {
	return l.owner
}

// SetReceiving changes whether the node accepts connections.
func (l *Ledger) SetReceiving(v bool) {
	l.receiving.Store(v)
	l.evHandler("ledger: SetReceiving: receiving[%t]", v)
}

// Receiving reports whether the node accepts connections.
func (l *Ledger) Receiving() bool {
	return l.receiving.Load()
}

// SetMineable changes whether the node mines blocks.
func (l *Ledger) SetMineable(v bool) {
	l.mineable.Store(v)
	l.evHandler("ledger: SetMineable: mineable[%t]", v)
}

// Mineable reports whether the node mines blocks.
func (l *Ledger) Mineable() bool {
	return l.mineable.Load()
}

// =============================================================================

// Mine builds the next block for the specified transactions, solves the
// proof of work and appends the block to the chain. Only one block is mined
// at a time. The difficulty is the length of the chain before the block is
// added, capped by the configured maximum.
func (l *Ledger) Mine(ctx context.Context, owner string, txs []string) (Record, error) {
	if !l.Mineable() {
		return Record{}, &AttributeError{Attribute: "mineable", Operation: "mine"}
	}

	if len(txs) == 0 {
		return Record{}, ErrNoTransactions
	}

	if owner == "" {
		owner = l.owner
	}

	l.mining.Lock()
	defer l.mining.Unlock()

	l.evHandler("ledger: Mine: started")
	defer l.evHandler("ledger: Mine: completed")

	// =========================================================================
	// Prepare the next block from the tip of the chain.

	l.mu.RLock()
	length := len(l.chain)
	var prevHash hashing.Hash
	if length > 0 {
		prevHash = l.chain[length-1].BlockHash
	}
	l.mu.RUnlock()

	difficulty := Difficulty(uint64(length+1), l.maxDifficulty)

	b, err := block.New(uint64(length+1), owner, time.Now().UTC().Unix(), txs, 0, prevHash)
	if err != nil {
		return Record{}, err
	}

	tree := merkle.NewTree(txs)
	if err := tree.Build(); err != nil {
		return Record{}, err
	}

	root, err := tree.Root()
	if err != nil {
		return Record{}, err
	}

	l.evHandler("ledger: Mine: MINING: block[%d] difficulty[%d] target[%s] merkle[%s]", b.Index(), difficulty, l.target, root)

	// =========================================================================
	// Perform the proof of work search.

	p, err := pow.New(b, difficulty,
		pow.WithTarget(l.target),
		pow.WithMaxAttempts(l.maxAttempts),
		pow.WithEvHandler(l.evHandler),
	)
	if err != nil {
		return Record{}, err
	}

	start := time.Now().UTC()
	solution, err := p.Solve(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("mining block %d: %w", b.Index(), err)
	}
	elapsed := time.Since(start)

	b = b.WithProof(solution.Nonce)

	rec := Record{
		Block:      b,
		Difficulty: difficulty,
		Target:     l.target.String(),
		MerkleRoot: root,
		Hash:       solution.Hash,
		BlockHash:  b.Hash(),
		Attempts:   solution.Attempts,
		Start:      start,
		Elapsed:    elapsed,
	}

	// =========================================================================
	// Persist the block and then commit it to the chain in memory.

	if err := l.commit(rec); err != nil {
		return Record{}, err
	}

	l.evHandler("ledger: Mine: MINED: block[%d] hash[%s] nonce[%d] attempts[%d] elapsed[%s]", b.Index(), rec.Hash, solution.Nonce, solution.Attempts, elapsed)

	return rec, nil
}

// commit writes the record to the store and appends it to the chain.
func (l *Ledger) commit(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	chain := make([]Record, len(l.chain), len(l.chain)+1)
	copy(chain, l.chain)
	chain = append(chain, rec)

	hash := hashing.Encode(rec.Hash)

	if err := l.store.AppendMine(hash, rec.Start, rec.Elapsed); err != nil {
		return fmt.Errorf("writing mine log: %w", err)
	}

	if err := l.store.WriteChain(chain); err != nil {
		return fmt.Errorf("writing chain: %w", err)
	}

	if err := l.store.AppendHash(rec.Block.Index(), hash); err != nil {
		return fmt.Errorf("writing hash log: %w", err)
	}

	l.chain = chain
	l.mined.Add(1)

	return nil
}

// =============================================================================

// Chain returns a copy of the chain.
func (l *Ledger) Chain() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := make([]Record, len(l.chain))
	copy(chain, l.chain)
	return chain
}

// Length returns the number of blocks in the chain.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.chain)
}

// NumMined returns the number of blocks mined since the node started.
func (l *Ledger) NumMined() uint64 {
	return l.mined.Load()
}

// Latest returns the last block of the chain. False is returned when the
// chain is empty.
func (l *Ledger) Latest() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.chain) == 0 {
		return Record{}, false
	}
	return l.chain[len(l.chain)-1], true
}

// Validate checks the chain held in memory.
func (l *Ledger) Validate() error {
	return ValidateChain(l.Chain(), l.maxDifficulty, l.target)
}

// Package pow implements the proof of work search that finds a nonce whose
// hash over the block contents meets a difficulty target.
package pow

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/block"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
)

// MaxDifficulty is the largest number of leading zero bits a digest can have.
const MaxDifficulty = hashing.Size * 8

// DefaultMaxAttempts is the ceiling on nonces tried when no other ceiling
// is configured.
const DefaultMaxAttempts uint64 = 1 << 32

// Set of errors returned by the search.
var (
	ErrExhausted    = errors.New("search exhausted without finding a solution")
	ErrUnreachable  = errors.New("difficulty can never be met")
	ErrInvalidProof = errors.New("proof does not meet the difficulty target")
)

// =============================================================================

// Target defines how the difficulty is turned into the rule a hash
// must satisfy.
type Target int

// Set of target rules.
const (
	// BitTarget requires difficulty leading zero bits.
	BitTarget Target = iota

	// ByteTarget requires difficulty/8 leading zero bytes. Any remainder
	// bits are discarded, so a difficulty of 12 only demands one zero byte.
	ByteTarget
)

// String implements the fmt.Stringer interface.
func (t Target) String() string {
	switch t {
	case BitTarget:
		return "bits"
	case ByteTarget:
		return "bytes"
	}
	return "unknown"
}

// ParseTarget converts the name of a rule to a Target.
func ParseTarget(name string) (Target, error) {
	switch strings.ToLower(name) {
	case "bits", "bit":
		return BitTarget, nil
	case "bytes", "byte":
		return ByteTarget, nil
	}
	return 0, fmt.Errorf("unknown target rule %q", name)
}

// IsSolved checks the hash complies with the rule for the specified
// difficulty.
func IsSolved(target Target, difficulty uint, hash hashing.Hash) bool {
	if target == ByteTarget {
		difficulty -= difficulty % 8
	}

	return leadingZeroBits(hash) >= difficulty
}

// leadingZeroBits counts the zero bits at the start of the hash.
func leadingZeroBits(hash hashing.Hash) uint {
	var n uint
	for _, b := range hash {
		if b != 0 {
			return n + uint(bits.LeadingZeros8(b))
		}
		n += 8
	}
	return n
}

// =============================================================================

// Solution represents the outcome of a successful search.
type Solution struct {
	Nonce    uint64
	Hash     hashing.Hash
	Attempts uint64
}

// POW represents a proof of work search over a single block.
type POW struct {
	block       block.Block
	difficulty  uint
	target      Target
	maxAttempts uint64
	evHandler   func(v string, args ...any)
}

// WithTarget sets the rule used to interpret the difficulty.
func WithTarget(target Target) func(p *POW) {
	return func(p *POW) {
		p.target = target
	}
}

// WithMaxAttempts sets the maximum number of nonces to try. A value
// of zero keeps the default.
func WithMaxAttempts(n uint64) func(p *POW) {
	return func(p *POW) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithEvHandler sets a function to receive progress events.
func WithEvHandler(evHandler func(v string, args ...any)) func(p *POW) {
	return func(p *POW) {
		if evHandler != nil {
			p.evHandler = evHandler
		}
	}
}

// New constructs a search for the block. Difficulty is expressed in bits
// and must not ask for more zero bits than a digest holds.
func New(b block.Block, difficulty uint, options ...func(p *POW)) (*POW, error) {
	p := POW{
		block:       b,
		difficulty:  difficulty,
		target:      BitTarget,
		maxAttempts: DefaultMaxAttempts,
		evHandler:   func(v string, args ...any) {},
	}

	for _, option := range options {
		option(&p)
	}

	if p.target != BitTarget && p.target != ByteTarget {
		return nil, fmt.Errorf("unknown target rule %d", p.target)
	}

	if difficulty > MaxDifficulty {
		return nil, fmt.Errorf("difficulty %d exceeds %d bits: %w", difficulty, MaxDifficulty, ErrUnreachable)
	}

	return &p, nil
}

// Difficulty returns the configured difficulty in bits.
func (p *POW) Difficulty() uint {
	return p.difficulty
}

// Target returns the rule used to interpret the difficulty.
func (p *POW) Target() Target {
	return p.target
}

// Input returns the canonical text that is hashed for the nonce.
func (p *POW) Input(nonce uint64) string {
	return p.prefix() + strconv.FormatUint(nonce, 10)
}

// prefix returns the part of the canonical text that does not depend
// on the nonce.
func (p *POW) prefix() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(p.block.Index(), 10))
	sb.WriteString(p.block.Owner())
	sb.WriteString(strconv.FormatInt(p.block.Timestamp(), 10))
	sb.WriteString(strings.Join(p.block.Transactions(), ","))

	return sb.String()
}

// Hash returns the digest of the canonical text for the nonce.
func (p *POW) Hash(nonce uint64) hashing.Hash {
	return hashing.SumString(p.Input(nonce))
}

// Solve performs the work of mining to find the first nonce, counting up
// from 1, whose hash meets the target. The search stops with ErrExhausted
// once the maximum attempts are used and with the context error when the
// context is done.
func (p *POW) Solve(ctx context.Context) (Solution, error) {
	p.evHandler("pow: Solve: MINING: started: difficulty[%d] target[%s]", p.difficulty, p.target)
	defer p.evHandler("pow: Solve: MINING: completed")

	// The block fields do not change during the search, only the nonce.
	prefix := p.prefix()

	var attempts uint64
	for nonce := uint64(1); attempts < p.maxAttempts; nonce++ {
		attempts++
		if attempts%1_000_000 == 0 {
			p.evHandler("pow: Solve: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			p.evHandler("pow: Solve: MINING: CANCELLED")
			return Solution{}, ctx.Err()
		}

		hash := hashing.SumString(prefix + strconv.FormatUint(nonce, 10))
		if !IsSolved(p.target, p.difficulty, hash) {
			continue
		}

		p.evHandler("pow: Solve: MINING: SOLVED: nonce[%d]: hash[%s]: attempts[%d]", nonce, hash, attempts)

		sol := Solution{
			Nonce:    nonce,
			Hash:     hash,
			Attempts: attempts,
		}

		return sol, nil
	}

	p.evHandler("pow: Solve: MINING: EXHAUSTED: attempts[%d]", attempts)

	return Solution{}, fmt.Errorf("%d attempts at difficulty %d: %w", attempts, p.difficulty, ErrExhausted)
}

// Verify checks the nonce solves the proof of work for the block.
func (p *POW) Verify(nonce uint64) error {
	hash := p.Hash(nonce)
	if !IsSolved(p.target, p.difficulty, hash) {
		return fmt.Errorf("nonce %d hash %s difficulty %d: %w", nonce, hash, p.difficulty, ErrInvalidProof)
	}

	return nil
}

// Package hashing provides the digest and text encoding used by every
// component that needs to hash ledger data.
package hashing

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the number of bytes in a digest.
const Size = sha256.Size

// ZeroHash represents the encoded form of a digest of all zeros. It is used
// as the previous hash of the first block in the chain.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ErrInvalidLength is returned when decoded text does not hold exactly
// Size bytes.
var ErrInvalidLength = errors.New("invalid digest length")

// =============================================================================

// Hash represents a SHA-256 digest.
type Hash [Size]byte

// Sum returns the SHA-256 digest of the data. Empty input is valid.
func Sum(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// SumString returns the digest of the bytes of the string.
func SumString(s string) Hash {
	return Sum([]byte(s))
}

// SumJSON returns the digest of the JSON form of the value.
func SumJSON(value any) (Hash, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Hash{}, fmt.Errorf("marshal value for hashing: %w", err)
	}

	return Sum(data), nil
}

// Encode converts the digest to its 0x prefixed hex form. Hex can represent
// any byte sequence so this never fails and Decode reverses it exactly.
func Encode(h Hash) string {
	return hexutil.Encode(h[:])
}

// Decode converts the 0x prefixed hex form back into a digest.
func Decode(s string) (Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("decode digest %q: %w", s, err)
	}

	if len(b) != Size {
		return Hash{}, fmt.Errorf("decode digest: got %d bytes, exp %d: %w", len(b), Size, ErrInvalidLength)
	}

	var h Hash
	copy(h[:], b)

	return h, nil
}

// String implements the fmt.Stringer interface.
func (h Hash) String() string {
	return Encode(h)
}

// IsZero reports whether every byte of the digest is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements the encoding.TextMarshaler interface so a digest
// is written as its encoded string.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(Encode(h)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(text []byte) error {
	v, err := Decode(string(text))
	if err != nil {
		return err
	}

	*h = v
	return nil
}

package hashing_test

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func allBytes(b byte) hashing.Hash {
	var h hashing.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestRoundTrip(t *testing.T) {
	type table struct {
		name string
		hash hashing.Hash
	}

	tt := []table{
		{name: "zeros", hash: allBytes(0x00)},
		{name: "ones", hash: allBytes(0xFF)},
		{name: "empty", hash: hashing.Sum(nil)},
		{name: "tx", hash: hashing.SumString("tx")},
		{name: "invalid-utf8", hash: hashing.Hash{0xC3, 0x28, 0xA0, 0xA1, 0xE2, 0x28, 0xA1}},
	}

	t.Log("Given the need to encode and decode digests without loss.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				s := hashing.Encode(tst.hash)
				if !strings.HasPrefix(s, "0x") || len(s) != 2+2*hashing.Size {
					t.Fatalf("\t%s\tTest %d:\tShould encode to prefixed hex: %s", failed, testID, s)
				}
				t.Logf("\t%s\tTest %d:\tShould encode to prefixed hex.", success, testID)

				got, err := hashing.Decode(s)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to decode: %v", failed, testID, err)
				}

				if got != tst.hash {
					t.Logf("\t%s\tTest %d:\tgot: %x", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %x", failed, testID, tst.hash)
					t.Fatalf("\t%s\tTest %d:\tShould get back the original bytes.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the original bytes.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func TestSum(t *testing.T) {
	exp := sha256.Sum256([]byte("tx"))
	if got := hashing.SumString("tx"); got != hashing.Hash(exp) {
		t.Fatalf("\t%s\tShould match sha256: got %x, exp %x", failed, got, exp)
	}
	t.Logf("\t%s\tShould match sha256.", success)

	if hashing.Sum(nil) != hashing.Sum([]byte{}) {
		t.Fatalf("\t%s\tShould treat nil and empty input the same.", failed)
	}
	t.Logf("\t%s\tShould treat nil and empty input the same.", success)

	if hashing.Encode(hashing.Hash{}) != hashing.ZeroHash {
		t.Fatalf("\t%s\tShould encode the zero digest as ZeroHash.", failed)
	}
	t.Logf("\t%s\tShould encode the zero digest as ZeroHash.", success)
}

func TestDecodeErrors(t *testing.T) {
	tt := []string{
		"",
		"abcd",
		"0xzz",
		"0x00",
		hashing.ZeroHash + "00",
	}

	for _, s := range tt {
		if _, err := hashing.Decode(s); err == nil {
			t.Fatalf("\t%s\tShould fail to decode %q.", failed, s)
		}
	}
	t.Logf("\t%s\tShould fail to decode malformed text.", success)

	_, err := hashing.Decode("0x00")
	if !errors.Is(err, hashing.ErrInvalidLength) {
		t.Fatalf("\t%s\tShould report an invalid length: %v", failed, err)
	}
	t.Logf("\t%s\tShould report an invalid length.", success)
}

func TestJSON(t *testing.T) {
	v := struct {
		Hash hashing.Hash `json:"hash"`
	}{
		Hash: hashing.SumString("block"),
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal: %v", failed, err)
	}

	exp := `{"hash":"` + hashing.Encode(v.Hash) + `"}`
	if string(data) != exp {
		t.Fatalf("\t%s\tShould marshal as encoded text: got %s, exp %s", failed, data, exp)
	}
	t.Logf("\t%s\tShould marshal as encoded text.", success)

	var got struct {
		Hash hashing.Hash `json:"hash"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("\t%s\tShould be able to unmarshal: %v", failed, err)
	}

	if got.Hash != v.Hash {
		t.Fatalf("\t%s\tShould unmarshal to the same digest.", failed)
	}
	t.Logf("\t%s\tShould unmarshal to the same digest.", success)
}

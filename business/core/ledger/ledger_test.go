package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/business/sys/store"
	"github.com/ardanlabs/ledger/foundation/blockchain/hashing"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newLedger(t *testing.T, strg ledger.Storer) *ledger.Ledger {
	l, err := ledger.New(ledger.Config{
		Address: "localhost:3000",
		Owner:   "miner",
		Store:   strg,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a ledger: %v", failed, err)
	}
	return l
}

// =============================================================================

func TestFlags(t *testing.T) {
	l := newLedger(t, store.NewMemory())

	if l.Receiving() || l.Mineable() {
		t.Fatalf("\t%s\tShould start neither receiving nor mineable.", failed)
	}
	t.Logf("\t%s\tShould start neither receiving nor mineable.", success)

	_, err := l.Mine(context.Background(), "", ledger.DefaultTransactions)

	var ae *ledger.AttributeError
	if !errors.As(err, &ae) || ae.Attribute != "mineable" {
		t.Fatalf("\t%s\tShould refuse to mine while not mineable: %v", failed, err)
	}
	t.Logf("\t%s\tShould refuse to mine while not mineable.", success)

	l.SetReceiving(true)
	l.SetMineable(true)
	if !l.Receiving() || !l.Mineable() {
		t.Fatalf("\t%s\tShould report the flags once set.", failed)
	}
	t.Logf("\t%s\tShould report the flags once set.", success)
}

func TestMine(t *testing.T) {
	t.Log("Given the need to mine blocks onto the chain.")
	{
		mem := store.NewMemory()
		l := newLedger(t, mem)
		l.SetMineable(true)

		const blocks = 4
		for i := 0; i < blocks; i++ {
			rec, err := l.Mine(context.Background(), "", ledger.DefaultTransactions)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, i+1, err)
			}

			if rec.Block.Index() != uint64(i+1) || rec.Difficulty != uint(i) {
				t.Fatalf("\t%s\tShould use the chain length as difficulty: index %d difficulty %d", failed, rec.Block.Index(), rec.Difficulty)
			}

			if !pow.IsSolved(pow.BitTarget, rec.Difficulty, rec.Hash) {
				t.Fatalf("\t%s\tShould store a hash that meets the difficulty: %s", failed, rec.Hash)
			}
		}
		t.Logf("\t%s\tShould mine %d blocks with growing difficulty.", success, blocks)

		if l.Length() != blocks || l.NumMined() != blocks {
			t.Fatalf("\t%s\tShould count the mined blocks: length %d mined %d", failed, l.Length(), l.NumMined())
		}
		t.Logf("\t%s\tShould count the mined blocks.", success)

		chain := l.Chain()
		if !chain[0].Block.PrevHash().IsZero() || chain[1].Block.PrevHash() != chain[0].BlockHash {
			t.Fatalf("\t%s\tShould link every block to the one before it.", failed)
		}
		t.Logf("\t%s\tShould link every block to the one before it.", success)

		if chain[0].Block.Owner() != "miner" {
			t.Fatalf("\t%s\tShould use the configured owner: %q", failed, chain[0].Block.Owner())
		}
		t.Logf("\t%s\tShould use the configured owner.", success)

		if err := l.Validate(); err != nil {
			t.Fatalf("\t%s\tShould validate the mined chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate the mined chain.", success)

		hashes := mem.HashLines()
		if len(hashes) != blocks || hashes[3] != "BLOCK 4: "+hashing.Encode(chain[3].Hash) {
			t.Fatalf("\t%s\tShould append a hash line per block: %q", failed, hashes)
		}
		if mines := mem.MineLines(); len(mines) != blocks || !strings.Contains(mines[0], " MINED | start: ") {
			t.Fatalf("\t%s\tShould append a mining line per block: %q", failed, mines)
		}
		t.Logf("\t%s\tShould persist every block.", success)

		latest, ok := l.Latest()
		if !ok || latest.Block.Index() != blocks {
			t.Fatalf("\t%s\tShould return the latest block.", failed)
		}
		t.Logf("\t%s\tShould return the latest block.", success)
	}
}

func TestMineErrors(t *testing.T) {
	l := newLedger(t, store.NewMemory())
	l.SetMineable(true)

	if _, err := l.Mine(context.Background(), "", nil); !errors.Is(err, ledger.ErrNoTransactions) {
		t.Fatalf("\t%s\tShould refuse an empty block: %v", failed, err)
	}
	t.Logf("\t%s\tShould refuse an empty block.", success)

	if _, err := l.Mine(context.Background(), strings.Repeat("x", 26), []string{"tx"}); err == nil {
		t.Fatalf("\t%s\tShould refuse an owner longer than 25 characters.", failed)
	}
	t.Logf("\t%s\tShould refuse an owner longer than 25 characters.", success)

	if l.Length() != 0 {
		t.Fatalf("\t%s\tShould not add failed blocks: %d", failed, l.Length())
	}
	t.Logf("\t%s\tShould not add failed blocks.", success)
}

func TestReload(t *testing.T) {
	t.Log("Given the need to restart a node from its persisted chain.")
	{
		dir := t.TempDir()
		strg, err := store.NewFile(store.Paths{
			MinePath:   dir + "/mine.txt",
			ChainPath:  dir + "/chain.json",
			HashesPath: dir + "/hashes.txt",
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a file store: %v", failed, err)
		}

		l := newLedger(t, strg)
		l.SetMineable(true)
		for i := 0; i < 3; i++ {
			if _, err := l.Mine(context.Background(), "", []string{"a", "b"}); err != nil {
				t.Fatalf("\t%s\tShould be able to mine: %v", failed, err)
			}
		}

		reloaded := newLedger(t, strg)
		if reloaded.Length() != 3 || reloaded.NumMined() != 0 {
			t.Fatalf("\t%s\tShould load the chain from disk: length %d", failed, reloaded.Length())
		}
		t.Logf("\t%s\tShould load the chain from disk.", success)

		reloaded.SetMineable(true)
		rec, err := reloaded.Mine(context.Background(), "", []string{"c"})
		if err != nil || rec.Block.Index() != 4 {
			t.Fatalf("\t%s\tShould continue the loaded chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould continue the loaded chain.", success)
	}
}

func TestValidateChain(t *testing.T) {
	l := newLedger(t, store.NewMemory())
	l.SetMineable(true)
	for i := 0; i < 3; i++ {
		if _, err := l.Mine(context.Background(), "", []string{"a"}); err != nil {
			t.Fatalf("\t%s\tShould be able to mine: %v", failed, err)
		}
	}

	chain := l.Chain()
	chain[1].MerkleRoot = hashing.Encode(hashing.SumString("forged"))

	if err := ledger.ValidateChain(chain, pow.MaxDifficulty, pow.BitTarget); !errors.Is(err, ledger.ErrInvalidChain) {
		t.Fatalf("\t%s\tShould detect a forged merkle root: %v", failed, err)
	}
	t.Logf("\t%s\tShould detect a forged merkle root.", success)

	chain = l.Chain()
	chain[0], chain[1] = chain[1], chain[0]
	if err := ledger.ValidateChain(chain, pow.MaxDifficulty, pow.BitTarget); !errors.Is(err, ledger.ErrInvalidChain) {
		t.Fatalf("\t%s\tShould detect blocks out of order: %v", failed, err)
	}
	t.Logf("\t%s\tShould detect blocks out of order.", success)
}

func TestValidateChainRule(t *testing.T) {
	t.Log("Given the need to reject records that claim an easier rule than the ledger mines with.")
	{
		l := newLedger(t, store.NewMemory())
		l.SetMineable(true)
		for i := 0; i < 6; i++ {
			if _, err := l.Mine(context.Background(), "", ledger.DefaultTransactions); err != nil {
				t.Fatalf("\t%s\tShould be able to mine: %v", failed, err)
			}
		}

		tt := []struct {
			name   string
			tamper func(rec *ledger.Record)
		}{
			{"difficulty", func(rec *ledger.Record) { rec.Difficulty = 0 }},
			{"target", func(rec *ledger.Record) { rec.Target = pow.ByteTarget.String() }},
			{"both", func(rec *ledger.Record) { rec.Difficulty = 0; rec.Target = pow.ByteTarget.String() }},
		}

		for _, tst := range tt {
			f := func(t *testing.T) {
				chain := l.Chain()
				tst.tamper(&chain[5])

				if err := ledger.ValidateChain(chain, pow.MaxDifficulty, pow.BitTarget); !errors.Is(err, ledger.ErrInvalidChain) {
					t.Fatalf("\t%s\tShould reject a record with a tampered %s: %v", failed, tst.name, err)
				}
				t.Logf("\t%s\tShould reject a record with a tampered %s.", success, tst.name)
			}
			t.Run(tst.name, f)
		}

		if err := ledger.ValidateChain(l.Chain(), pow.MaxDifficulty, pow.ByteTarget); !errors.Is(err, ledger.ErrInvalidChain) {
			t.Fatalf("\t%s\tShould reject a chain mined under another target: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain mined under another target.", success)

		if err := ledger.ValidateChain(l.Chain(), 2, pow.BitTarget); !errors.Is(err, ledger.ErrInvalidChain) {
			t.Fatalf("\t%s\tShould reject a chain mined under another difficulty cap: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain mined under another difficulty cap.", success)
	}
}

func TestDifficulty(t *testing.T) {
	tt := []struct {
		index uint64
		max   uint
		exp   uint
	}{
		{1, 24, 0},
		{2, 24, 1},
		{25, 24, 24},
		{100, 24, 24},
		{300, 0, pow.MaxDifficulty},
		{300, pow.MaxDifficulty + 1, pow.MaxDifficulty},
	}

	for _, tst := range tt {
		if got := ledger.Difficulty(tst.index, tst.max); got != tst.exp {
			t.Fatalf("\t%s\tShould get difficulty %d for block %d capped at %d: got %d", failed, tst.exp, tst.index, tst.max, got)
		}
	}
	t.Logf("\t%s\tShould cap the difficulty at the configured maximum.", success)
}

func TestMineCancelled(t *testing.T) {
	mem := store.NewMemory()
	l, err := ledger.New(ledger.Config{Owner: "miner", Store: mem, MaxAttempts: 1})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a ledger: %v", failed, err)
	}
	l.SetMineable(true)

	// The first block has no difficulty so it is solved by the first nonce.
	if _, err := l.Mine(context.Background(), "", []string{"a"}); err != nil {
		t.Fatalf("\t%s\tShould mine the first block: %v", failed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Mine(ctx, "", []string{"b"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("\t%s\tShould stop mining when cancelled: %v", failed, err)
	}
	t.Logf("\t%s\tShould stop mining when cancelled.", success)
}

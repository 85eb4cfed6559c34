package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/business/sys/store"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type entry struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
}

func newFile(t *testing.T) (*store.File, store.Paths) {
	dir := t.TempDir()
	paths := store.Paths{
		MinePath:   filepath.Join(dir, "logs", "mine.txt"),
		ChainPath:  filepath.Join(dir, "chain.json"),
		HashesPath: filepath.Join(dir, "logs", "hashes.txt"),
	}

	f, err := store.NewFile(paths)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a file store: %v", failed, err)
	}
	return f, paths
}

func readLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to read %s: %v", failed, path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// =============================================================================

func TestFileChain(t *testing.T) {
	t.Log("Given the need to persist the chain document.")
	{
		f, _ := newFile(t)

		var empty []entry
		if err := f.LoadChain(&empty); err != nil || len(empty) != 0 {
			t.Fatalf("\t%s\tShould load an empty chain when nothing was written: %v", failed, err)
		}
		t.Logf("\t%s\tShould load an empty chain when nothing was written.", success)

		chain := []entry{{Index: 1, Hash: "0x01"}, {Index: 2, Hash: "0x02"}}
		if err := f.WriteChain(chain); err != nil {
			t.Fatalf("\t%s\tShould be able to write the chain: %v", failed, err)
		}

		chain = append(chain, entry{Index: 3, Hash: "0x03"})
		if err := f.WriteChain(chain); err != nil {
			t.Fatalf("\t%s\tShould be able to rewrite the chain: %v", failed, err)
		}

		var got []entry
		if err := f.LoadChain(&got); err != nil {
			t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
		}

		if len(got) != 3 || got[2].Hash != "0x03" {
			t.Fatalf("\t%s\tShould load the last written chain: %+v", failed, got)
		}
		t.Logf("\t%s\tShould load the last written chain.", success)
	}
}

func TestFileLogs(t *testing.T) {
	t.Log("Given the need to append the mining and hash logs.")
	{
		f, paths := newFile(t)

		start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		for i := uint64(1); i <= 2; i++ {
			if err := f.AppendMine("0xabc", start, 1500*time.Millisecond); err != nil {
				t.Fatalf("\t%s\tShould be able to append to the mining log: %v", failed, err)
			}
			if err := f.AppendHash(i, "0xabc"); err != nil {
				t.Fatalf("\t%s\tShould be able to append to the hash log: %v", failed, err)
			}
		}

		mines := readLines(t, paths.MinePath)
		exp := "0xabc MINED | start: 2024-01-02T03:04:05Z | elapsed: 1.5s"
		if len(mines) != 2 || mines[0] != exp {
			t.Logf("\t%s\tgot: %q", failed, mines)
			t.Logf("\t%s\texp: %q", failed, exp)
			t.Fatalf("\t%s\tShould append one mining line per block.", failed)
		}
		t.Logf("\t%s\tShould append one mining line per block.", success)

		hashes := readLines(t, paths.HashesPath)
		if len(hashes) != 2 || hashes[1] != "BLOCK 2: 0xabc" {
			t.Fatalf("\t%s\tShould append one hash line per block: %q", failed, hashes)
		}
		t.Logf("\t%s\tShould append one hash line per block.", success)
	}
}

func TestFileRejectsEmptyPath(t *testing.T) {
	if _, err := store.NewFile(store.Paths{MinePath: "a", ChainPath: "b"}); err == nil {
		t.Fatalf("\t%s\tShould reject an empty path.", failed)
	}
	t.Logf("\t%s\tShould reject an empty path.", success)
}

func TestMemory(t *testing.T) {
	m := store.NewMemory()

	if err := m.WriteChain([]entry{{Index: 1, Hash: "0x01"}}); err != nil {
		t.Fatalf("\t%s\tShould be able to write the chain: %v", failed, err)
	}
	m.AppendHash(1, "0x01")

	var got []entry
	if err := m.LoadChain(&got); err != nil || len(got) != 1 {
		t.Fatalf("\t%s\tShould load the written chain: %v %+v", failed, err, got)
	}
	if lines := m.HashLines(); len(lines) != 1 || lines[0] != "BLOCK 1: 0x01" {
		t.Fatalf("\t%s\tShould keep the hash lines: %q", failed, lines)
	}
	t.Logf("\t%s\tShould keep everything in memory.", success)
}

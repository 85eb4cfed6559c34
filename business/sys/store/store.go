// Package store persists the ledger to the three configured paths: the
// mining log, the chain document and the hash log.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Paths represents the locations the store writes to.
type Paths struct {
	MinePath   string
	ChainPath  string
	HashesPath string
}

// File represents the store implementation backed by files on disk.
type File struct {
	paths Paths
	mu    sync.Mutex
}

// NewFile constructs a File store, creating the parent directories of
// every path.
func NewFile(paths Paths) (*File, error) {
	for _, p := range []string{paths.MinePath, paths.ChainPath, paths.HashesPath} {
		if p == "" {
			return nil, errors.New("store path must not be empty")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}
	}

	return &File{paths: paths}, nil
}

// Paths returns the configured locations.
func (f *File) Paths() Paths {
	return f.paths
}

// AppendMine appends a line describing a mined block to the mining log.
func (f *File) AppendMine(hash string, start time.Time, elapsed time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return appendLine(f.paths.MinePath, MineLine(hash, start, elapsed))
}

// AppendHash appends a line holding the block index and hash to the
// hash log.
func (f *File) AppendHash(index uint64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return appendLine(f.paths.HashesPath, HashLine(index, hash))
}

// WriteChain replaces the chain document with the specified chain.
func (f *File) WriteChain(chain any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Marshal the chain for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return err
	}

	// The document is replaced with a rename.
	tmp := f.paths.ChainPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, f.paths.ChainPath)
}

// LoadChain decodes the chain document into the value pointed to by chain.
// A missing or empty document leaves the value untouched.
func (f *File) LoadChain(chain any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return ReadChain(f.paths.ChainPath, chain)
}

// ReadChain decodes the chain document at path into the value pointed to
// by chain. A missing or empty document leaves the value untouched.
func ReadChain(path string, chain any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, chain); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	return nil
}

// =============================================================================

// MineLine formats the mining log entry for a block.
func MineLine(hash string, start time.Time, elapsed time.Duration) string {
	return fmt.Sprintf("%s MINED | start: %s | elapsed: %s", hash, start.UTC().Format(time.RFC3339Nano), elapsed)
}

// HashLine formats the hash log entry for a block.
func HashLine(index uint64, hash string) string {
	return fmt.Sprintf("BLOCK %d: %s", index, hash)
}

// appendLine writes the line and a trailing newline to the end of the file.
func appendLine(path string, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return err
	}

	return nil
}

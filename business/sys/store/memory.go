package store

import (
	"encoding/json"
	"sync"
	"time"
)

// Memory represents a store that keeps everything in memory. It is used
// when no paths are configured and in tests.
type Memory struct {
	mu     sync.Mutex
	mines  []string
	hashes []string
	chain  []byte
}

// NewMemory constructs a Memory store for use.
func NewMemory() *Memory {
	return &Memory{}
}

// AppendMine records a mining log line.
func (m *Memory) AppendMine(hash string, start time.Time, elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mines = append(m.mines, MineLine(hash, start, elapsed))
	return nil
}

// AppendHash records a hash log line.
func (m *Memory) AppendHash(index uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashes = append(m.hashes, HashLine(index, hash))
	return nil
}

// WriteChain keeps the JSON form of the chain.
func (m *Memory) WriteChain(chain any) error {
	data, err := json.Marshal(chain)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chain = data
	return nil
}

// LoadChain decodes the last written chain into the value pointed to by
// chain. Nothing happens if no chain was written.
func (m *Memory) LoadChain(chain any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.chain) == 0 {
		return nil
	}

	return json.Unmarshal(m.chain, chain)
}

// MineLines returns a copy of the mining log.
func (m *Memory) MineLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.mines...)
}

// HashLines returns a copy of the hash log.
func (m *Memory) HashLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.hashes...)
}

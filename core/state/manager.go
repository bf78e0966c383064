package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bazaar/storage"
)

// Manager reads and writes node state on top of a key-value database. Writes
// land in an in-memory overlay; Snapshot/RevertToSnapshot undo them in LIFO
// order and Commit flushes the overlay in a single batch.
type Manager struct {
	db      storage.Database
	dirty   map[string]pendingValue
	journal []journalEntry
}

type pendingValue struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    pendingValue
	hadPrev bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]pendingValue)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if pending, ok := m.dirty[string(key)]; ok {
		if pending.deleted {
			return nil, nil
		}
		return append([]byte(nil), pending.value...), nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) record(key []byte, next pendingValue) {
	k := string(key)
	prev, had := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, hadPrev: had})
	m.dirty[k] = next
}

func (m *Manager) put(key, value []byte) {
	m.record(key, pendingValue{value: append([]byte(nil), value...)})
}

func (m *Manager) del(key []byte) {
	m.record(key, pendingValue{deleted: true})
}

// Snapshot returns an identifier for the current overlay revision.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot discards every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Pending reports the number of keys that differ from the database.
func (m *Manager) Pending() int { return len(m.dirty) }

// Commit writes the overlay to the database atomically and clears it.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = nil
		return nil
	}
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, k := range keys {
		pending := m.dirty[k]
		if pending.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), pending.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]pendingValue)
	m.journal = nil
	return nil
}

// Rollback drops every uncommitted write.
func (m *Manager) Rollback() {
	m.dirty = make(map[string]pendingValue)
	m.journal = nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.del(kvKey(key))
	return nil
}

func (m *Manager) loadUint64(key []byte) (uint64, error) {
	var v uint64
	if _, err := m.KVGet(key, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// nextSequence returns the current counter value and advances it.
func (m *Manager) nextSequence(key []byte) (uint64, error) {
	current, err := m.loadUint64(key)
	if err != nil {
		return 0, err
	}
	if current == ^uint64(0) {
		return 0, fmt.Errorf("state: sequence %s exhausted", key)
	}
	if err := m.KVPut(key, current+1); err != nil {
		return 0, err
	}
	return current, nil
}

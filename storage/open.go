package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open selects a backend by name and opens it under dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLevelDB:
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
		return NewBoltDB(filepath.Join(dataDir, "state.bolt"))
	case BackendMemory:
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}

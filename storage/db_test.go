package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	require.Equal(t, 2, batch.Len())

	// Nothing is visible before Write.
	has, err := db.Has([]byte("b"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, batch.Write())
	has, err = db.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, has)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	require.NoError(t, db.Delete([]byte("b")))
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "state.bolt"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	batch := db1.NewBatch()
	batch.Put([]byte("key"), []byte("value"))
	require.NoError(t, batch.Write())
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open("rocksdb", t.TempDir()); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
	db, err := Open(BackendMemory, "")
	require.NoError(t, err)
	db.Close()
}

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bazaar/core/types"
	"bazaar/indexer"
)

func TestOutputPathDefaultsToExportDir(t *testing.T) {
	opts := exportOptions{Dir: "/var/export", Now: func() time.Time { return time.Unix(1_700_000_000, 0) }}
	require.Equal(t, "/var/export/events-1700000000.parquet", opts.outputPath())
	opts.Out = "custom.parquet"
	require.Equal(t, "custom.parquet", opts.outputPath())
}

func TestExportRequiresDSN(t *testing.T) {
	err := export(context.Background(), exportOptions{Now: time.Now}, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorContains(t, err, "DSN required")
}

func TestExportWritesArchivedEvents(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "archive.db")

	store, err := indexer.Open(dsn)
	require.NoError(t, err)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, store.Record(context.Background(), types.EventRecord{
			Sequence:   seq,
			Timestamp:  1_700_000_000,
			Type:       "marketplace.offer.finalized",
			Attributes: map[string]string{"listingId": "0"},
		}))
	}
	require.NoError(t, store.Close())

	out := filepath.Join(dir, "out", "events.parquet")
	var stdout bytes.Buffer
	err = export(context.Background(), exportOptions{DSN: dsn, Out: out, Since: 1, Now: time.Now}, &stdout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Equal(t, "2 events written to "+out+"\n", stdout.String())

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("  ", "b", "c"))
	require.Equal(t, "", firstNonEmpty())
}

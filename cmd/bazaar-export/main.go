package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bazaar/config"
	"bazaar/indexer"
	"bazaar/observability/logging"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	dsn := flag.String("dsn", "", "Indexer DSN (defaults to [Indexer] DSN)")
	out := flag.String("out", "", "Parquet output file (defaults to ExportDir/events-<unix>.parquet)")
	since := flag.Uint64("since", 0, "Export events with a sequence above this value")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("bazaar-export", cfg.Environment, logging.WithLevel(cfg.Log.Level))

	opts := exportOptions{
		DSN:   firstNonEmpty(*dsn, cfg.Indexer.DSN),
		Out:   *out,
		Dir:   cfg.Indexer.ExportDir,
		Since: *since,
		Now:   time.Now,
	}
	if err := export(context.Background(), opts, os.Stdout, logger); err != nil {
		logger.Error("export failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type exportOptions struct {
	DSN   string
	Out   string
	Dir   string
	Since uint64
	Now   func() time.Time
}

func (o exportOptions) outputPath() string {
	if strings.TrimSpace(o.Out) != "" {
		return o.Out
	}
	dir := strings.TrimSpace(o.Dir)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("events-%d.parquet", o.Now().Unix()))
}

func export(ctx context.Context, opts exportOptions, stdout io.Writer, logger *slog.Logger) error {
	if strings.TrimSpace(opts.DSN) == "" {
		return fmt.Errorf("indexer DSN required; pass -dsn or set [Indexer] DSN")
	}
	store, err := indexer.Open(opts.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	path := opts.outputPath()
	rows, err := store.ExportParquet(ctx, path, opts.Since)
	if err != nil {
		return err
	}
	logger.Info("events exported", slog.String("path", path), slog.Int("rows", rows), slog.Uint64("since", opts.Since))
	fmt.Fprintf(stdout, "%d events written to %s\n", rows, path)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bazaar/config"
	"bazaar/core"
	"bazaar/core/events"
	"bazaar/core/genesis"
	"bazaar/indexer"
	"bazaar/native/common"
	"bazaar/native/marketplace"
	"bazaar/observability/logging"
	telemetry "bazaar/observability/otel"
	"bazaar/rpc"
	"bazaar/storage"
)

const genesisPathEnv = "BAZAAR_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis document (overrides BAZAAR_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.Validate(cfg); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	logger := logging.Setup("bazaard", cfg.Environment,
		logging.WithLevel(cfg.Log.Level),
		logging.WithFile(logging.FileSink{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}),
	)
	logger.Info("configuration loaded", logging.MaskSecrets(map[string]string{
		"config":    *configFile,
		"storage":   cfg.Storage.Backend,
		"listen":    cfg.ListenAddress,
		"policy":    cfg.Marketplace.CommissionPolicy,
		"indexer":   cfg.Indexer.DSN,
		"authToken": cfg.RPC.AuthToken,
		"jwtSecret": cfg.RPC.JWTSecret,
	})...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv), logger); err != nil {
		logger.Error("bazaard exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// resolveGenesisPath prefers the flag, then the environment, then the config.
func resolveGenesisPath(flagValue, cfgValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(cfgValue)
}

func run(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "bazaard",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,

		ExportInterval: time.Duration(cfg.Telemetry.ExportIntervalSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts, err := nodeOptions(cfg, logger)
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, opts)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if err := loadGenesis(node, genesisPath, logger); err != nil {
		return err
	}

	hub := rpc.NewHub()
	serverOpts := []rpc.Option{rpc.WithHub(hub), rpc.WithLogger(logger)}
	sinks := events.Multi{hub}
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		store, err := indexer.Open(dsn)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer store.Close()
		sinks = append(events.Multi{store}, sinks...)
		serverOpts = append(serverOpts, rpc.WithIdempotencyStore(store))
	}
	node.SetEventSink(sinks)

	server := rpc.NewServer(node, rpcConfig(cfg.RPC), serverOpts...)
	return server.Serve(ctx, cfg.ListenAddress)
}

func nodeOptions(cfg *config.Config, logger *slog.Logger) (core.Options, error) {
	policy, err := marketplace.ParseCommissionPolicy(cfg.Marketplace.CommissionPolicy)
	if err != nil {
		return core.Options{}, err
	}
	treasury, err := cfg.Marketplace.TreasuryAddress()
	if err != nil {
		return core.Options{}, fmt.Errorf("marketplace treasury: %w", err)
	}
	deposit, err := cfg.Marketplace.Deposit()
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		CommissionPolicy:   policy,
		Treasury:           treasury,
		ArbitrationFeeBps:  cfg.Marketplace.ArbitrationFeeBps,
		DepositToken:       cfg.Marketplace.DepositToken,
		ListingDeposit:     deposit,
		MaxWithdrawTimeout: cfg.Marketplace.MaxWithdrawTimeoutSecs,
		Pauses:             common.StaticPauses(cfg.Pauses.PauseSet()),
		Logger:             logger,
	}, nil
}

func rpcConfig(c config.RPC) rpc.Config {
	return rpc.Config{
		AuthToken:         c.AuthToken,
		JWTSecret:         c.JWTSecret,
		JWTIssuer:         c.JWTIssuer,
		RequestsPerMinute: float64(c.RequestsPerMinute),
		Burst:             c.Burst,
		AllowedOrigins:    c.AllowedOrigins,
		ReadTimeout:       time.Duration(c.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(c.WriteTimeoutSecs) * time.Second,
	}
}

// loadGenesis applies the genesis document once. Restarting over an
// initialised data directory keeps the stored state.
func loadGenesis(node *core.Node, path string, logger *slog.Logger) error {
	if path == "" {
		applied, err := genesis.Applied(node.StateManager())
		if err != nil {
			return err
		}
		if !applied {
			logger.Warn("starting without genesis; state is empty")
		}
		return nil
	}
	spec, err := genesis.Load(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	res, err := genesis.Apply(spec, node.StateManager())
	if errors.Is(err, genesis.ErrAlreadyApplied) {
		logger.Info("genesis already applied", slog.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied",
		slog.String("path", path),
		slog.Int("arbitrators", len(res.Arbitrators)),
		slog.Int("users", len(res.Users)))
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	EnvRPCToken    = "BAZAAR_RPC_TOKEN"
	EnvJWTSecret   = "BAZAAR_JWT_SECRET"
	EnvEnvironment = "BAZAAR_ENV"
)

type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	GenesisFile   string      `toml:"GenesisFile"`
	Environment   string      `toml:"Environment"`
	Storage       Storage     `toml:"Storage"`
	Log           Log         `toml:"Log"`
	RPC           RPC         `toml:"RPC"`
	Marketplace   Marketplace `toml:"Marketplace"`
	Pauses        Pauses      `toml:"Pauses"`
	Indexer       Indexer     `toml:"Indexer"`
	Telemetry     Telemetry   `toml:"Telemetry"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress: ":8545",
		DataDir:       "./bazaar-data",
		Environment:   "local",
		Storage:       Storage{Backend: "leveldb"},
		Log:           Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		RPC: RPC{
			RequestsPerMinute: 600,
			Burst:             60,
			ReadTimeoutSecs:   10,
			WriteTimeoutSecs:  15,
		},
		Marketplace: Marketplace{
			CommissionPolicy:       "seller",
			MaxWithdrawTimeoutSecs: 30 * 24 * 60 * 60,
		},
		Indexer:   Indexer{ExportDir: "./bazaar-data/export"},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Secret overrides from the environment are applied last.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		cfg = created
	} else {
		cfg = Default()
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
		}
	}
	applyEnv(cfg)
	if strings.TrimSpace(cfg.Storage.Backend) == "" {
		cfg.Storage.Backend = "leveldb"
	}
	if cfg.RPC.AllowedOrigins == nil {
		cfg.RPC.AllowedOrigins = []string{}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvRPCToken)); v != "" {
		cfg.RPC.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.RPC.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		cfg.Environment = v
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

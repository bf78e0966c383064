package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bazaar/config"
	"bazaar/core"
	"bazaar/core/genesis"
	"bazaar/crypto"
	"bazaar/native/marketplace"
	"bazaar/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveGenesisPathPrecedence(t *testing.T) {
	env := func(v string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			if key == genesisPathEnv && v != "" {
				return v, true
			}
			return "", false
		}
	}
	require.Equal(t, "flag.yaml", resolveGenesisPath(" flag.yaml ", "cfg.yaml", env("env.yaml")))
	require.Equal(t, "env.yaml", resolveGenesisPath("", "cfg.yaml", env("env.yaml")))
	require.Equal(t, "cfg.yaml", resolveGenesisPath("", "cfg.yaml", env("")))
	require.Equal(t, "", resolveGenesisPath("", "", nil))
}

func TestNodeOptionsFromConfig(t *testing.T) {
	treasury := crypto.Address([20]byte{0x7e})
	cfg := config.Default()
	cfg.Marketplace.CommissionPolicy = "treasury"
	cfg.Marketplace.Treasury = treasury.String()
	cfg.Marketplace.ArbitrationFeeBps = 250
	cfg.Marketplace.ListingDeposit = "5"
	cfg.Marketplace.DepositToken = "OGN"
	cfg.Pauses.Vesting = true

	opts, err := nodeOptions(cfg, discardLogger())
	require.NoError(t, err)
	require.Equal(t, marketplace.PolicyTreasury, opts.CommissionPolicy)
	require.Equal(t, [20]byte(treasury), opts.Treasury)
	require.Equal(t, uint32(250), opts.ArbitrationFeeBps)
	require.Equal(t, int64(5), opts.ListingDeposit.Int64())
	require.True(t, opts.Pauses.IsPaused("vesting"))
	require.False(t, opts.Pauses.IsPaused("marketplace"))

	cfg.Marketplace.CommissionPolicy = "lottery"
	if _, err := nodeOptions(cfg, discardLogger()); err == nil {
		t.Fatalf("expected unknown commission policy to fail")
	}
}

func TestRPCConfigConvertsUnits(t *testing.T) {
	rc := rpcConfig(config.RPC{RequestsPerMinute: 120, Burst: 4, ReadTimeoutSecs: 3, WriteTimeoutSecs: 7})
	require.Equal(t, float64(120), rc.RequestsPerMinute)
	require.Equal(t, 4, rc.Burst)
	require.Equal(t, 3*time.Second, rc.ReadTimeout)
	require.Equal(t, 7*time.Second, rc.WriteTimeout)
}

func writeGenesis(t *testing.T, alice [20]byte) string {
	t.Helper()
	doc := `genesisTime: "2024-01-01T00:00:00Z"
alloc:
  ` + crypto.Address(alice).String() + `:
    native: "1000"
`
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoadGenesisAppliesOnce(t *testing.T) {
	alice := [20]byte{0x01}
	path := writeGenesis(t, alice)
	db := storage.NewMemDB()

	node, err := core.NewNode(db, core.Options{})
	require.NoError(t, err)
	require.NoError(t, loadGenesis(node, path, discardLogger()))
	require.NoError(t, loadGenesis(node, path, discardLogger()), "second start keeps state")

	acc, err := node.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, int64(1000), acc.Balance.Int64())

	applied, err := genesis.Applied(node.StateManager())
	require.NoError(t, err)
	require.True(t, applied)
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = storage.BackendMemory
	cfg.ListenAddress = freePort(t)
	cfg.Indexer.DSN = "file:bazaard-run?mode=memory&cache=shared"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, "", discardLogger()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.ListenAddress + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

package genesis

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/state"
	"bazaar/crypto"
	"bazaar/native/arbitrator"
	"bazaar/native/identity"
	"bazaar/storage"
)

var (
	alice = [20]byte{0x01}
	bob   = [20]byte{0x02}
	mint  = [20]byte{0xaa}
)

func bech(a [20]byte) string { return crypto.Address(a).String() }

func testDoc() []byte {
	return []byte(`genesisTime: "2024-01-01T00:00:00Z"
tokens:
  - symbol: ogn
    name: Origin Token
    decimals: 18
    mintAuthority: ` + bech(mint) + `
alloc:
  ` + bech(alice) + `:
    native: "1000"
    OGN: "500"
  ` + bech(bob) + `:
    native: "10"
arbitrators:
  - owner: ` + bech(bob) + `
    count: 2
users:
  - ` + bech(alice) + `
`)
}

func TestApplyGenesis(t *testing.T) {
	spec, err := Parse(testDoc())
	require.NoError(t, err)

	db := storage.NewMemDB()
	mgr := state.NewManager(db)
	res, err := Apply(spec, mgr)
	require.NoError(t, err)
	require.Zero(t, mgr.Pending(), "genesis is committed")

	acc, err := mgr.GetAccount(alice[:])
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), acc.Balance)

	bal, err := mgr.TokenBalance(alice[:], "OGN")
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())

	require.Len(t, res.Arbitrators, 2)
	require.Equal(t, arbitrator.ContractAddress(bob, 0), res.Arbitrators[0].Address)
	require.Equal(t, spec.GenesisTimestamp().Unix(), res.Arbitrators[0].CreatedAt)

	require.Len(t, res.Users, 1)
	require.Equal(t, identity.ProxyAddress(alice), res.Users[0].Proxy)

	// A fresh manager over the same database sees the committed state.
	again := state.NewManager(db)
	acc, err = again.GetAccount(bob[:])
	require.NoError(t, err)
	require.Equal(t, int64(10), acc.Balance.Int64())

	applied, err := Applied(again)
	require.NoError(t, err)
	require.True(t, applied)
	_, err = Apply(spec, again)
	require.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "chainId: 7\n",
		"unknown token":  "alloc:\n  " + bech(alice) + ":\n    DAI: \"1\"\n",
		"bad address":    "users:\n  - nhb1qqqq\n",
		"negative alloc": "alloc:\n  " + bech(alice) + ":\n    native: \"-1\"\n",
		"bad time":       "genesisTime: yesterday\n",
		"reserved token": "tokens:\n  - symbol: native\n    name: x\n    mintAuthority: " + bech(mint) + "\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

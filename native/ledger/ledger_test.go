package ledger_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/state"
	"bazaar/core/types"
	"bazaar/native/ledger"
	"bazaar/native/token"
	"bazaar/storage"
)

var (
	vault     = [20]byte{0xee}
	payer     = [20]byte{0x01}
	payee     = [20]byte{0x02}
	authority = [20]byte{0xaa}
)

func setup(t *testing.T) (*state.Manager, *token.Ledger, *ledger.Adapter) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	require.NoError(t, mgr.RegisterToken("OGN", "Origin Token", 18, authority))
	require.NoError(t, mgr.PutAccount(payer[:], &types.Account{Balance: big.NewInt(50)}))
	tokens := token.NewLedger()
	tokens.SetState(mgr)
	require.NoError(t, tokens.Mint("OGN", authority, payer, big.NewInt(50)))
	return mgr, tokens, ledger.NewAdapter(mgr, tokens, vault)
}

func TestParseKind(t *testing.T) {
	kind, err := ledger.ParseKind("Token")
	require.NoError(t, err)
	require.Equal(t, ledger.KindToken, kind)

	kind, err = ledger.ParseKind("")
	require.NoError(t, err)
	require.Equal(t, ledger.KindNative, kind)

	_, err = ledger.ParseKind("lightning")
	require.ErrorIs(t, err, ledger.ErrUnknownRail)
}

func TestAdapterRejectsUnknownRails(t *testing.T) {
	_, _, adapter := setup(t)
	_, err := adapter.Rail(ledger.Funding{Kind: ledger.Kind(9)})
	require.ErrorIs(t, err, ledger.ErrUnknownRail)
	_, err = adapter.Rail(ledger.Funding{Kind: ledger.KindToken})
	require.ErrorIs(t, err, ledger.ErrUnknownRail)
}

func TestNativeRail(t *testing.T) {
	_, _, adapter := setup(t)
	rail, err := adapter.Rail(ledger.Funding{Kind: ledger.KindNative})
	require.NoError(t, err)

	err = rail.Collect(payer, big.NewInt(20), big.NewInt(19))
	require.ErrorIs(t, err, ledger.ErrUnderFunded)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)

	err = rail.Collect(payer, big.NewInt(60), big.NewInt(60))
	require.ErrorIs(t, err, ledger.ErrUnderFunded)

	require.NoError(t, rail.Collect(payer, big.NewInt(20), big.NewInt(20)))
	require.NoError(t, rail.Pay(payee, big.NewInt(15)))

	for who, want := range map[[20]byte]int64{payer: 30, payee: 15, vault: 5} {
		bal, err := rail.Balance(who)
		require.NoError(t, err)
		require.Equal(t, want, bal.Int64())
	}

	err = rail.Pay(payee, big.NewInt(6))
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
}

func TestTokenRail(t *testing.T) {
	_, tokens, adapter := setup(t)
	rail, err := adapter.Rail(ledger.Funding{Kind: ledger.KindToken, Token: "ogn"})
	require.NoError(t, err)

	err = rail.Collect(payer, big.NewInt(20), nil)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)

	err = rail.Collect(payer, big.NewInt(20), big.NewInt(1))
	require.ErrorIs(t, err, ledger.ErrTransferFailed, "native value cannot ride along token funding")

	require.NoError(t, tokens.Approve("OGN", payer, adapter.Vault(), big.NewInt(100)))
	err = rail.Collect(payer, big.NewInt(60), nil)
	require.ErrorIs(t, err, ledger.ErrUnderFunded)

	require.NoError(t, rail.Collect(payer, big.NewInt(20), nil))
	require.NoError(t, rail.Pay(payee, big.NewInt(20)))
	bal, err := rail.Balance(payee)
	require.NoError(t, err)
	require.Equal(t, int64(20), bal.Int64())

	err = rail.Pay(payee, big.NewInt(1))
	require.ErrorIs(t, err, ledger.ErrUnderFunded)
}

package token_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/events"
	"bazaar/core/state"
	"bazaar/native/token"
	"bazaar/storage"
)

var (
	authority = [20]byte{0xaa}
	alice     = [20]byte{0x01}
	bob       = [20]byte{0x02}
	carol     = [20]byte{0x03}
)

func newLedger(t *testing.T) (*token.Ledger, *events.Buffer) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	require.NoError(t, mgr.RegisterToken("ogn", "Origin Token", 18, authority))
	buf := events.NewBuffer()
	l := token.NewLedger()
	l.SetState(mgr)
	l.SetEmitter(buf)
	return l, buf
}

func balance(t *testing.T, l *token.Ledger, who [20]byte) int64 {
	t.Helper()
	bal, err := l.BalanceOf("OGN", who)
	require.NoError(t, err)
	return bal.Int64()
}

func TestMintRequiresAuthority(t *testing.T) {
	l, buf := newLedger(t)

	err := l.Mint("OGN", alice, alice, big.NewInt(10))
	require.ErrorIs(t, err, token.ErrMintUnauthorized)

	require.NoError(t, l.Mint(" ogn ", authority, alice, big.NewInt(10)))
	require.Equal(t, int64(10), balance(t, l, alice))
	require.Equal(t, 1, buf.Len())
	require.Equal(t, token.EventTypeTransfer, buf.Events()[0].Type)
}

func TestUnknownToken(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.BalanceOf("DAI", alice)
	require.ErrorIs(t, err, token.ErrUnknownToken)
	err = l.Transfer("", alice, bob, big.NewInt(1))
	require.ErrorIs(t, err, token.ErrUnknownToken)
}

func TestTransfer(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Mint("OGN", authority, alice, big.NewInt(10)))

	require.NoError(t, l.Transfer("OGN", alice, bob, big.NewInt(4)))
	require.Equal(t, int64(6), balance(t, l, alice))
	require.Equal(t, int64(4), balance(t, l, bob))

	err := l.Transfer("OGN", alice, bob, big.NewInt(7))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, int64(6), balance(t, l, alice))

	err = l.Transfer("OGN", alice, bob, big.NewInt(-1))
	require.ErrorIs(t, err, token.ErrInvalidAmount)

	require.NoError(t, l.Transfer("OGN", alice, alice, big.NewInt(6)))
	require.Equal(t, int64(6), balance(t, l, alice))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, l.Mint("OGN", authority, alice, big.NewInt(100)))

	err := l.TransferFrom("OGN", bob, alice, carol, big.NewInt(1))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.NoError(t, l.Approve("OGN", alice, bob, big.NewInt(30)))
	require.NoError(t, l.TransferFrom("OGN", bob, alice, carol, big.NewInt(20)))
	require.Equal(t, int64(80), balance(t, l, alice))
	require.Equal(t, int64(20), balance(t, l, carol))

	left, err := l.Allowance("OGN", alice, bob)
	require.NoError(t, err)
	require.Equal(t, int64(10), left.Int64())

	err = l.TransferFrom("OGN", bob, alice, carol, big.NewInt(11))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	// Approve replaces rather than adds.
	require.NoError(t, l.Approve("OGN", alice, bob, big.NewInt(5)))
	left, err = l.Allowance("OGN", alice, bob)
	require.NoError(t, err)
	require.Equal(t, int64(5), left.Int64())
}

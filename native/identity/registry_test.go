package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/events"
	"bazaar/core/state"
	"bazaar/native/identity"
	"bazaar/storage"
)

func TestRegisterUser(t *testing.T) {
	reg := identity.NewRegistry()
	reg.SetState(state.NewManager(storage.NewMemDB()))
	buf := events.NewBuffer()
	reg.SetEmitter(buf)
	reg.SetNowFunc(func() int64 { return 42 })

	alice := [20]byte{0x01}
	_, err := reg.IdentityOf(alice)
	require.ErrorIs(t, err, identity.ErrNotRegistered)

	id, err := reg.RegisterUser(alice)
	require.NoError(t, err)
	require.Equal(t, identity.ProxyAddress(alice), id.Proxy)
	require.NotEqual(t, alice, id.Proxy)
	require.Equal(t, int64(42), id.RegisteredAt)
	require.Equal(t, 1, buf.Len())
	require.Equal(t, identity.EventTypeUserRegistered, buf.Events()[0].Type)

	_, err = reg.RegisterUser(alice)
	require.ErrorIs(t, err, identity.ErrAlreadyRegistered)

	got, err := reg.IdentityOf(alice)
	require.NoError(t, err)
	require.Equal(t, *id, *got)

	account, err := reg.AccountOf(id.Proxy)
	require.NoError(t, err)
	require.Equal(t, alice, account)

	proxy, err := reg.ProxyFor(alice)
	require.NoError(t, err)
	require.Equal(t, id.Proxy, proxy)
}

func TestProxyAddressIsDeterministic(t *testing.T) {
	a := identity.ProxyAddress([20]byte{0x01})
	if a != identity.ProxyAddress([20]byte{0x01}) {
		t.Fatalf("proxy derivation not deterministic")
	}
	if a == identity.ProxyAddress([20]byte{0x02}) {
		t.Fatalf("distinct accounts share a proxy")
	}
}

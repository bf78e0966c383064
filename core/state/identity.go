package state

import (
	"fmt"

	"bazaar/native/identity"
)

type storedIdentity struct {
	Account      [20]byte
	Proxy        [20]byte
	RegisteredAt uint64
}

// IdentityPut stores the identity and indexes it by proxy address.
func (m *Manager) IdentityPut(id *identity.Identity) error {
	if id == nil {
		return fmt.Errorf("identity: nil record")
	}
	record := &storedIdentity{Account: id.Account, Proxy: id.Proxy, RegisteredAt: uint64(id.RegisteredAt)}
	if err := m.KVPut(IdentityKey(id.Account[:]), record); err != nil {
		return err
	}
	return m.KVPut(IdentityProxyKey(id.Proxy[:]), id.Account)
}

func (m *Manager) IdentityGet(account [20]byte) (*identity.Identity, bool, error) {
	var record storedIdentity
	ok, err := m.KVGet(IdentityKey(account[:]), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &identity.Identity{Account: record.Account, Proxy: record.Proxy, RegisteredAt: int64(record.RegisteredAt)}, true, nil
}

// IdentityAccountByProxy resolves a proxy address back to its account.
func (m *Manager) IdentityAccountByProxy(proxy [20]byte) ([20]byte, bool, error) {
	var account [20]byte
	ok, err := m.KVGet(IdentityProxyKey(proxy[:]), &account)
	return account, ok, err
}

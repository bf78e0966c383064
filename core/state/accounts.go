package state

import (
	"fmt"
	"math/big"

	"bazaar/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount returns the account stored under addr. Unknown addresses yield a
// zero-balance account.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	var stored storedAccount
	ok, err := m.KVGet(AccountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	acc := account.Clone()
	if acc.Balance.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	return m.KVPut(AccountKey(addr), &storedAccount{Nonce: acc.Nonce, Balance: acc.Balance})
}

// IncrementNonce bumps the account nonce after a committed call.
func (m *Manager) IncrementNonce(addr []byte) (uint64, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	acc.Nonce++
	if err := m.PutAccount(addr, acc); err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

package types

import "math/big"

// Account holds the native balance and bookkeeping counters for an address.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy with a non-nil balance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	out := *a
	if a.Balance != nil {
		out.Balance = new(big.Int).Set(a.Balance)
	} else {
		out.Balance = big.NewInt(0)
	}
	return &out
}

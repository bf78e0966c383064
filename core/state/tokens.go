package state

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

type TokenMetadata struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority [20]byte
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8, mintAuthority [20]byte) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if m.TokenExists(normalized) {
		return fmt.Errorf("token %s already registered", normalized)
	}
	list, err := m.TokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.KVPut(TokenListKey(), list); err != nil {
		return err
	}
	meta := &TokenMetadata{
		Symbol:        normalized,
		Name:          strings.TrimSpace(name),
		Decimals:      decimals,
		MintAuthority: mintAuthority,
	}
	return m.KVPut(TokenMetadataKey(normalized), meta)
}

// Token retrieves metadata for a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.KVGet(TokenMetadataKey(normalizeSymbol(symbol)), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	var list []string
	ok, err := m.KVGet(TokenListKey(), &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return list, nil
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return false
	}
	ok, err := m.KVGet(TokenMetadataKey(normalized), nil)
	return err == nil && ok
}

func (m *Manager) TokenMintAuthority(symbol string) ([20]byte, error) {
	meta, err := m.Token(symbol)
	if err != nil {
		return [20]byte{}, err
	}
	if meta == nil {
		return [20]byte{}, fmt.Errorf("token %s not registered", normalizeSymbol(symbol))
	}
	return meta.MintAuthority, nil
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount not allowed")
	}
	return m.KVPut(key, amount)
}

// TokenBalance retrieves a token balance for the provided account and token.
func (m *Manager) TokenBalance(addr []byte, symbol string) (*big.Int, error) {
	return m.loadAmount(TokenBalanceKey(normalizeSymbol(symbol), addr))
}

// SetTokenBalance stores an account balance for the provided token.
func (m *Manager) SetTokenBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return fmt.Errorf("token %s not registered", normalized)
	}
	return m.storeAmount(TokenBalanceKey(normalized, addr), amount)
}

func (m *Manager) TokenAllowance(symbol string, owner, spender []byte) (*big.Int, error) {
	return m.loadAmount(TokenAllowanceKey(normalizeSymbol(symbol), owner, spender))
}

func (m *Manager) SetTokenAllowance(symbol string, owner, spender []byte, amount *big.Int) error {
	if len(owner) == 0 || len(spender) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	return m.storeAmount(TokenAllowanceKey(normalizeSymbol(symbol), owner, spender), amount)
}

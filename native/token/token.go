package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bazaar/core/events"
	"bazaar/core/types"
)

var (
	ErrUnknownToken          = errors.New("token: unknown token")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrMintUnauthorized      = errors.New("token: caller is not the mint authority")
	errNilState              = errors.New("token ledger: state not configured")
)

type ledgerState interface {
	TokenExists(symbol string) bool
	TokenMintAuthority(symbol string) ([20]byte, error)
	TokenBalance(addr []byte, symbol string) (*big.Int, error)
	SetTokenBalance(addr []byte, symbol string, amount *big.Int) error
	TokenAllowance(symbol string, owner, spender []byte) (*big.Int, error)
	SetTokenAllowance(symbol string, owner, spender []byte, amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Ledger is the trusted fungible-token contract. Balances and allowances are
// kept per registered symbol.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event sink. Passing nil restores the no-op emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: evt})
}

// Normalize returns the canonical symbol form.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (l *Ledger) checkToken(symbol string) (string, error) {
	if l == nil || l.state == nil {
		return "", errNilState
	}
	normalized := Normalize(symbol)
	if normalized == "" || !l.state.TokenExists(normalized) {
		return "", fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
	}
	return normalized, nil
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// BalanceOf returns the token balance held by addr.
func (l *Ledger) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.TokenBalance(addr[:], normalized)
}

// Allowance returns how much spender may still pull from owner.
func (l *Ledger) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.TokenAllowance(normalized, owner[:], spender[:])
}

// Approve sets the allowance granted by owner to spender, replacing any
// previous value.
func (l *Ledger) Approve(symbol string, owner, spender [20]byte, amount *big.Int) error {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenAllowance(normalized, owner[:], spender[:], amt); err != nil {
		return err
	}
	l.emit(NewApprovalEvent(normalized, owner, spender, amt))
	return nil
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	return l.move(normalized, from, to, amt)
}

// TransferFrom moves amount out of owner's balance on behalf of spender,
// consuming the allowance owner granted to spender.
func (l *Ledger) TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	allowance, err := l.state.TokenAllowance(normalized, owner[:], spender[:])
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientAllowance, allowance, amt)
	}
	if err := l.move(normalized, owner, to, amt); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(allowance, amt)
	return l.state.SetTokenAllowance(normalized, owner[:], spender[:], remaining)
}

// Mint credits freshly issued tokens to addr. Only the token's mint authority
// may mint; genesis loading passes the authority itself.
func (l *Ledger) Mint(symbol string, authority, to [20]byte, amount *big.Int) error {
	normalized, err := l.checkToken(symbol)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	expected, err := l.state.TokenMintAuthority(normalized)
	if err != nil {
		return err
	}
	if expected != authority {
		return ErrMintUnauthorized
	}
	balance, err := l.state.TokenBalance(to[:], normalized)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to[:], normalized, new(big.Int).Add(balance, amt)); err != nil {
		return err
	}
	l.emit(NewTransferEvent(normalized, [20]byte{}, to, amt))
	return nil
}

func (l *Ledger) move(symbol string, from, to [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := l.state.TokenBalance(from[:], symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, fromBal, amount)
	}
	if from == to {
		l.emit(NewTransferEvent(symbol, from, to, amount))
		return nil
	}
	toBal, err := l.state.TokenBalance(to[:], symbol)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(from[:], symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to[:], symbol, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	l.emit(NewTransferEvent(symbol, from, to, amount))
	return nil
}

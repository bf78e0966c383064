package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bazaar/core/types"
	"bazaar/native/token"
)

var (
	// ErrTransferFailed wraps every failure to move value through a rail.
	ErrTransferFailed = errors.New("ledger: transfer failed")
	// ErrUnderFunded reports that attached or held value is below the amount.
	ErrUnderFunded = errors.New("ledger: under funded")
	// ErrInsufficientAllowance reports that the vault was not approved for
	// the amount it tried to pull.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrUnknownRail           = errors.New("ledger: unknown funding rail")

	errNilAccounts = errors.New("ledger: account state not configured")
	errNilTokens   = errors.New("ledger: token ledger not configured")
)

// Kind tags which rail funds an offer.
type Kind uint8

const (
	KindNative Kind = iota
	KindToken
)

func (k Kind) Valid() bool {
	return k == KindNative || k == KindToken
}

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindToken:
		return "token"
	default:
		return "unknown"
	}
}

// ParseKind accepts "native" or "token".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return KindNative, nil
	case "token":
		return KindToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRail, s)
	}
}

// Funding identifies the rail and, for token funding, the token symbol.
type Funding struct {
	Kind  Kind
	Token string
}

func (f Funding) String() string {
	if f.Kind == KindToken {
		return "token:" + f.Token
	}
	return f.Kind.String()
}

// Rail moves value between participants and the module vault.
type Rail interface {
	// Collect captures amount from the payer into the vault. attached is the
	// native value sent alongside the call.
	Collect(from [20]byte, amount, attached *big.Int) error
	// Pay releases amount from the vault to the recipient.
	Pay(to [20]byte, amount *big.Int) error
	// Balance reports what addr holds on this rail.
	Balance(addr [20]byte) (*big.Int, error)
}

type accountState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type tokenLedger interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
}

// Adapter hands out rails bound to a single vault address. Engines only ever
// talk to the Rail it returns.
type Adapter struct {
	accounts accountState
	tokens   tokenLedger
	vault    [20]byte
}

func NewAdapter(accounts accountState, tokens tokenLedger, vault [20]byte) *Adapter {
	return &Adapter{accounts: accounts, tokens: tokens, vault: vault}
}

// Vault returns the custody address used by the adapter.
func (a *Adapter) Vault() [20]byte { return a.vault }

// Rail selects the rail variant for f.
func (a *Adapter) Rail(f Funding) (Rail, error) {
	switch f.Kind {
	case KindNative:
		if a.accounts == nil {
			return nil, errNilAccounts
		}
		return &nativeRail{accounts: a.accounts, vault: a.vault}, nil
	case KindToken:
		if a.tokens == nil {
			return nil, errNilTokens
		}
		symbol := token.Normalize(f.Token)
		if symbol == "" {
			return nil, fmt.Errorf("%w: token rail requires a symbol", ErrUnknownRail)
		}
		return &tokenRail{tokens: a.tokens, symbol: symbol, vault: a.vault}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRail, f.Kind)
	}
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

type nativeRail struct {
	accounts accountState
	vault    [20]byte
}

func (r *nativeRail) Collect(from [20]byte, amount, attached *big.Int) error {
	amt := amountOrZero(amount)
	if amountOrZero(attached).Cmp(amt) != 0 {
		return fmt.Errorf("%w: %w: attached %s, expected %s", ErrTransferFailed, ErrUnderFunded, amountOrZero(attached), amt)
	}
	return r.move(from, r.vault, amt)
}

func (r *nativeRail) Pay(to [20]byte, amount *big.Int) error {
	return r.move(r.vault, to, amountOrZero(amount))
}

func (r *nativeRail) Balance(addr [20]byte) (*big.Int, error) {
	acc, err := r.accounts.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return acc.Clone().Balance, nil
}

func (r *nativeRail) move(from, to [20]byte, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrTransferFailed)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromAcc, err := r.accounts.GetAccount(from[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	toAcc, err := r.accounts.GetAccount(to[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	fromAcc = fromAcc.Clone()
	toAcc = toAcc.Clone()
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %w: balance %s below %s", ErrTransferFailed, ErrUnderFunded, fromAcc.Balance, amount)
	}
	fromAcc.Balance.Sub(fromAcc.Balance, amount)
	toAcc.Balance.Add(toAcc.Balance, amount)
	if err := r.accounts.PutAccount(from[:], fromAcc); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := r.accounts.PutAccount(to[:], toAcc); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

type tokenRail struct {
	tokens tokenLedger
	symbol string
	vault  [20]byte
}

func (r *tokenRail) Collect(from [20]byte, amount, attached *big.Int) error {
	if amountOrZero(attached).Sign() != 0 {
		return fmt.Errorf("%w: native value attached to %s funding", ErrTransferFailed, r.symbol)
	}
	amt := amountOrZero(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if err := r.tokens.TransferFrom(r.symbol, r.vault, from, r.vault, amt); err != nil {
		return wrapTokenError(err)
	}
	return nil
}

func (r *tokenRail) Pay(to [20]byte, amount *big.Int) error {
	amt := amountOrZero(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if err := r.tokens.Transfer(r.symbol, r.vault, to, amt); err != nil {
		return wrapTokenError(err)
	}
	return nil
}

func (r *tokenRail) Balance(addr [20]byte) (*big.Int, error) {
	return r.tokens.BalanceOf(r.symbol, addr)
}

func wrapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientAllowance):
		return fmt.Errorf("%w: %w: %w", ErrTransferFailed, ErrInsufficientAllowance, err)
	case errors.Is(err, token.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w: %w", ErrTransferFailed, ErrUnderFunded, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
}

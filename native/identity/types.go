package identity

import "errors"

var (
	ErrNotRegistered     = errors.New("identity: account not registered")
	ErrAlreadyRegistered = errors.New("identity: account already registered")

	errNilState = errors.New("identity registry: state not configured")
)

// Identity binds an account to the proxy address that acts on its behalf.
type Identity struct {
	Account      [20]byte
	Proxy        [20]byte
	RegisteredAt int64
}

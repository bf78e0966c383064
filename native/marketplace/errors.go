package marketplace

import (
	"errors"
	"fmt"

	"bazaar/native/ledger"
)

var (
	ErrNotFound        = errors.New("marketplace: not found")
	ErrListingNotFound = fmt.Errorf("%w: listing", ErrNotFound)
	ErrOfferNotFound   = fmt.Errorf("%w: offer", ErrNotFound)
	ErrDisputeNotFound = fmt.Errorf("%w: dispute", ErrNotFound)

	ErrUnauthorized     = errors.New("marketplace: unauthorized")
	ErrInvalidState     = errors.New("marketplace: invalid state")
	ErrAlreadyFinalized = fmt.Errorf("%w: offer already finalized", ErrInvalidState)
	ErrAlreadyRuled     = errors.New("marketplace: dispute already ruled")
	ErrSoldOut          = errors.New("marketplace: sold out")
	ErrTooEarly         = errors.New("marketplace: too early")
	ErrInvalidParams    = errors.New("marketplace: invalid parameters")

	// Funding and transfer failures share identity with the ledger sentinels
	// so callers can match either name.
	ErrUnderFunded           = ledger.ErrUnderFunded
	ErrInsufficientAllowance = ledger.ErrInsufficientAllowance
	ErrLedgerTransferFailed  = ledger.ErrTransferFailed

	errNilState  = errors.New("marketplace engine: state not configured")
	errNilLedger = errors.New("marketplace engine: ledger not configured")
)

package rpc

import (
	"errors"
	"net/http"

	"bazaar/native/arbitrator"
	"bazaar/native/common"
	"bazaar/native/identity"
	"bazaar/native/ledger"
	"bazaar/native/marketplace"
	"bazaar/native/token"
	"bazaar/native/vesting"
)

type errorClass struct {
	status  int
	code    int
	message string
}

var (
	classNotFound      = errorClass{http.StatusNotFound, codeNotFound, "not_found"}
	classForbidden     = errorClass{http.StatusForbidden, codeForbidden, "forbidden"}
	classConflict      = errorClass{http.StatusConflict, codeConflict, "conflict"}
	classTooEarly      = errorClass{http.StatusTooEarly, codeTooEarly, "too_early"}
	classInvalidParams = errorClass{http.StatusBadRequest, codeInvalidParams, "invalid_params"}
	classUnderFunded   = errorClass{http.StatusPaymentRequired, codeUnderFunded, "underfunded"}
	classLedger        = errorClass{http.StatusBadGateway, codeLedgerFailure, "ledger_failure"}
	classPaused        = errorClass{http.StatusServiceUnavailable, codePaused, "module_paused"}
	classInternal      = errorClass{http.StatusInternalServerError, codeServerError, "internal_error"}
)

func classify(err error) errorClass {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		return classPaused
	case errors.Is(err, marketplace.ErrNotFound),
		errors.Is(err, arbitrator.ErrNotFound),
		errors.Is(err, vesting.ErrNotFound),
		errors.Is(err, identity.ErrNotRegistered):
		return classNotFound
	case errors.Is(err, marketplace.ErrUnauthorized),
		errors.Is(err, arbitrator.ErrUnauthorized),
		errors.Is(err, vesting.ErrUnauthorized),
		errors.Is(err, token.ErrMintUnauthorized):
		return classForbidden
	case errors.Is(err, marketplace.ErrTooEarly):
		return classTooEarly
	case errors.Is(err, marketplace.ErrInvalidState),
		errors.Is(err, marketplace.ErrAlreadyRuled),
		errors.Is(err, marketplace.ErrSoldOut),
		errors.Is(err, identity.ErrAlreadyRegistered),
		errors.Is(err, vesting.ErrNotRevocable),
		errors.Is(err, vesting.ErrRevoked):
		return classConflict
	case errors.Is(err, ledger.ErrUnderFunded),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return classUnderFunded
	case errors.Is(err, ledger.ErrTransferFailed):
		return classLedger
	case errors.Is(err, marketplace.ErrInvalidParams),
		errors.Is(err, vesting.ErrInvalidSchedule),
		errors.Is(err, vesting.ErrUnsortedSchedule),
		errors.Is(err, vesting.ErrOverflow),
		errors.Is(err, ledger.ErrUnknownRail),
		errors.Is(err, token.ErrUnknownToken),
		errors.Is(err, token.ErrInvalidAmount):
		return classInvalidParams
	default:
		return classInternal
	}
}

// writeNodeError maps an engine error onto its JSON-RPC code and HTTP status.
func writeNodeError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	class := classify(err)
	writeError(w, class.status, id, class.code, class.message, err.Error())
}

package token

import (
	"math/big"

	"bazaar/core/types"
	"bazaar/crypto"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

// NewTransferEvent describes a balance movement. Mints carry a zero sender.
func NewTransferEvent(symbol string, from, to [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"token":  symbol,
		"to":     crypto.Address(to).String(),
		"amount": amount.String(),
	}
	if from != ([20]byte{}) {
		attrs["from"] = crypto.Address(from).String()
	}
	return &types.Event{Type: EventTypeTransfer, Attributes: attrs}
}

func NewApprovalEvent(symbol string, owner, spender [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   symbol,
			"owner":   crypto.Address(owner).String(),
			"spender": crypto.Address(spender).String(),
			"amount":  amount.String(),
		},
	}
}

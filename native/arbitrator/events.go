package arbitrator

import (
	"strconv"

	"bazaar/core/types"
	"bazaar/crypto"
	"bazaar/native/marketplace"
)

const (
	EventTypeRegistered    = "arbitrator.registered"
	EventTypeRulingRelayed = "arbitrator.ruling.relayed"
)

func NewRegisteredEvent(c *Contract) *types.Event {
	return &types.Event{
		Type: EventTypeRegistered,
		Attributes: map[string]string{
			"contract": crypto.Address(c.Address).String(),
			"owner":    crypto.Address(c.Owner).String(),
			"nonce":    strconv.FormatUint(c.Nonce, 10),
		},
	}
}

func NewRulingRelayedEvent(c *Contract, disputeID uint64, ruling marketplace.Ruling) *types.Event {
	return &types.Event{
		Type: EventTypeRulingRelayed,
		Attributes: map[string]string{
			"contract":      crypto.Address(c.Address).String(),
			"disputeId":     strconv.FormatUint(disputeID, 10),
			"outcome":       ruling.Outcome.String(),
			"payCommission": strconv.FormatBool(ruling.PayCommission),
			"rulings":       strconv.FormatUint(c.Rulings, 10),
		},
	}
}

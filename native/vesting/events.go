package vesting

import (
	"math/big"
	"strconv"

	"bazaar/core/types"
	"bazaar/crypto"
)

const (
	EventTypeGrantCreated = "vesting.grant.created"
	EventTypeReleased     = "vesting.released"
	EventTypeRevoked      = "vesting.revoked"
)

func grantAttributes(g *Grant) map[string]string {
	return map[string]string{
		"grantId":     strconv.FormatUint(g.ID, 10),
		"owner":       crypto.Address(g.Owner).String(),
		"beneficiary": crypto.Address(g.Beneficiary).String(),
		"token":       g.Token,
		"released":    cloneBigInt(g.Released).String(),
	}
}

func NewGrantCreatedEvent(g *Grant) *types.Event {
	attrs := grantAttributes(g)
	attrs["total"] = g.Total().String()
	attrs["cliff"] = strconv.FormatInt(g.Cliff, 10)
	attrs["releases"] = strconv.Itoa(len(g.Schedule))
	attrs["revocable"] = strconv.FormatBool(g.Revocable)
	return &types.Event{Type: EventTypeGrantCreated, Attributes: attrs}
}

func NewReleasedEvent(g *Grant, amount *big.Int) *types.Event {
	attrs := grantAttributes(g)
	attrs["amount"] = amount.String()
	return &types.Event{Type: EventTypeReleased, Attributes: attrs}
}

func NewRevokedEvent(g *Grant, r *Revocation) *types.Event {
	attrs := grantAttributes(g)
	attrs["paid"] = r.Paid.String()
	attrs["returned"] = r.Returned.String()
	return &types.Event{Type: EventTypeRevoked, Attributes: attrs}
}

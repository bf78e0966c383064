package marketplace

import (
	"encoding/hex"
	"strconv"

	"bazaar/core/types"
	"bazaar/crypto"
)

const (
	EventTypeListingCreated = "market.listing.created"
	EventTypeListingUpdated = "market.listing.updated"
	EventTypeListingRetired = "market.listing.retired"
	EventTypeOfferCreated   = "market.offer.created"
	EventTypeOfferAccepted  = "market.offer.accepted"
	EventTypeOfferDeclined  = "market.offer.declined"
	EventTypeOfferWithdrawn = "market.offer.withdrawn"
	EventTypeOfferDisputed  = "market.offer.disputed"
	EventTypeOfferFinalized = "market.offer.finalized"
	EventTypeRulingGiven    = "market.ruling.given"
)

func bech32Of(a [20]byte) string { return crypto.Address(a).String() }

// NewListingEvent returns the canonical payload for listing lifecycle events.
func NewListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(l.ID, 10)
	attrs["seller"] = bech32Of(l.Seller)
	attrs["owner"] = bech32Of(l.Owner)
	attrs["contentRef"] = hex.EncodeToString(l.ContentRef[:])
	attrs["units"] = strconv.FormatUint(l.Units, 10)
	if l.Deposit != nil && l.Deposit.Sign() > 0 {
		attrs["deposit"] = l.Deposit.String()
		attrs["depositToken"] = l.DepositToken
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewOfferEvent returns the canonical payload for offer lifecycle events.
func NewOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(o.ListingID, 10)
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["buyer"] = bech32Of(o.Buyer)
	attrs["arbitrator"] = bech32Of(o.Arbitrator)
	attrs["amount"] = cloneBigInt(o.Amount).String()
	attrs["commission"] = cloneBigInt(o.Commission).String()
	attrs["funding"] = o.Funding.String()
	attrs["units"] = strconv.FormatUint(o.Units, 10)
	attrs["status"] = o.Status.String()
	if o.HasAffiliate() {
		attrs["affiliate"] = bech32Of(o.Affiliate)
	}
	if o.HasDispute {
		attrs["disputeId"] = strconv.FormatUint(o.DisputeID, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewSettlementEvent extends the offer payload with the value moved out of
// escrow.
func NewSettlementEvent(eventType string, o *Offer, s *Settlement) *types.Event {
	evt := NewOfferEvent(eventType, o)
	if s == nil {
		return evt
	}
	for name, v := range map[string]string{
		"paidSeller":     s.Seller.String(),
		"paidBuyer":      s.Buyer.String(),
		"paidAffiliate":  s.Affiliate.String(),
		"paidTreasury":   s.Treasury.String(),
		"burned":         s.Burned.String(),
		"paidArbitrator": s.Arbitrator.String(),
	} {
		if v != "0" {
			evt.Attributes[name] = v
		}
	}
	return evt
}

// NewRulingEvent returns the payload emitted when an arbitrator rules.
func NewRulingEvent(d *Dispute) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: EventTypeRulingGiven, Attributes: attrs}
	}
	attrs["disputeId"] = strconv.FormatUint(d.ID, 10)
	attrs["listingId"] = strconv.FormatUint(d.ListingID, 10)
	attrs["offerId"] = strconv.FormatUint(d.OfferID, 10)
	attrs["outcome"] = d.Ruling.Outcome.String()
	attrs["payCommission"] = strconv.FormatBool(d.Ruling.PayCommission)
	attrs["refund"] = cloneBigInt(d.Ruling.Refund).String()
	return &types.Event{Type: EventTypeRulingGiven, Attributes: attrs}
}

// NewDisputeEvent returns the payload emitted when an offer is disputed.
func NewDisputeEvent(o *Offer, d *Dispute) *types.Event {
	evt := NewOfferEvent(EventTypeOfferDisputed, o)
	if d == nil {
		return evt
	}
	evt.Attributes["initiator"] = bech32Of(d.Initiator)
	evt.Attributes["refund"] = cloneBigInt(d.Refund).String()
	evt.Attributes["evidenceDigest"] = hex.EncodeToString(d.EvidenceDigest[:])
	return evt
}

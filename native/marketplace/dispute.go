package marketplace

import (
	"fmt"
	"math/big"
	"strings"

	"lukechampine.com/blake3"
)

// EvidenceDigest is the blake3 digest recorded for a dispute's evidence
// reference.
func EvidenceDigest(evidence string) [32]byte {
	return blake3.Sum256([]byte(strings.TrimSpace(evidence)))
}

// Dispute contests an Accepted offer. Either the buyer or the seller may
// dispute; from then on only the offer's arbitrator can move the escrow.
func (e *Engine) Dispute(caller [20]byte, listingID, offerID uint64, evidence string, refund *big.Int) (*Dispute, error) {
	var created *Dispute
	err := e.atomic(func() error {
		listing, offer, err := e.loadOffer(listingID, offerID)
		if err != nil {
			return err
		}
		if caller != offer.Buyer && caller != listing.Seller {
			return fmt.Errorf("%w: only buyer or seller may dispute", ErrUnauthorized)
		}
		if err := requireStatus(offer, OfferAccepted); err != nil {
			return err
		}
		requested := cloneBigInt(refund)
		if requested.Sign() < 0 || requested.Cmp(offer.Amount) > 0 {
			return fmt.Errorf("%w: refund must be between zero and the offer amount", ErrInvalidParams)
		}
		id, err := e.state.MarketNextDisputeID()
		if err != nil {
			return err
		}
		dispute := &Dispute{
			ID:             id,
			ListingID:      listingID,
			OfferID:        offerID,
			Initiator:      caller,
			Refund:         requested,
			Evidence:       strings.TrimSpace(evidence),
			EvidenceDigest: EvidenceDigest(evidence),
			CreatedAt:      e.now(),
		}
		if err := e.state.MarketDisputePut(dispute); err != nil {
			return err
		}
		offer.Status = OfferDisputed
		offer.DisputeID = id
		offer.HasDispute = true
		if err := e.state.MarketOfferPut(offer); err != nil {
			return err
		}
		e.emit(NewDisputeEvent(offer, dispute))
		created = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// GiveRuling executes the arbitrator's ruling on a dispute: the escrow is
// split exactly once and the offer is Finalized. Only the arbitrator bound
// to the offer may rule, and only once. A failed transfer leaves the dispute
// open for retry.
func (e *Engine) GiveRuling(caller [20]byte, disputeID uint64, ruling Ruling) (*Settlement, error) {
	var settlement *Settlement
	err := e.atomic(func() error {
		dispute, err := e.loadDispute(disputeID)
		if err != nil {
			return err
		}
		listing, offer, err := e.loadOffer(dispute.ListingID, dispute.OfferID)
		if err != nil {
			return err
		}
		if caller != offer.Arbitrator {
			return fmt.Errorf("%w: only the offer's arbitrator may rule", ErrUnauthorized)
		}
		if dispute.Ruled {
			return fmt.Errorf("%w: dispute %d", ErrAlreadyRuled, disputeID)
		}
		if err := requireStatus(offer, OfferDisputed); err != nil {
			return err
		}
		if !ruling.Outcome.Valid() {
			return fmt.Errorf("%w: unknown ruling outcome %d", ErrInvalidParams, ruling.Outcome)
		}
		p, err := e.rulingPayout(offer, ruling)
		if err != nil {
			return err
		}
		rail, err := e.rails.Rail(offer.Funding)
		if err != nil {
			return err
		}
		offer.Status = OfferFinalized
		settlement = newSettlement(offer)
		if err := e.pay(rail, offer, listing.Owner, p, settlement); err != nil {
			return err
		}
		dispute.Ruled = true
		dispute.Ruling = Ruling{Outcome: ruling.Outcome, PayCommission: ruling.PayCommission, Refund: cloneBigInt(ruling.Refund)}
		dispute.RuledAt = e.now()
		if err := e.state.MarketDisputePut(dispute); err != nil {
			return err
		}
		if err := e.state.MarketOfferPut(offer); err != nil {
			return err
		}
		e.emit(NewRulingEvent(dispute))
		e.emit(NewSettlementEvent(EventTypeOfferFinalized, offer, settlement))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

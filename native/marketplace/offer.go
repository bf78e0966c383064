package marketplace

import (
	"errors"
	"fmt"
	"math"
)

// MakeOffer escrows the buyer's funds against a listing and creates an offer
// in the Created state. Funding is captured in full at call time.
func (e *Engine) MakeOffer(caller [20]byte, params OfferParams) (*Offer, error) {
	var created *Offer
	err := e.atomic(func() error {
		listing, err := e.loadListing(params.ListingID)
		if err != nil {
			return err
		}
		units := params.Units
		if units == 0 {
			units = 1
		}
		if err := e.validateOffer(caller, listing, params); err != nil {
			return err
		}
		if listing.Units < units {
			return fmt.Errorf("%w: listing %d has %d units, %d requested", ErrSoldOut, listing.ID, listing.Units, units)
		}
		rail, err := e.rails.Rail(params.Funding)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		if err := rail.Collect(caller, params.Amount, params.Attached); err != nil {
			if errors.Is(err, ErrInsufficientAllowance) && !errors.Is(err, ErrUnderFunded) {
				return fmt.Errorf("%w: %w", ErrUnderFunded, err)
			}
			return err
		}
		if err := e.consumeUnits(listing, units); err != nil {
			return err
		}
		offerID, err := e.state.MarketNextOfferID(listing.ID)
		if err != nil {
			return err
		}
		offer := &Offer{
			ListingID:       listing.ID,
			ID:              offerID,
			Buyer:           caller,
			Affiliate:       params.Affiliate,
			Arbitrator:      params.Arbitrator,
			ContentRef:      params.ContentRef,
			Units:           units,
			Amount:          cloneBigInt(params.Amount),
			Commission:      cloneBigInt(params.Commission),
			Funding:         params.Funding,
			CreatedAt:       e.now(),
			FinalizesAt:     params.FinalizesAt,
			WithdrawTimeout: params.WithdrawTimeout,
			Status:          OfferCreated,
		}
		if err := e.state.MarketOfferPut(offer); err != nil {
			return err
		}
		e.emit(NewOfferEvent(EventTypeOfferCreated, offer))
		created = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

func (e *Engine) validateOffer(buyer [20]byte, listing *Listing, params OfferParams) error {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	commission := cloneBigInt(params.Commission)
	if commission.Sign() < 0 || commission.Cmp(params.Amount) > 0 {
		return fmt.Errorf("%w: commission must be between zero and the amount", ErrInvalidParams)
	}
	if params.FinalizesAt <= e.now() {
		return fmt.Errorf("%w: finalization deadline already passed", ErrInvalidParams)
	}
	if params.WithdrawTimeout < 0 {
		return fmt.Errorf("%w: negative withdraw timeout", ErrInvalidParams)
	}
	if e.maxWithdrawTimeout > 0 && params.WithdrawTimeout > e.maxWithdrawTimeout {
		return fmt.Errorf("%w: withdraw timeout above %d seconds", ErrInvalidParams, e.maxWithdrawTimeout)
	}
	if params.WithdrawTimeout > math.MaxInt64-e.now() {
		return fmt.Errorf("%w: withdraw timeout overflows the deadline", ErrInvalidParams)
	}
	if params.Arbitrator == ([20]byte{}) {
		return fmt.Errorf("%w: arbitrator required", ErrInvalidParams)
	}
	if params.Arbitrator == buyer || params.Arbitrator == listing.Seller {
		return fmt.Errorf("%w: arbitrator must be a third party", ErrInvalidParams)
	}
	if !params.Funding.Kind.Valid() {
		return fmt.Errorf("%w: unknown funding rail", ErrInvalidParams)
	}
	return nil
}

// AcceptOffer moves a Created offer to Accepted. Only the listing's seller
// may accept.
func (e *Engine) AcceptOffer(caller [20]byte, listingID, offerID uint64) (*Settlement, error) {
	var settlement *Settlement
	err := e.atomic(func() error {
		listing, offer, err := e.loadOffer(listingID, offerID)
		if err != nil {
			return err
		}
		if caller != listing.Seller {
			return fmt.Errorf("%w: only the seller may accept", ErrUnauthorized)
		}
		if err := requireStatus(offer, OfferCreated); err != nil {
			return err
		}
		offer.Status = OfferAccepted
		if err := e.state.MarketOfferPut(offer); err != nil {
			return err
		}
		e.emit(NewOfferEvent(EventTypeOfferAccepted, offer))
		settlement = newSettlement(offer)
		return nil
	})
	return settlement, err
}

// DeclineOffer lets the seller reject a Created offer, refunding the buyer
// in full. Declining an already withdrawn offer is a no-op.
func (e *Engine) DeclineOffer(caller [20]byte, listingID, offerID uint64) (*Settlement, error) {
	var settlement *Settlement
	err := e.atomic(func() error {
		listing, offer, err := e.loadOffer(listingID, offerID)
		if err != nil {
			return err
		}
		if caller != listing.Seller {
			return fmt.Errorf("%w: only the seller may decline", ErrUnauthorized)
		}
		if offer.Status == OfferWithdrawn {
			settlement = newSettlement(offer)
			return nil
		}
		if err := requireStatus(offer, OfferCreated); err != nil {
			return err
		}
		settlement, err = e.refundBuyer(offer, EventTypeOfferDeclined)
		return err
	})
	return settlement, err
}

// WithdrawOffer returns the escrow to the buyer once the withdraw timeout has
// elapsed on an offer the seller never accepted. Repeating it on a withdrawn
// offer is a no-op.
func (e *Engine) WithdrawOffer(caller [20]byte, listingID, offerID uint64) (*Settlement, error) {
	var settlement *Settlement
	err := e.atomic(func() error {
		_, offer, err := e.loadOffer(listingID, offerID)
		if err != nil {
			return err
		}
		if caller != offer.Buyer {
			return fmt.Errorf("%w: only the buyer may withdraw", ErrUnauthorized)
		}
		if offer.Status == OfferWithdrawn {
			settlement = newSettlement(offer)
			return nil
		}
		if err := requireStatus(offer, OfferCreated); err != nil {
			return err
		}
		if now := e.now(); now < offer.WithdrawableAt() {
			return fmt.Errorf("%w: withdrawable at %d, now %d", ErrTooEarly, offer.WithdrawableAt(), now)
		}
		settlement, err = e.refundBuyer(offer, EventTypeOfferWithdrawn)
		return err
	})
	return settlement, err
}

func (e *Engine) refundBuyer(offer *Offer, eventType string) (*Settlement, error) {
	rail, err := e.rails.Rail(offer.Funding)
	if err != nil {
		return nil, err
	}
	if err := rail.Pay(offer.Buyer, offer.Amount); err != nil {
		return nil, err
	}
	offer.Status = OfferWithdrawn
	if err := e.state.MarketOfferPut(offer); err != nil {
		return nil, err
	}
	settlement := newSettlement(offer)
	settlement.Buyer = cloneBigInt(offer.Amount)
	e.emit(NewSettlementEvent(eventType, offer, settlement))
	return settlement, nil
}

// Finalize releases an Accepted offer's escrow: proceeds to the seller and
// commission to the affiliate. The buyer may finalize at any time; the seller
// only after the finalization deadline. Finalizing again is a no-op.
func (e *Engine) Finalize(caller [20]byte, listingID, offerID uint64) (*Settlement, error) {
	var settlement *Settlement
	err := e.atomic(func() error {
		listing, offer, err := e.loadOffer(listingID, offerID)
		if err != nil {
			return err
		}
		if caller != offer.Buyer && caller != listing.Seller {
			return fmt.Errorf("%w: only buyer or seller may finalize", ErrUnauthorized)
		}
		if offer.Status == OfferFinalized {
			settlement = newSettlement(offer)
			return nil
		}
		if err := requireStatus(offer, OfferAccepted); err != nil {
			return err
		}
		if caller != offer.Buyer {
			if now := e.now(); now < offer.FinalizesAt {
				return fmt.Errorf("%w: seller may finalize at %d, now %d", ErrTooEarly, offer.FinalizesAt, now)
			}
		}
		p, err := e.completionPayout(offer)
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
		if err := e.state.MarketOfferPut(offer); err != nil {
			return err
		}
		e.emit(NewSettlementEvent(EventTypeOfferFinalized, offer, settlement))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func requireStatus(offer *Offer, want OfferStatus) error {
	if offer.Status == want {
		return nil
	}
	if offer.Status == OfferFinalized {
		return fmt.Errorf("%w: offer %d/%d", ErrAlreadyFinalized, offer.ListingID, offer.ID)
	}
	return fmt.Errorf("%w: offer %d/%d is %s, want %s", ErrInvalidState, offer.ListingID, offer.ID, offer.Status, want)
}

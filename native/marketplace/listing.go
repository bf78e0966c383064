package marketplace

import (
	"fmt"

	"bazaar/native/ledger"
)

func (e *Engine) depositFunding() ledger.Funding {
	return ledger.Funding{Kind: ledger.KindToken, Token: e.depositToken}
}

// CreateListing publishes a listing owned by the caller or by the supplied
// owner override. When a listing deposit is configured it is pulled from the
// caller, who must have approved the marketplace vault beforehand.
func (e *Engine) CreateListing(caller [20]byte, params ListingParams) (*Listing, error) {
	var created *Listing
	err := e.atomic(func() error {
		if params.Units == 0 {
			return fmt.Errorf("%w: listing needs at least one unit", ErrInvalidParams)
		}
		owner := caller
		if params.Owner != nil && *params.Owner != ([20]byte{}) {
			owner = *params.Owner
		}
		id, err := e.state.MarketNextListingID()
		if err != nil {
			return err
		}
		listing := &Listing{
			ID:         id,
			Seller:     caller,
			Owner:      owner,
			ContentRef: params.ContentRef,
			Units:      params.Units,
			Deposit:    cloneBigInt(nil),
			CreatedAt:  e.now(),
		}
		if e.listingDeposit != nil && e.listingDeposit.Sign() > 0 {
			rail, err := e.rails.Rail(e.depositFunding())
			if err != nil {
				return err
			}
			if err := rail.Collect(caller, e.listingDeposit, nil); err != nil {
				return fmt.Errorf("marketplace: listing deposit: %w", err)
			}
			listing.Deposit = cloneBigInt(e.listingDeposit)
			listing.DepositToken = e.depositToken
		}
		if err := e.state.MarketListingPut(listing); err != nil {
			return err
		}
		e.emit(NewListingEvent(EventTypeListingCreated, listing))
		created = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// UpdateListing replaces the content reference and tops up the unit count.
// Only the seller may update.
func (e *Engine) UpdateListing(caller [20]byte, listingID uint64, contentRef [32]byte, additionalUnits uint64) (*Listing, error) {
	var updated *Listing
	err := e.atomic(func() error {
		listing, err := e.loadListing(listingID)
		if err != nil {
			return err
		}
		if caller != listing.Seller {
			return fmt.Errorf("%w: only the seller may update listing %d", ErrUnauthorized, listingID)
		}
		if listing.Units+additionalUnits < listing.Units {
			return fmt.Errorf("%w: unit count overflow", ErrInvalidParams)
		}
		listing.ContentRef = contentRef
		listing.Units += additionalUnits
		if err := e.state.MarketListingPut(listing); err != nil {
			return err
		}
		e.emit(NewListingEvent(EventTypeListingUpdated, listing))
		updated = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// consumeUnits takes units from the listing and, once none remain, returns
// the listing deposit to its owner.
func (e *Engine) consumeUnits(listing *Listing, units uint64) error {
	if listing.Units < units {
		return fmt.Errorf("%w: listing %d has %d units, %d requested", ErrSoldOut, listing.ID, listing.Units, units)
	}
	listing.Units -= units
	if listing.Units == 0 && listing.Deposit != nil && listing.Deposit.Sign() > 0 {
		rail, err := e.rails.Rail(ledger.Funding{Kind: ledger.KindToken, Token: listing.DepositToken})
		if err != nil {
			return err
		}
		if err := rail.Pay(listing.Owner, listing.Deposit); err != nil {
			return fmt.Errorf("marketplace: return listing deposit: %w", err)
		}
		listing.Deposit = cloneBigInt(nil)
	}
	if err := e.state.MarketListingPut(listing); err != nil {
		return err
	}
	if listing.Units == 0 {
		e.emit(NewListingEvent(EventTypeListingRetired, listing))
	}
	return nil
}

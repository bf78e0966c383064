package core

import (
	"math/big"

	"bazaar/native/marketplace"
)

// Caller identifies who invokes a marketplace operation. With ViaIdentity
// set the call is made by the account's registered identity proxy.
type Caller struct {
	Address     [20]byte
	ViaIdentity bool
}

func (e *engines) actor(c Caller) ([20]byte, error) {
	if !c.ViaIdentity {
		return c.Address, nil
	}
	return e.identity.ProxyFor(c.Address)
}

// CreateListing publishes a listing. Through an identity proxy the proxy is
// the seller and the account stays the owner unless params names another.
func (n *Node) CreateListing(c Caller, params marketplace.ListingParams) (*marketplace.Listing, error) {
	var out *marketplace.Listing
	err := n.execute("market_createListing", c.Address, func(e *engines) error {
		seller, err := e.actor(c)
		if err != nil {
			return err
		}
		if c.ViaIdentity && params.Owner == nil {
			owner := c.Address
			params.Owner = &owner
		}
		out, err = e.market.CreateListing(seller, params)
		return err
	})
	return out, err
}

func (n *Node) UpdateListing(c Caller, listingID uint64, contentRef [32]byte, additionalUnits uint64) (*marketplace.Listing, error) {
	var out *marketplace.Listing
	err := n.execute("market_updateListing", c.Address, func(e *engines) error {
		actor, err := e.actor(c)
		if err != nil {
			return err
		}
		out, err = e.market.UpdateListing(actor, listingID, contentRef, additionalUnits)
		return err
	})
	return out, err
}

func (n *Node) MakeOffer(c Caller, params marketplace.OfferParams) (*marketplace.Offer, error) {
	var out *marketplace.Offer
	err := n.execute("market_makeOffer", c.Address, func(e *engines) error {
		actor, err := e.actor(c)
		if err != nil {
			return err
		}
		out, err = e.market.MakeOffer(actor, params)
		return err
	})
	return out, err
}

type settleFunc func(m *marketplace.Engine, actor [20]byte) (*marketplace.Settlement, error)

func (n *Node) settle(op string, c Caller, fn settleFunc) (*marketplace.Settlement, error) {
	var out *marketplace.Settlement
	err := n.execute(op, c.Address, func(e *engines) error {
		actor, err := e.actor(c)
		if err != nil {
			return err
		}
		out, err = fn(e.market, actor)
		return err
	})
	return out, err
}

func (n *Node) AcceptOffer(c Caller, listingID, offerID uint64) (*marketplace.Settlement, error) {
	return n.settle("market_acceptOffer", c, func(m *marketplace.Engine, actor [20]byte) (*marketplace.Settlement, error) {
		return m.AcceptOffer(actor, listingID, offerID)
	})
}

func (n *Node) DeclineOffer(c Caller, listingID, offerID uint64) (*marketplace.Settlement, error) {
	return n.settle("market_declineOffer", c, func(m *marketplace.Engine, actor [20]byte) (*marketplace.Settlement, error) {
		return m.DeclineOffer(actor, listingID, offerID)
	})
}

func (n *Node) WithdrawOffer(c Caller, listingID, offerID uint64) (*marketplace.Settlement, error) {
	return n.settle("market_withdrawOffer", c, func(m *marketplace.Engine, actor [20]byte) (*marketplace.Settlement, error) {
		return m.WithdrawOffer(actor, listingID, offerID)
	})
}

func (n *Node) Finalize(c Caller, listingID, offerID uint64) (*marketplace.Settlement, error) {
	return n.settle("market_finalize", c, func(m *marketplace.Engine, actor [20]byte) (*marketplace.Settlement, error) {
		return m.Finalize(actor, listingID, offerID)
	})
}

func (n *Node) Dispute(c Caller, listingID, offerID uint64, evidence string, refund *big.Int) (*marketplace.Dispute, error) {
	var out *marketplace.Dispute
	err := n.execute("market_dispute", c.Address, func(e *engines) error {
		actor, err := e.actor(c)
		if err != nil {
			return err
		}
		out, err = e.market.Dispute(actor, listingID, offerID, evidence, refund)
		return err
	})
	return out, err
}

// GiveRuling is called by an arbitrator bound directly to the offer.
func (n *Node) GiveRuling(caller [20]byte, disputeID uint64, ruling marketplace.Ruling) (*marketplace.Settlement, error) {
	var out *marketplace.Settlement
	err := n.execute("market_giveRuling", caller, func(e *engines) error {
		var err error
		out, err = e.market.GiveRuling(caller, disputeID, ruling)
		return err
	})
	return out, err
}

func (n *Node) GetListing(id uint64) (*marketplace.Listing, error) {
	var out *marketplace.Listing
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.market.GetListing(id)
		return err
	})
	return out, err
}

func (n *Node) GetOffer(listingID, offerID uint64) (*marketplace.Offer, error) {
	var out *marketplace.Offer
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.market.GetOffer(listingID, offerID)
		return err
	})
	return out, err
}

func (n *Node) GetDispute(id uint64) (*marketplace.Dispute, error) {
	var out *marketplace.Dispute
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.market.GetDispute(id)
		return err
	})
	return out, err
}

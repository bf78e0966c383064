package state

import (
	"fmt"
	"math/big"

	"bazaar/native/ledger"
	"bazaar/native/marketplace"
)

type storedListing struct {
	ID           uint64
	Seller       [20]byte
	Owner        [20]byte
	ContentRef   [32]byte
	Units        uint64
	Deposit      *big.Int
	DepositToken string
	CreatedAt    uint64
}

type storedOffer struct {
	ListingID       uint64
	ID              uint64
	Buyer           [20]byte
	Affiliate       [20]byte
	Arbitrator      [20]byte
	ContentRef      [32]byte
	Units           uint64
	Amount          *big.Int
	Commission      *big.Int
	FundingKind     uint8
	FundingToken    string
	CreatedAt       uint64
	FinalizesAt     uint64
	WithdrawTimeout uint64
	Status          uint8
	DisputeID       uint64
	HasDispute      bool
}

type storedDispute struct {
	ID             uint64
	ListingID      uint64
	OfferID        uint64
	Initiator      [20]byte
	Refund         *big.Int
	Evidence       string
	EvidenceDigest [32]byte
	CreatedAt      uint64
	Ruled          bool
	Outcome        uint8
	PayCommission  bool
	RulingRefund   *big.Int
	RuledAt        uint64
}

func amountOf(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// MarketNextListingID allocates the next listing identifier.
func (m *Manager) MarketNextListingID() (uint64, error) {
	return m.nextSequence(MarketListingSequenceKey())
}

// MarketListingCount returns how many listings have been allocated.
func (m *Manager) MarketListingCount() (uint64, error) {
	return m.loadUint64(MarketListingSequenceKey())
}

// MarketNextOfferID allocates the next offer identifier within a listing.
func (m *Manager) MarketNextOfferID(listingID uint64) (uint64, error) {
	return m.nextSequence(MarketOfferSequenceKey(listingID))
}

// MarketOfferCount returns how many offers the listing has received.
func (m *Manager) MarketOfferCount(listingID uint64) (uint64, error) {
	return m.loadUint64(MarketOfferSequenceKey(listingID))
}

// MarketNextDisputeID allocates the next dispute identifier.
func (m *Manager) MarketNextDisputeID() (uint64, error) {
	return m.nextSequence(MarketDisputeSequenceKey())
}

func (m *Manager) MarketListingPut(l *marketplace.Listing) error {
	if l == nil {
		return fmt.Errorf("market: nil listing")
	}
	record := &storedListing{
		ID:           l.ID,
		Seller:       l.Seller,
		Owner:        l.Owner,
		ContentRef:   l.ContentRef,
		Units:        l.Units,
		Deposit:      amountOf(l.Deposit),
		DepositToken: l.DepositToken,
		CreatedAt:    uint64(l.CreatedAt),
	}
	return m.KVPut(MarketListingKey(l.ID), record)
}

func (m *Manager) MarketListingGet(id uint64) (*marketplace.Listing, bool, error) {
	var record storedListing
	ok, err := m.KVGet(MarketListingKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &marketplace.Listing{
		ID:           record.ID,
		Seller:       record.Seller,
		Owner:        record.Owner,
		ContentRef:   record.ContentRef,
		Units:        record.Units,
		Deposit:      amountOf(record.Deposit),
		DepositToken: record.DepositToken,
		CreatedAt:    int64(record.CreatedAt),
	}, true, nil
}

func (m *Manager) MarketOfferPut(o *marketplace.Offer) error {
	if o == nil {
		return fmt.Errorf("market: nil offer")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("market: invalid offer status %d", o.Status)
	}
	record := &storedOffer{
		ListingID:       o.ListingID,
		ID:              o.ID,
		Buyer:           o.Buyer,
		Affiliate:       o.Affiliate,
		Arbitrator:      o.Arbitrator,
		ContentRef:      o.ContentRef,
		Units:           o.Units,
		Amount:          amountOf(o.Amount),
		Commission:      amountOf(o.Commission),
		FundingKind:     uint8(o.Funding.Kind),
		FundingToken:    o.Funding.Token,
		CreatedAt:       uint64(o.CreatedAt),
		FinalizesAt:     uint64(o.FinalizesAt),
		WithdrawTimeout: uint64(o.WithdrawTimeout),
		Status:          uint8(o.Status),
		DisputeID:       o.DisputeID,
		HasDispute:      o.HasDispute,
	}
	return m.KVPut(MarketOfferKey(o.ListingID, o.ID), record)
}

func (m *Manager) MarketOfferGet(listingID, offerID uint64) (*marketplace.Offer, bool, error) {
	var record storedOffer
	ok, err := m.KVGet(MarketOfferKey(listingID, offerID), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	offer := &marketplace.Offer{
		ListingID:       record.ListingID,
		ID:              record.ID,
		Buyer:           record.Buyer,
		Affiliate:       record.Affiliate,
		Arbitrator:      record.Arbitrator,
		ContentRef:      record.ContentRef,
		Units:           record.Units,
		Amount:          amountOf(record.Amount),
		Commission:      amountOf(record.Commission),
		Funding:         ledger.Funding{Kind: ledger.Kind(record.FundingKind), Token: record.FundingToken},
		CreatedAt:       int64(record.CreatedAt),
		FinalizesAt:     int64(record.FinalizesAt),
		WithdrawTimeout: int64(record.WithdrawTimeout),
		Status:          marketplace.OfferStatus(record.Status),
		DisputeID:       record.DisputeID,
		HasDispute:      record.HasDispute,
	}
	if !offer.Status.Valid() {
		return nil, false, fmt.Errorf("market: stored offer has invalid status %d", record.Status)
	}
	return offer, true, nil
}

func (m *Manager) MarketDisputePut(d *marketplace.Dispute) error {
	if d == nil {
		return fmt.Errorf("market: nil dispute")
	}
	record := &storedDispute{
		ID:             d.ID,
		ListingID:      d.ListingID,
		OfferID:        d.OfferID,
		Initiator:      d.Initiator,
		Refund:         amountOf(d.Refund),
		Evidence:       d.Evidence,
		EvidenceDigest: d.EvidenceDigest,
		CreatedAt:      uint64(d.CreatedAt),
		Ruled:          d.Ruled,
		Outcome:        uint8(d.Ruling.Outcome),
		PayCommission:  d.Ruling.PayCommission,
		RulingRefund:   amountOf(d.Ruling.Refund),
		RuledAt:        uint64(d.RuledAt),
	}
	return m.KVPut(MarketDisputeKey(d.ID), record)
}

func (m *Manager) MarketDisputeGet(id uint64) (*marketplace.Dispute, bool, error) {
	var record storedDispute
	ok, err := m.KVGet(MarketDisputeKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &marketplace.Dispute{
		ID:             record.ID,
		ListingID:      record.ListingID,
		OfferID:        record.OfferID,
		Initiator:      record.Initiator,
		Refund:         amountOf(record.Refund),
		Evidence:       record.Evidence,
		EvidenceDigest: record.EvidenceDigest,
		CreatedAt:      int64(record.CreatedAt),
		Ruled:          record.Ruled,
		Ruling: marketplace.Ruling{
			Outcome:       marketplace.Outcome(record.Outcome),
			PayCommission: record.PayCommission,
			Refund:        amountOf(record.RulingRefund),
		},
		RuledAt: int64(record.RuledAt),
	}, true, nil
}

package marketplace

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"bazaar/native/ledger"
)

// OfferStatus tracks an offer through its escrow lifecycle.
type OfferStatus uint8

const (
	OfferCreated OfferStatus = iota
	OfferAccepted
	OfferDisputed
	OfferFinalized
	OfferWithdrawn
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferCreated, OfferAccepted, OfferDisputed, OfferFinalized, OfferWithdrawn:
		return true
	default:
		return false
	}
}

// Terminal reports whether the offer no longer holds escrowed value.
func (s OfferStatus) Terminal() bool {
	return s == OfferFinalized || s == OfferWithdrawn
}

func (s OfferStatus) String() string {
	switch s {
	case OfferCreated:
		return "created"
	case OfferAccepted:
		return "accepted"
	case OfferDisputed:
		return "disputed"
	case OfferFinalized:
		return "finalized"
	case OfferWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// Listing is a seller's published sale of a number of units. Seller controls
// the listing; Owner receives its proceeds and the returned deposit.
type Listing struct {
	ID         uint64
	Seller     [20]byte
	Owner      [20]byte
	ContentRef [32]byte
	Units      uint64
	// Deposit is held by the vault until Units reaches zero.
	Deposit      *big.Int
	DepositToken string
	CreatedAt    int64
}

func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.Deposit = cloneBigInt(l.Deposit)
	return &out
}

// Retired reports whether the listing has no units left.
func (l *Listing) Retired() bool { return l.Units == 0 }

// Offer is a buyer's escrowed commitment against a listing. Offer IDs are
// sequential per listing.
type Offer struct {
	ListingID  uint64
	ID         uint64
	Buyer      [20]byte
	Affiliate  [20]byte
	Arbitrator [20]byte
	ContentRef [32]byte
	Units      uint64
	Amount     *big.Int
	Commission *big.Int
	Funding    ledger.Funding
	CreatedAt  int64
	// FinalizesAt is the deadline after which the seller may finalize.
	FinalizesAt int64
	// WithdrawTimeout is relative to CreatedAt; zero means the buyer may
	// withdraw at any time before acceptance.
	WithdrawTimeout int64
	Status          OfferStatus
	DisputeID       uint64
	HasDispute      bool
}

func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	out := *o
	out.Amount = cloneBigInt(o.Amount)
	out.Commission = cloneBigInt(o.Commission)
	return &out
}

// HasAffiliate reports whether a commission recipient was named.
func (o *Offer) HasAffiliate() bool { return o.Affiliate != ([20]byte{}) }

// WithdrawableAt returns the earliest time the buyer may withdraw. The sum
// saturates at math.MaxInt64.
func (o *Offer) WithdrawableAt() int64 {
	if o.WithdrawTimeout > math.MaxInt64-o.CreatedAt {
		return math.MaxInt64
	}
	return o.CreatedAt + o.WithdrawTimeout
}

// Outcome names the winning side of a ruling.
type Outcome uint8

const (
	OutcomeSeller Outcome = iota
	OutcomeBuyer
)

func (o Outcome) Valid() bool { return o == OutcomeSeller || o == OutcomeBuyer }

func (o Outcome) String() string {
	switch o {
	case OutcomeSeller:
		return "seller"
	case OutcomeBuyer:
		return "buyer"
	default:
		return "unknown"
	}
}

// ParseOutcome accepts "seller" or "buyer".
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seller":
		return OutcomeSeller, nil
	case "buyer":
		return OutcomeBuyer, nil
	default:
		return 0, fmt.Errorf("%w: unknown ruling outcome %q", ErrInvalidParams, s)
	}
}

// Ruling is the arbitrator's binding decision on a dispute.
type Ruling struct {
	Outcome Outcome
	// PayCommission routes the commission to the affiliate (or the
	// configured policy) instead of leaving it with the winning side.
	PayCommission bool
	// Refund is returned to the buyer when the seller wins.
	Refund *big.Int
}

// Dispute records a contested offer and, once ruled, the decision.
type Dispute struct {
	ID             uint64
	ListingID      uint64
	OfferID        uint64
	Initiator      [20]byte
	Refund         *big.Int
	Evidence       string
	EvidenceDigest [32]byte
	CreatedAt      int64
	Ruled          bool
	Ruling         Ruling
	RuledAt        int64
}

func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	out := *d
	out.Refund = cloneBigInt(d.Refund)
	out.Ruling.Refund = cloneBigInt(d.Ruling.Refund)
	return &out
}

// Settlement reports the outcome of a state-changing call: the resulting
// status and every transfer out of escrow.
type Settlement struct {
	ListingID  uint64
	OfferID    uint64
	Status     OfferStatus
	Seller     *big.Int
	Buyer      *big.Int
	Affiliate  *big.Int
	Treasury   *big.Int
	Burned     *big.Int
	Arbitrator *big.Int
}

func newSettlement(o *Offer) *Settlement {
	return &Settlement{
		ListingID:  o.ListingID,
		OfferID:    o.ID,
		Status:     o.Status,
		Seller:     big.NewInt(0),
		Buyer:      big.NewInt(0),
		Affiliate:  big.NewInt(0),
		Treasury:   big.NewInt(0),
		Burned:     big.NewInt(0),
		Arbitrator: big.NewInt(0),
	}
}

// Total sums every payout in the settlement.
func (s *Settlement) Total() *big.Int {
	total := new(big.Int)
	for _, v := range []*big.Int{s.Seller, s.Buyer, s.Affiliate, s.Treasury, s.Burned, s.Arbitrator} {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// ListingParams describes a new listing.
type ListingParams struct {
	ContentRef [32]byte
	Units      uint64
	// Owner overrides the account paid for sales; the caller is used when nil.
	Owner *[20]byte
}

// OfferParams describes a new offer.
type OfferParams struct {
	ListingID       uint64
	ContentRef      [32]byte
	FinalizesAt     int64
	Affiliate       [20]byte
	Commission      *big.Int
	Amount          *big.Int
	Funding         ledger.Funding
	Arbitrator      [20]byte
	WithdrawTimeout int64
	// Units defaults to one.
	Units uint64
	// Attached is the native value sent with the call.
	Attached *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

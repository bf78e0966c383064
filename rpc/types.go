package rpc

import (
	"bazaar/core"
	"bazaar/core/types"
	"bazaar/native/arbitrator"
	"bazaar/native/identity"
	"bazaar/native/marketplace"
	"bazaar/native/vesting"
)

type listingJSON struct {
	ID           uint64 `json:"id"`
	Seller       string `json:"seller"`
	Owner        string `json:"owner"`
	ContentRef   string `json:"contentRef"`
	Units        uint64 `json:"units"`
	Deposit      string `json:"deposit"`
	DepositToken string `json:"depositToken,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

type offerJSON struct {
	ListingID       uint64  `json:"listingId"`
	ID              uint64  `json:"id"`
	Buyer           string  `json:"buyer"`
	Affiliate       string  `json:"affiliate,omitempty"`
	Arbitrator      string  `json:"arbitrator"`
	ContentRef      string  `json:"contentRef"`
	Units           uint64  `json:"units"`
	Amount          string  `json:"amount"`
	Commission      string  `json:"commission"`
	Funding         string  `json:"funding"`
	CreatedAt       int64   `json:"createdAt"`
	FinalizesAt     int64   `json:"finalizesAt"`
	WithdrawTimeout int64   `json:"withdrawTimeout"`
	Status          string  `json:"status"`
	DisputeID       *uint64 `json:"disputeId,omitempty"`
}

type rulingJSON struct {
	Outcome       string `json:"outcome"`
	PayCommission bool   `json:"payCommission"`
	Refund        string `json:"refund"`
}

type disputeJSON struct {
	ID             uint64      `json:"id"`
	ListingID      uint64      `json:"listingId"`
	OfferID        uint64      `json:"offerId"`
	Initiator      string      `json:"initiator"`
	Refund         string      `json:"refund"`
	Evidence       string      `json:"evidence"`
	EvidenceDigest string      `json:"evidenceDigest"`
	CreatedAt      int64       `json:"createdAt"`
	Ruled          bool        `json:"ruled"`
	Ruling         *rulingJSON `json:"ruling,omitempty"`
	RuledAt        int64       `json:"ruledAt,omitempty"`
}

type settlementJSON struct {
	ListingID  uint64 `json:"listingId"`
	OfferID    uint64 `json:"offerId"`
	Status     string `json:"status"`
	Seller     string `json:"seller"`
	Buyer      string `json:"buyer"`
	Affiliate  string `json:"affiliate"`
	Treasury   string `json:"treasury"`
	Burned     string `json:"burned"`
	Arbitrator string `json:"arbitrator"`
	Total      string `json:"total"`
}

type contractJSON struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	Nonce        uint64 `json:"nonce"`
	CreatedAt    int64  `json:"createdAt"`
	Rulings      uint64 `json:"rulings"`
	LastDispute  uint64 `json:"lastDispute"`
	LastRulingAt int64  `json:"lastRulingAt"`
}

type releaseJSON struct {
	Time   int64  `json:"time"`
	Amount string `json:"amount"`
}

type grantJSON struct {
	ID          uint64        `json:"id"`
	Owner       string        `json:"owner"`
	Beneficiary string        `json:"beneficiary"`
	Token       string        `json:"token"`
	Cliff       int64         `json:"cliff"`
	CliffAmount string        `json:"cliffAmount"`
	Schedule    []releaseJSON `json:"schedule"`
	Total       string        `json:"total"`
	Released    string        `json:"released"`
	Revocable   bool          `json:"revocable"`
	Revoked     bool          `json:"revoked"`
	RevokedAt   int64         `json:"revokedAt,omitempty"`
	CreatedAt   int64         `json:"createdAt"`
	Vested      string        `json:"vested,omitempty"`
	Unvested    string        `json:"unvested,omitempty"`
}

type identityJSON struct {
	Account      string `json:"account"`
	Proxy        string `json:"proxy"`
	RegisteredAt int64  `json:"registeredAt"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type eventsJSON struct {
	Events []types.EventRecord `json:"events"`
	Next   uint64              `json:"next"`
}

func formatListing(l *marketplace.Listing) listingJSON {
	return listingJSON{
		ID:           l.ID,
		Seller:       formatAddress(l.Seller),
		Owner:        formatAddress(l.Owner),
		ContentRef:   formatHash(l.ContentRef),
		Units:        l.Units,
		Deposit:      formatAmount(l.Deposit),
		DepositToken: l.DepositToken,
		CreatedAt:    l.CreatedAt,
	}
}

func formatOffer(o *marketplace.Offer) offerJSON {
	out := offerJSON{
		ListingID:       o.ListingID,
		ID:              o.ID,
		Buyer:           formatAddress(o.Buyer),
		Affiliate:       formatAddress(o.Affiliate),
		Arbitrator:      formatAddress(o.Arbitrator),
		ContentRef:      formatHash(o.ContentRef),
		Units:           o.Units,
		Amount:          formatAmount(o.Amount),
		Commission:      formatAmount(o.Commission),
		Funding:         o.Funding.String(),
		CreatedAt:       o.CreatedAt,
		FinalizesAt:     o.FinalizesAt,
		WithdrawTimeout: o.WithdrawTimeout,
		Status:          o.Status.String(),
	}
	if o.HasDispute {
		id := o.DisputeID
		out.DisputeID = &id
	}
	return out
}

func formatDispute(d *marketplace.Dispute) disputeJSON {
	out := disputeJSON{
		ID:             d.ID,
		ListingID:      d.ListingID,
		OfferID:        d.OfferID,
		Initiator:      formatAddress(d.Initiator),
		Refund:         formatAmount(d.Refund),
		Evidence:       d.Evidence,
		EvidenceDigest: formatHash(d.EvidenceDigest),
		CreatedAt:      d.CreatedAt,
		Ruled:          d.Ruled,
	}
	if d.Ruled {
		out.Ruling = &rulingJSON{
			Outcome:       d.Ruling.Outcome.String(),
			PayCommission: d.Ruling.PayCommission,
			Refund:        formatAmount(d.Ruling.Refund),
		}
		out.RuledAt = d.RuledAt
	}
	return out
}

func formatSettlement(s *marketplace.Settlement) settlementJSON {
	return settlementJSON{
		ListingID:  s.ListingID,
		OfferID:    s.OfferID,
		Status:     s.Status.String(),
		Seller:     formatAmount(s.Seller),
		Buyer:      formatAmount(s.Buyer),
		Affiliate:  formatAmount(s.Affiliate),
		Treasury:   formatAmount(s.Treasury),
		Burned:     formatAmount(s.Burned),
		Arbitrator: formatAmount(s.Arbitrator),
		Total:      formatAmount(s.Total()),
	}
}

func formatContract(c *arbitrator.Contract) contractJSON {
	return contractJSON{
		Address:      formatAddress(c.Address),
		Owner:        formatAddress(c.Owner),
		Nonce:        c.Nonce,
		CreatedAt:    c.CreatedAt,
		Rulings:      c.Rulings,
		LastDispute:  c.LastDispute,
		LastRulingAt: c.LastRulingAt,
	}
}

func formatGrant(g *vesting.Grant) grantJSON {
	out := grantJSON{
		ID:          g.ID,
		Owner:       formatAddress(g.Owner),
		Beneficiary: formatAddress(g.Beneficiary),
		Token:       g.Token,
		Cliff:       g.Cliff,
		CliffAmount: formatAmount(g.CliffAmount),
		Schedule:    make([]releaseJSON, len(g.Schedule)),
		Total:       formatAmount(g.Total()),
		Released:    formatAmount(g.Released),
		Revocable:   g.Revocable,
		Revoked:     g.Revoked,
		RevokedAt:   g.RevokedAt,
		CreatedAt:   g.CreatedAt,
	}
	for i, r := range g.Schedule {
		out.Schedule[i] = releaseJSON{Time: r.Time, Amount: formatAmount(r.Amount)}
	}
	return out
}

func formatGrantStatus(st *core.GrantStatus) grantJSON {
	out := formatGrant(st.Grant)
	out.Vested = formatAmount(st.Vested)
	out.Unvested = formatAmount(st.Unvested)
	return out
}

func formatIdentity(id *identity.Identity) identityJSON {
	return identityJSON{
		Account:      formatAddress(id.Account),
		Proxy:        formatAddress(id.Proxy),
		RegisteredAt: id.RegisteredAt,
	}
}

package marketplace

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"bazaar/native/ledger"
)

var errAmountOverflow = errors.New("marketplace: amount exceeds 256 bits")

// payout is the split of one offer's escrow. The fields always sum to the
// offer amount.
type payout struct {
	seller     *uint256.Int
	buyer      *uint256.Int
	affiliate  *uint256.Int
	treasury   *uint256.Int
	burned     *uint256.Int
	arbitrator *uint256.Int
}

func newPayout() *payout {
	return &payout{
		seller:     new(uint256.Int),
		buyer:      new(uint256.Int),
		affiliate:  new(uint256.Int),
		treasury:   new(uint256.Int),
		burned:     new(uint256.Int),
		arbitrator: new(uint256.Int),
	}
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidParams)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errAmountOverflow
	}
	return out, nil
}

// routeCommission credits commission to the affiliate, or applies the
// configured policy when the offer has none.
func (e *Engine) routeCommission(p *payout, o *Offer, commission *uint256.Int) error {
	if commission.IsZero() {
		return nil
	}
	if o.HasAffiliate() {
		p.affiliate.Add(p.affiliate, commission)
		return nil
	}
	switch e.policy {
	case PolicySeller:
		p.seller.Add(p.seller, commission)
	case PolicyTreasury:
		if e.treasury == ([20]byte{}) {
			return fmt.Errorf("marketplace: commission treasury not configured")
		}
		p.treasury.Add(p.treasury, commission)
	case PolicyBurn:
		p.burned.Add(p.burned, commission)
	default:
		return fmt.Errorf("marketplace: unknown commission policy %d", e.policy)
	}
	return nil
}

// completionPayout splits a normally finalized offer: the seller receives
// the amount less commission and the commission is routed.
func (e *Engine) completionPayout(o *Offer) (*payout, error) {
	amount, err := toU256(o.Amount)
	if err != nil {
		return nil, err
	}
	commission, err := toU256(o.Commission)
	if err != nil {
		return nil, err
	}
	proceeds, underflow := new(uint256.Int).SubOverflow(amount, commission)
	if underflow {
		return nil, fmt.Errorf("%w: commission exceeds amount", ErrInvalidParams)
	}
	p := newPayout()
	p.seller.Set(proceeds)
	if err := e.routeCommission(p, o, commission); err != nil {
		return nil, err
	}
	return p, nil
}

// rulingPayout splits a disputed offer according to the arbitrator's ruling.
// The arbitration fee comes out of the winning side's share.
func (e *Engine) rulingPayout(o *Offer, r Ruling) (*payout, error) {
	amount, err := toU256(o.Amount)
	if err != nil {
		return nil, err
	}
	commission := new(uint256.Int)
	if r.PayCommission {
		if commission, err = toU256(o.Commission); err != nil {
			return nil, err
		}
	}
	remaining, underflow := new(uint256.Int).SubOverflow(amount, commission)
	if underflow {
		return nil, fmt.Errorf("%w: commission exceeds amount", ErrInvalidParams)
	}
	p := newPayout()
	var winner *uint256.Int
	switch r.Outcome {
	case OutcomeBuyer:
		p.buyer.Set(remaining)
		winner = p.buyer
	case OutcomeSeller:
		refund, err := toU256(r.Refund)
		if err != nil {
			return nil, err
		}
		proceeds, underflow := new(uint256.Int).SubOverflow(remaining, refund)
		if underflow {
			return nil, fmt.Errorf("%w: refund %s exceeds %s available", ErrInvalidParams, refund.Dec(), remaining.Dec())
		}
		p.buyer.Set(refund)
		p.seller.Set(proceeds)
		winner = p.seller
	default:
		return nil, fmt.Errorf("%w: unknown ruling outcome %d", ErrInvalidParams, r.Outcome)
	}
	if err := e.routeCommission(p, o, commission); err != nil {
		return nil, err
	}
	if e.arbitrationFeeBps > 0 && !winner.IsZero() {
		fee, overflow := new(uint256.Int).MulOverflow(winner, uint256.NewInt(uint64(e.arbitrationFeeBps)))
		if overflow {
			return nil, errAmountOverflow
		}
		fee.Div(fee, uint256.NewInt(10_000))
		winner.Sub(winner, fee)
		p.arbitrator.Set(fee)
	}
	return p, nil
}

type transfer struct {
	to     [20]byte
	amount *uint256.Int
	credit **big.Int
}

// pay executes every non-zero leg of p through rail and records the amounts
// in the settlement. Any failure aborts; the caller reverts state.
func (e *Engine) pay(rail ledger.Rail, o *Offer, proceedsTo [20]byte, p *payout, s *Settlement) error {
	feeTo := o.Arbitrator
	if !p.arbitrator.IsZero() {
		var err error
		if feeTo, err = e.feeRecipient(o.Arbitrator); err != nil {
			return err
		}
	}
	legs := []transfer{
		{to: proceedsTo, amount: p.seller, credit: &s.Seller},
		{to: o.Buyer, amount: p.buyer, credit: &s.Buyer},
		{to: o.Affiliate, amount: p.affiliate, credit: &s.Affiliate},
		{to: e.treasury, amount: p.treasury, credit: &s.Treasury},
		{to: BurnAddress, amount: p.burned, credit: &s.Burned},
		{to: feeTo, amount: p.arbitrator, credit: &s.Arbitrator},
	}
	for _, leg := range legs {
		if leg.amount.IsZero() {
			continue
		}
		amount := leg.amount.ToBig()
		if err := rail.Pay(leg.to, amount); err != nil {
			return err
		}
		*leg.credit = amount
	}
	return nil
}

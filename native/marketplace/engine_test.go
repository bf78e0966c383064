package marketplace_test

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/events"
	"bazaar/core/state"
	"bazaar/core/types"
	"bazaar/crypto"
	"bazaar/native/ledger"
	"bazaar/native/marketplace"
	"bazaar/native/token"
	"bazaar/storage"
)

var (
	seller     = [20]byte{0x01}
	buyer      = [20]byte{0x02}
	affiliate  = [20]byte{0x03}
	arbiter    = [20]byte{0x04}
	stranger   = [20]byte{0x05}
	treasury   = [20]byte{0x06}
	mintAuth   = [20]byte{0x07}
	contentRef = [32]byte{0xc0, 0xff, 0xee}
)

const (
	start    = int64(1_700_000_000)
	day      = int64(24 * 60 * 60)
	tokenSym = "OGN"
)

type harness struct {
	t       *testing.T
	mgr     *state.Manager
	tokens  *token.Ledger
	adapter *ledger.Adapter
	engine  *marketplace.Engine
	events  *events.Buffer
	now     int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	require.NoError(t, mgr.RegisterToken(tokenSym, "Origin Token", 18, mintAuth))

	h := &harness{t: t, mgr: mgr, now: start, events: events.NewBuffer()}
	h.tokens = token.NewLedger()
	h.tokens.SetState(mgr)
	h.adapter = ledger.NewAdapter(mgr, h.tokens, [20]byte(crypto.DeriveAddress([]byte("module"), []byte("marketplace"))))
	h.engine = marketplace.NewEngine()
	h.engine.SetState(mgr)
	h.engine.SetRails(h.adapter)
	h.engine.SetEmitter(h.events)
	h.engine.SetNowFunc(func() int64 { return h.now })

	for _, who := range [][20]byte{seller, buyer, affiliate, arbiter, stranger} {
		h.setNative(who, 1_000)
		require.NoError(t, h.tokens.Mint(tokenSym, mintAuth, who, big.NewInt(1_000)))
	}
	return h
}

func (h *harness) setNative(who [20]byte, amount int64) {
	h.t.Helper()
	require.NoError(h.t, h.mgr.PutAccount(who[:], &types.Account{Balance: big.NewInt(amount)}))
}

func (h *harness) native(who [20]byte) int64 {
	h.t.Helper()
	acc, err := h.mgr.GetAccount(who[:])
	require.NoError(h.t, err)
	return acc.Balance.Int64()
}

func (h *harness) tokenBalance(who [20]byte) int64 {
	h.t.Helper()
	bal, err := h.tokens.BalanceOf(tokenSym, who)
	require.NoError(h.t, err)
	return bal.Int64()
}

func (h *harness) listing(units uint64) *marketplace.Listing {
	h.t.Helper()
	l, err := h.engine.CreateListing(seller, marketplace.ListingParams{ContentRef: contentRef, Units: units})
	require.NoError(h.t, err)
	return l
}

func nativeOffer(listingID uint64) marketplace.OfferParams {
	return marketplace.OfferParams{
		ListingID:       listingID,
		ContentRef:      contentRef,
		FinalizesAt:     start + 10*day,
		Affiliate:       affiliate,
		Commission:      big.NewInt(2),
		Amount:          big.NewInt(100),
		Funding:         ledger.Funding{Kind: ledger.KindNative},
		Arbitrator:      arbiter,
		WithdrawTimeout: day,
		Attached:        big.NewInt(100),
	}
}

func tokenOffer(listingID uint64) marketplace.OfferParams {
	p := nativeOffer(listingID)
	p.Funding = ledger.Funding{Kind: ledger.KindToken, Token: tokenSym}
	p.Attached = nil
	return p
}

func (h *harness) acceptedOffer(params marketplace.OfferParams) *marketplace.Offer {
	h.t.Helper()
	offer, err := h.engine.MakeOffer(buyer, params)
	require.NoError(h.t, err)
	_, err = h.engine.AcceptOffer(seller, offer.ListingID, offer.ID)
	require.NoError(h.t, err)
	return offer
}

func TestDisputeRuledForBuyerRefundsEscrow(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)

	offer := h.acceptedOffer(nativeOffer(l.ID))
	require.Equal(t, int64(900), h.native(buyer))

	dispute, err := h.engine.Dispute(buyer, l.ID, offer.ID, "ipfs://evidence", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, marketplace.EvidenceDigest("ipfs://evidence"), dispute.EvidenceDigest)

	settlement, err := h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.NoError(t, err)
	require.Equal(t, marketplace.OfferFinalized, settlement.Status)
	require.Equal(t, int64(100), settlement.Buyer.Int64())

	require.Equal(t, int64(1_000), h.native(buyer), "buyer balance increases by 100 after the ruling")
	require.Equal(t, int64(1_000), h.native(seller))
	require.Equal(t, int64(1_000), h.native(affiliate))

	stored, err := h.engine.GetOffer(l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, marketplace.OfferFinalized, stored.Status)
	ruled, err := h.engine.GetDispute(dispute.ID)
	require.NoError(t, err)
	require.True(t, ruled.Ruled)
}

func TestSellerFinalizePaysProceedsAndCommission(t *testing.T) {
	for _, tc := range []struct {
		name    string
		params  func(uint64) marketplace.OfferParams
		balance func(*harness, [20]byte) int64
		approve bool
	}{
		{name: "native", params: nativeOffer, balance: (*harness).native},
		{name: "token", params: tokenOffer, balance: (*harness).tokenBalance, approve: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			l := h.listing(5)
			if tc.approve {
				require.NoError(t, h.tokens.Approve(tokenSym, buyer, h.adapter.Vault(), big.NewInt(100)))
			}
			offer := h.acceptedOffer(tc.params(l.ID))

			h.now = offer.FinalizesAt
			settlement, err := h.engine.Finalize(seller, l.ID, offer.ID)
			require.NoError(t, err)
			require.Equal(t, int64(98), settlement.Seller.Int64())
			require.Equal(t, int64(2), settlement.Affiliate.Int64())

			require.Equal(t, int64(1_098), tc.balance(h, seller))
			require.Equal(t, int64(1_002), tc.balance(h, affiliate))
			require.Equal(t, int64(900), tc.balance(h, buyer))
		})
	}
}

func TestSellerCannotFinalizeBeforeDeadline(t *testing.T) {
	h := newHarness(t)
	l := h.listing(1)
	offer := h.acceptedOffer(nativeOffer(l.ID))

	_, err := h.engine.Finalize(seller, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrTooEarly)

	// The buyer may confirm receipt at any time.
	_, err = h.engine.Finalize(buyer, l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_098), h.native(seller))
}

func TestTerminalOffersNeverPayTwice(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	offer := h.acceptedOffer(nativeOffer(l.ID))
	_, err := h.engine.Finalize(buyer, l.ID, offer.ID)
	require.NoError(t, err)

	before := [3]int64{h.native(seller), h.native(buyer), h.native(affiliate)}

	again, err := h.engine.Finalize(buyer, l.ID, offer.ID)
	require.NoError(t, err, "finalize on a finalized offer is a no-op")
	require.Zero(t, again.Total().Sign())

	_, err = h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrAlreadyFinalized)
	require.ErrorIs(t, err, marketplace.ErrInvalidState)

	_, err = h.engine.Dispute(buyer, l.ID, offer.ID, "late", big.NewInt(1))
	require.ErrorIs(t, err, marketplace.ErrInvalidState)

	require.Equal(t, before, [3]int64{h.native(seller), h.native(buyer), h.native(affiliate)})
}

func TestGiveRulingExactlyOnce(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	offer := h.acceptedOffer(nativeOffer(l.ID))
	dispute, err := h.engine.Dispute(seller, l.ID, offer.ID, "no payment", big.NewInt(0))
	require.NoError(t, err)

	_, err = h.engine.GiveRuling(stranger, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)
	_, err = h.engine.GiveRuling(buyer, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true})
	require.NoError(t, err)
	require.Equal(t, int64(1_098), h.native(seller))
	require.Equal(t, int64(1_002), h.native(affiliate))

	snapshot := [3]int64{h.native(seller), h.native(buyer), h.native(affiliate)}
	for i := 0; i < 3; i++ {
		_, err = h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
		require.ErrorIs(t, err, marketplace.ErrAlreadyRuled)
	}
	require.Equal(t, snapshot, [3]int64{h.native(seller), h.native(buyer), h.native(affiliate)})

	_, err = h.engine.GiveRuling(arbiter, 99, marketplace.Ruling{})
	require.ErrorIs(t, err, marketplace.ErrNotFound)
}

func TestSellerWinsWithRefundAndArbitrationFee(t *testing.T) {
	h := newHarness(t)
	h.engine.SetArbitrationFeeBps(500)
	l := h.listing(1)
	offer := h.acceptedOffer(nativeOffer(l.ID))
	dispute, err := h.engine.Dispute(buyer, l.ID, offer.ID, "damaged", big.NewInt(30))
	require.NoError(t, err)

	_, err = h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true, Refund: big.NewInt(99)})
	require.ErrorIs(t, err, marketplace.ErrInvalidParams, "refund cannot exceed the amount left after commission")

	settlement, err := h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true, Refund: big.NewInt(18)})
	require.NoError(t, err)
	// 100 - 2 commission - 18 refund = 80 to the seller side, 5% of which is the fee.
	require.Equal(t, int64(76), settlement.Seller.Int64())
	require.Equal(t, int64(4), settlement.Arbitrator.Int64())
	require.Equal(t, int64(18), settlement.Buyer.Int64())
	require.Equal(t, int64(2), settlement.Affiliate.Int64())
	require.Equal(t, int64(100), settlement.Total().Int64())
	require.Equal(t, int64(1_004), h.native(arbiter))
}

func TestRulingTransferFailureLeavesDisputeOpen(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	offer := h.acceptedOffer(nativeOffer(l.ID))
	dispute, err := h.engine.Dispute(buyer, l.ID, offer.ID, "", big.NewInt(50))
	require.NoError(t, err)

	before := [4]int64{h.native(seller), h.native(buyer), h.native(affiliate), h.native(h.adapter.Vault())}

	// First leg succeeds, second fails: nothing of the first may survive.
	h.engine.SetRails(&secondPayFails{inner: h.adapter})
	_, err = h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true, Refund: big.NewInt(50)})
	require.ErrorIs(t, err, marketplace.ErrLedgerTransferFailed)

	require.Equal(t, before, [4]int64{h.native(seller), h.native(buyer), h.native(affiliate), h.native(h.adapter.Vault())})
	stored, err := h.engine.GetOffer(l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, marketplace.OfferDisputed, stored.Status)
	open, err := h.engine.GetDispute(dispute.ID)
	require.NoError(t, err)
	require.False(t, open.Ruled)

	h.engine.SetRails(h.adapter)
	_, err = h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true, Refund: big.NewInt(50)})
	require.NoError(t, err, "the ruling can be retried after a failed transfer")
	require.Equal(t, int64(1_048), h.native(seller))
	require.Equal(t, int64(950), h.native(buyer))
}

// secondPayFails lets the first payout leg through and fails the next one.
type secondPayFails struct {
	inner marketplace.Rails
	pays  int
}

func (s *secondPayFails) Rail(fd ledger.Funding) (ledger.Rail, error) {
	rail, err := s.inner.Rail(fd)
	if err != nil {
		return nil, err
	}
	return &countingRail{Rail: rail, parent: s}, nil
}

type countingRail struct {
	ledger.Rail
	parent *secondPayFails
}

func (r *countingRail) Pay(to [20]byte, amount *big.Int) error {
	r.parent.pays++
	if r.parent.pays == 2 {
		return errors.Join(ledger.ErrTransferFailed, errors.New("token transfer returned false"))
	}
	return r.Rail.Pay(to, amount)
}

func TestWithdrawHonoursTimeout(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	offer, err := h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.NoError(t, err)

	_, err = h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrTooEarly)
	_, err = h.engine.WithdrawOffer(seller, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	h.now += day
	settlement, err := h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, marketplace.OfferWithdrawn, settlement.Status)
	require.Equal(t, int64(1_000), h.native(buyer))

	again, err := h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.NoError(t, err)
	require.Zero(t, again.Total().Sign())
	require.Equal(t, int64(1_000), h.native(buyer))

	_, err = h.engine.AcceptOffer(seller, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrInvalidState)
	_, err = h.engine.Finalize(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrInvalidState)
}

func TestWithdrawTimeoutCannotWrap(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)

	params := nativeOffer(l.ID)
	params.WithdrawTimeout = math.MaxInt64
	_, err := h.engine.MakeOffer(buyer, params)
	require.ErrorIs(t, err, marketplace.ErrInvalidParams)
	require.Equal(t, int64(1_000), h.native(buyer))

	params.WithdrawTimeout = math.MaxInt64 - start
	offer, err := h.engine.MakeOffer(buyer, params)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), offer.WithdrawableAt())
	_, err = h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrTooEarly)

	stale := &marketplace.Offer{CreatedAt: start, WithdrawTimeout: math.MaxInt64}
	require.Equal(t, int64(math.MaxInt64), stale.WithdrawableAt())
}

func TestRulingCommissionUnderSellerPolicy(t *testing.T) {
	t.Run("fee includes retained commission", func(t *testing.T) {
		h := newHarness(t)
		h.engine.SetArbitrationFeeBps(1_000)
		l := h.listing(1)
		params := nativeOffer(l.ID)
		params.Affiliate = [20]byte{}
		params.Commission = big.NewInt(20)
		offer := h.acceptedOffer(params)
		dispute, err := h.engine.Dispute(buyer, l.ID, offer.ID, "", big.NewInt(100))
		require.NoError(t, err)

		settlement, err := h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller, PayCommission: true})
		require.NoError(t, err)
		// 80 proceeds + 20 retained commission = 100, fee 10% of that.
		require.Equal(t, int64(90), settlement.Seller.Int64())
		require.Equal(t, int64(10), settlement.Arbitrator.Int64())
	})

	t.Run("losing seller keeps commission", func(t *testing.T) {
		h := newHarness(t)
		l := h.listing(1)
		params := nativeOffer(l.ID)
		params.Affiliate = [20]byte{}
		params.Commission = big.NewInt(20)
		offer := h.acceptedOffer(params)
		dispute, err := h.engine.Dispute(buyer, l.ID, offer.ID, "", big.NewInt(100))
		require.NoError(t, err)

		settlement, err := h.engine.GiveRuling(arbiter, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer, PayCommission: true})
		require.NoError(t, err)
		require.Equal(t, int64(80), settlement.Buyer.Int64())
		require.Equal(t, int64(20), settlement.Seller.Int64())
		require.Equal(t, int64(1_020), h.native(seller))
		require.Equal(t, int64(980), h.native(buyer))
	})
}

func TestWithdrawAfterAcceptIsInvalid(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	offer := h.acceptedOffer(nativeOffer(l.ID))
	h.now += 2 * day
	_, err := h.engine.WithdrawOffer(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrInvalidState)
	require.Equal(t, int64(900), h.native(buyer))
}

func TestDeclineRefundsBuyer(t *testing.T) {
	h := newHarness(t)
	l := h.listing(2)
	offer, err := h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.NoError(t, err)

	_, err = h.engine.DeclineOffer(buyer, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	settlement, err := h.engine.DeclineOffer(seller, l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), settlement.Buyer.Int64())
	require.Equal(t, int64(1_000), h.native(buyer))

	listing, err := h.engine.GetListing(l.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), listing.Units, "declined offers do not restore units")
}

func TestUnitsAndSoldOut(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)

	consumed := uint64(0)
	for _, units := range []uint64{2, 1, 2} {
		params := nativeOffer(l.ID)
		params.Units = units
		_, err := h.engine.MakeOffer(buyer, params)
		require.NoError(t, err)
		consumed += units
		listing, err := h.engine.GetListing(l.ID)
		require.NoError(t, err)
		require.Equal(t, 5-consumed, listing.Units)
	}

	balance := h.native(buyer)
	_, err := h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.ErrorIs(t, err, marketplace.ErrSoldOut)
	listing, err := h.engine.GetListing(l.ID)
	require.NoError(t, err)
	require.Zero(t, listing.Units)
	require.Equal(t, balance, h.native(buyer), "a sold out offer moves no funds")

	h2 := newHarness(t)
	l2 := h2.listing(3)
	params := nativeOffer(l2.ID)
	params.Units = 4
	_, err = h2.engine.MakeOffer(buyer, params)
	require.ErrorIs(t, err, marketplace.ErrSoldOut)
	listing, err = h2.engine.GetListing(l2.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), listing.Units)
}

func TestMakeOfferFundingFailures(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)

	params := nativeOffer(l.ID)
	params.Attached = big.NewInt(99)
	_, err := h.engine.MakeOffer(buyer, params)
	require.ErrorIs(t, err, marketplace.ErrUnderFunded)

	_, err = h.engine.MakeOffer(buyer, tokenOffer(l.ID))
	require.ErrorIs(t, err, marketplace.ErrUnderFunded, "missing approval is reported as under funded")

	h.setNative(buyer, 0)
	_, err = h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.ErrorIs(t, err, marketplace.ErrUnderFunded)
	require.ErrorIs(t, err, marketplace.ErrLedgerTransferFailed)

	_, err = h.engine.MakeOffer(buyer, marketplace.OfferParams{ListingID: 42})
	require.ErrorIs(t, err, marketplace.ErrListingNotFound)
	require.ErrorIs(t, err, marketplace.ErrNotFound)

	listing, err := h.engine.GetListing(l.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(5), listing.Units)

	// Once approved, token funding succeeds regardless of the native balance.
	require.NoError(t, h.tokens.Approve(tokenSym, buyer, h.adapter.Vault(), big.NewInt(100)))
	_, err = h.engine.MakeOffer(buyer, tokenOffer(l.ID))
	require.NoError(t, err)
	require.Equal(t, int64(900), h.tokenBalance(buyer))
}

func TestMakeOfferValidation(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	h.engine.SetMaxWithdrawTimeout(7 * day)

	cases := map[string]func(*marketplace.OfferParams){
		"zero amount":        func(p *marketplace.OfferParams) { p.Amount = big.NewInt(0) },
		"commission > total": func(p *marketplace.OfferParams) { p.Commission = big.NewInt(101) },
		"past deadline":      func(p *marketplace.OfferParams) { p.FinalizesAt = start - 1 },
		"long timeout":       func(p *marketplace.OfferParams) { p.WithdrawTimeout = 8 * day },
		"no arbitrator":      func(p *marketplace.OfferParams) { p.Arbitrator = [20]byte{} },
		"seller arbitrates":  func(p *marketplace.OfferParams) { p.Arbitrator = seller },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			params := nativeOffer(l.ID)
			mutate(&params)
			_, err := h.engine.MakeOffer(buyer, params)
			require.ErrorIs(t, err, marketplace.ErrInvalidParams)
		})
	}
}

func TestCommissionPolicyWithoutAffiliate(t *testing.T) {
	for _, tc := range []struct {
		policy   marketplace.CommissionPolicy
		seller   int64
		treasury int64
		burned   int64
	}{
		{policy: marketplace.PolicySeller, seller: 1_100},
		{policy: marketplace.PolicyTreasury, seller: 1_098, treasury: 2},
		{policy: marketplace.PolicyBurn, seller: 1_098, burned: 2},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			h := newHarness(t)
			h.engine.SetCommissionPolicy(tc.policy, treasury)
			l := h.listing(1)
			params := nativeOffer(l.ID)
			params.Affiliate = [20]byte{}
			offer := h.acceptedOffer(params)

			settlement, err := h.engine.Finalize(buyer, l.ID, offer.ID)
			require.NoError(t, err)
			require.Equal(t, tc.seller, h.native(seller))
			require.Equal(t, tc.treasury, settlement.Treasury.Int64())
			require.Equal(t, tc.burned, settlement.Burned.Int64())
			require.Equal(t, tc.burned, h.native(marketplace.BurnAddress))
			require.Equal(t, int64(1_000), h.native(affiliate))
		})
	}
}

func TestListingDepositLifecycle(t *testing.T) {
	h := newHarness(t)
	h.engine.SetListingDeposit(tokenSym, big.NewInt(10))

	_, err := h.engine.CreateListing(seller, marketplace.ListingParams{ContentRef: contentRef, Units: 2})
	require.ErrorIs(t, err, marketplace.ErrInsufficientAllowance)
	count, err := h.mgr.MarketListingCount()
	require.NoError(t, err)
	require.Zero(t, count, "a failed listing must not consume an id")

	require.NoError(t, h.tokens.Approve(tokenSym, seller, h.adapter.Vault(), big.NewInt(10)))
	owner := stranger
	l, err := h.engine.CreateListing(seller, marketplace.ListingParams{ContentRef: contentRef, Units: 2, Owner: &owner})
	require.NoError(t, err)
	require.Equal(t, seller, l.Seller)
	require.Equal(t, stranger, l.Owner)
	require.Equal(t, int64(990), h.tokenBalance(seller))

	params := nativeOffer(l.ID)
	params.Units = 2
	_, err = h.engine.MakeOffer(buyer, params)
	require.NoError(t, err)
	require.Equal(t, int64(1_010), h.tokenBalance(stranger), "deposit returns to the owner once sold out")

	retired, err := h.engine.GetListing(l.ID)
	require.NoError(t, err)
	require.True(t, retired.Retired())
	require.Zero(t, retired.Deposit.Sign())
}

func TestUpdateListing(t *testing.T) {
	h := newHarness(t)
	l := h.listing(1)
	_, err := h.engine.UpdateListing(buyer, l.ID, contentRef, 1)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	updated, err := h.engine.UpdateListing(seller, l.ID, [32]byte{0x01}, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(5), updated.Units)
	require.Equal(t, [32]byte{0x01}, updated.ContentRef)
}

func TestDisputeRules(t *testing.T) {
	h := newHarness(t)
	l := h.listing(5)
	created, err := h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.NoError(t, err)
	_, err = h.engine.Dispute(buyer, l.ID, created.ID, "", big.NewInt(0))
	require.ErrorIs(t, err, marketplace.ErrInvalidState, "only accepted offers can be disputed")

	offer := h.acceptedOffer(nativeOffer(l.ID))
	_, err = h.engine.Dispute(stranger, l.ID, offer.ID, "", big.NewInt(0))
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)
	_, err = h.engine.Dispute(buyer, l.ID, offer.ID, "", big.NewInt(101))
	require.ErrorIs(t, err, marketplace.ErrInvalidParams)

	_, err = h.engine.Dispute(buyer, l.ID, offer.ID, "", big.NewInt(100))
	require.NoError(t, err)
	_, err = h.engine.Dispute(seller, l.ID, offer.ID, "", big.NewInt(0))
	require.ErrorIs(t, err, marketplace.ErrInvalidState, "at most one dispute per offer")

	h.now = offer.FinalizesAt + day
	_, err = h.engine.Finalize(seller, l.ID, offer.ID)
	require.ErrorIs(t, err, marketplace.ErrInvalidState, "disputed funds only move through a ruling")
}

func TestEventsEmittedOnSuccessOnly(t *testing.T) {
	h := newHarness(t)
	l := h.listing(1)
	_, err := h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.NoError(t, err)

	var offerCreated *types.Event
	for _, evt := range h.events.Events() {
		if evt.Type == marketplace.EventTypeOfferCreated {
			offerCreated = evt
		}
	}
	require.NotNil(t, offerCreated)
	require.Equal(t, "0", offerCreated.Attributes["offerId"])

	h.events.Reset()
	_, err = h.engine.MakeOffer(buyer, nativeOffer(l.ID))
	require.ErrorIs(t, err, marketplace.ErrSoldOut)
	require.Zero(t, h.events.Len())
}

func TestProceedsGoToListingOwner(t *testing.T) {
	h := newHarness(t)
	owner := stranger
	l, err := h.engine.CreateListing(seller, marketplace.ListingParams{ContentRef: contentRef, Units: 1, Owner: &owner})
	require.NoError(t, err)
	offer := h.acceptedOffer(nativeOffer(l.ID))

	_, err = h.engine.Finalize(buyer, l.ID, offer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_098), h.native(stranger))
	require.Equal(t, int64(1_000), h.native(seller))
}

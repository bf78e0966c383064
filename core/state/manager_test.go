package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/types"
	"bazaar/native/ledger"
	"bazaar/native/marketplace"
	"bazaar/native/vesting"
	"bazaar/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestNamespaces(t *testing.T) {
	if got := string(MarketListingKey(42)); got != "market/listings/42" {
		t.Fatalf("unexpected listing key: %s", got)
	}
	if got := string(MarketOfferKey(3, 7)); got != "market/offers/3/7" {
		t.Fatalf("unexpected offer key: %s", got)
	}
	if got := string(TokenBalanceKey("usd", []byte{0xaa})); got != "tokens/balances/USD/aa" {
		t.Fatalf("unexpected balance key: %s", got)
	}
	if got := string(EventLogKey(9)); got != "events/9" {
		t.Fatalf("unexpected event key: %s", got)
	}
}

func TestSnapshotRevertRestoresOverlay(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := []byte{0x01}

	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(10)}))
	snap := mgr.Snapshot()
	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(99)}))
	require.NoError(t, mgr.PutAccount([]byte{0x02}, &types.Account{Balance: big.NewInt(1)}))

	mgr.RevertToSnapshot(snap)

	acc, err := mgr.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(10), acc.Balance.Int64())
	other, err := mgr.GetAccount([]byte{0x02})
	require.NoError(t, err)
	require.Zero(t, other.Balance.Sign())
}

func TestCommitPersistsAndRollbackDiscards(t *testing.T) {
	mgr, db := newTestManager(t)
	addr := []byte{0x01}

	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(5)}))
	require.Empty(t, db.Keys(), "writes must stay in the overlay until commit")
	require.NoError(t, mgr.Commit())
	require.Len(t, db.Keys(), 1)

	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(6)}))
	mgr.Rollback()

	fresh := NewManager(db)
	acc, err := fresh.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(5), acc.Balance.Int64())
}

func TestTokenRegistryAndAllowances(t *testing.T) {
	mgr, _ := newTestManager(t)
	owner, spender := []byte{0x01}, []byte{0x02}

	if err := mgr.SetTokenBalance(owner, "OGN", big.NewInt(1)); err == nil {
		t.Fatalf("expected unregistered token to be rejected")
	}
	require.NoError(t, mgr.RegisterToken("ogn", "Origin Token", 18, [20]byte{0x09}))
	require.Error(t, mgr.RegisterToken("OGN", "dup", 18, [20]byte{}))
	require.True(t, mgr.TokenExists("Ogn"))

	require.NoError(t, mgr.SetTokenBalance(owner, "OGN", big.NewInt(500)))
	require.NoError(t, mgr.SetTokenAllowance("OGN", owner, spender, big.NewInt(40)))

	bal, err := mgr.TokenBalance(owner, "ogn")
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Int64())
	allowance, err := mgr.TokenAllowance("OGN", owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(40), allowance.Int64())

	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []string{"OGN"}, list)
}

func TestMarketRecordsRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	id, err := mgr.MarketNextListingID()
	require.NoError(t, err)
	require.Zero(t, id)
	next, err := mgr.MarketNextListingID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	listing := &marketplace.Listing{ID: id, Seller: [20]byte{0x01}, Owner: [20]byte{0x02}, Units: 5, Deposit: big.NewInt(3), DepositToken: "OGN", CreatedAt: 1_700_000_000}
	require.NoError(t, mgr.MarketListingPut(listing))
	gotListing, ok, err := mgr.MarketListingGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing.Units, gotListing.Units)
	require.Equal(t, listing.CreatedAt, gotListing.CreatedAt)

	offer := &marketplace.Offer{
		ListingID:       id,
		ID:              0,
		Buyer:           [20]byte{0x03},
		Affiliate:       [20]byte{0x04},
		Arbitrator:      [20]byte{0x05},
		Units:           1,
		Amount:          big.NewInt(100),
		Commission:      big.NewInt(2),
		Funding:         ledger.Funding{Kind: ledger.KindToken, Token: "OGN"},
		CreatedAt:       10,
		FinalizesAt:     20,
		WithdrawTimeout: 5,
		Status:          marketplace.OfferAccepted,
	}
	require.NoError(t, mgr.MarketOfferPut(offer))
	gotOffer, ok, err := mgr.MarketOfferGet(id, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, marketplace.OfferAccepted, gotOffer.Status)
	require.Equal(t, ledger.KindToken, gotOffer.Funding.Kind)
	require.Equal(t, int64(2), gotOffer.Commission.Int64())

	_, ok, err = mgr.MarketOfferGet(id, 1)
	require.NoError(t, err)
	require.False(t, ok)

	dispute := &marketplace.Dispute{ID: 0, ListingID: id, Initiator: offer.Buyer, Refund: big.NewInt(100), Evidence: "ipfs://x", Ruled: true, Ruling: marketplace.Ruling{Outcome: marketplace.OutcomeBuyer, PayCommission: true}}
	require.NoError(t, mgr.MarketDisputePut(dispute))
	gotDispute, ok, err := mgr.MarketDisputeGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gotDispute.Ruled)
	require.Equal(t, marketplace.OutcomeBuyer, gotDispute.Ruling.Outcome)
	require.Zero(t, gotDispute.Ruling.Refund.Sign())
}

func TestVestingGrantRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	grant := &vesting.Grant{
		ID:          0,
		Beneficiary: [20]byte{0x07},
		Token:       "OGN",
		Cliff:       100,
		CliffAmount: big.NewInt(1200),
		Schedule:    []vesting.Release{{Time: 200, Amount: big.NewInt(100)}, {Time: 300, Amount: big.NewInt(100)}},
		Released:    big.NewInt(0),
		Revocable:   true,
	}
	require.NoError(t, mgr.VestingGrantPut(grant))
	got, ok, err := mgr.VestingGrantGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Schedule, 2)
	require.Equal(t, int64(300), got.Schedule[1].Time)
	require.True(t, got.Revocable)
}

func TestEventLogSequence(t *testing.T) {
	mgr, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		rec, err := mgr.AppendEvent(&types.Event{Type: "market.listing.created", Attributes: map[string]string{"b": "2", "a": "1"}}, 50)
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), rec.Sequence)
	}
	all, err := mgr.Events(0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1", all[0].Attributes["a"])

	tail, err := mgr.Events(2, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(3), tail[0].Sequence)

	page, err := mgr.Events(0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
}

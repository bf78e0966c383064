package arbitrator_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/state"
	"bazaar/core/types"
	"bazaar/native/arbitrator"
	"bazaar/native/common"
	"bazaar/native/ledger"
	"bazaar/native/marketplace"
	"bazaar/native/token"
	"bazaar/storage"
)

var (
	owner  = [20]byte{0x0a}
	seller = [20]byte{0x01}
	buyer  = [20]byte{0x02}
	vault  = [20]byte{0xee}
)

const now = int64(1_700_000_000)

type fixture struct {
	mgr     *state.Manager
	market  *marketplace.Engine
	engine  *arbitrator.Engine
	balance func([20]byte) int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	tokens := token.NewLedger()
	tokens.SetState(mgr)
	for _, who := range [][20]byte{seller, buyer} {
		require.NoError(t, mgr.PutAccount(who[:], &types.Account{Balance: big.NewInt(500)}))
	}
	market := marketplace.NewEngine()
	market.SetState(mgr)
	market.SetRails(ledger.NewAdapter(mgr, tokens, vault))
	market.SetNowFunc(func() int64 { return now })

	engine := arbitrator.NewEngine()
	engine.SetState(mgr)
	engine.SetExecutor(market)
	engine.SetNowFunc(func() int64 { return now + 60 })

	return &fixture{
		mgr:    mgr,
		market: market,
		engine: engine,
		balance: func(who [20]byte) int64 {
			acc, err := mgr.GetAccount(who[:])
			require.NoError(t, err)
			return acc.Balance.Int64()
		},
	}
}

// disputedOffer opens a dispute on an accepted offer bound to arbiter.
func (f *fixture) disputedOffer(t *testing.T, arbiter [20]byte) *marketplace.Dispute {
	t.Helper()
	listing, err := f.market.CreateListing(seller, marketplace.ListingParams{Units: 1})
	require.NoError(t, err)
	offer, err := f.market.MakeOffer(buyer, marketplace.OfferParams{
		ListingID:   listing.ID,
		FinalizesAt: now + 3600,
		Amount:      big.NewInt(100),
		Commission:  big.NewInt(0),
		Funding:     ledger.Funding{Kind: ledger.KindNative},
		Arbitrator:  arbiter,
		Attached:    big.NewInt(100),
	})
	require.NoError(t, err)
	_, err = f.market.AcceptOffer(seller, listing.ID, offer.ID)
	require.NoError(t, err)
	dispute, err := f.market.Dispute(buyer, listing.ID, offer.ID, "never shipped", big.NewInt(100))
	require.NoError(t, err)
	return dispute
}

func TestRegisterDerivesDistinctAddresses(t *testing.T) {
	f := newFixture(t)
	first, err := f.engine.Register(owner)
	require.NoError(t, err)
	second, err := f.engine.Register(owner)
	require.NoError(t, err)

	require.NotEqual(t, first.Address, second.Address)
	require.Equal(t, arbitrator.ContractAddress(owner, 0), first.Address)
	require.Equal(t, uint64(1), second.Nonce)

	got, err := f.engine.Get(first.Address)
	require.NoError(t, err)
	require.Equal(t, owner, got.Owner)

	_, err = f.engine.Get([20]byte{0x99})
	require.ErrorIs(t, err, arbitrator.ErrNotFound)
}

func TestOwnerRulingIsForwarded(t *testing.T) {
	f := newFixture(t)
	contract, err := f.engine.Register(owner)
	require.NoError(t, err)
	dispute := f.disputedOffer(t, contract.Address)

	_, err = f.engine.GiveRuling(buyer, contract.Address, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.ErrorIs(t, err, arbitrator.ErrUnauthorized)

	// The owner is not the bound arbitrator; only the contract is.
	_, err = f.market.GiveRuling(owner, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	settlement, err := f.engine.GiveRuling(owner, contract.Address, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.NoError(t, err)
	require.Equal(t, int64(100), settlement.Buyer.Int64())
	require.Equal(t, int64(500), f.balance(buyer))

	stored, err := f.engine.Get(contract.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.Rulings)
	require.Equal(t, dispute.ID, stored.LastDispute)
	require.Equal(t, now+60, stored.LastRulingAt)

	_, err = f.engine.GiveRuling(owner, contract.Address, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeSeller})
	require.ErrorIs(t, err, marketplace.ErrAlreadyRuled)
	stored, err = f.engine.Get(contract.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.Rulings, "a rejected ruling is not recorded")
}

func TestRulingForForeignDisputeRejected(t *testing.T) {
	f := newFixture(t)
	mine, err := f.engine.Register(owner)
	require.NoError(t, err)
	other, err := f.engine.Register([20]byte{0x0b})
	require.NoError(t, err)
	dispute := f.disputedOffer(t, other.Address)

	_, err = f.engine.GiveRuling(owner, mine.Address, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)
	require.Equal(t, int64(400), f.balance(buyer))
}

func TestPausedArbitratorModule(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(common.StaticPauses{common.ModuleArbitrator: true})
	_, err := f.engine.Register(owner)
	require.ErrorIs(t, err, common.ErrModulePaused)
}

func TestFeeRecipientResolvesContractOwner(t *testing.T) {
	f := newFixture(t)
	contract, err := f.engine.Register(owner)
	require.NoError(t, err)

	payee, err := f.engine.FeeRecipient(contract.Address)
	require.NoError(t, err)
	require.Equal(t, owner, payee)

	plain := [20]byte{0x33}
	payee, err = f.engine.FeeRecipient(plain)
	require.NoError(t, err)
	require.Equal(t, plain, payee, "plain addresses collect their own fees")

	f.market.SetFeeRecipients(f.engine)
	f.market.SetArbitrationFeeBps(1_000)
	dispute := f.disputedOffer(t, contract.Address)
	_, err = f.engine.GiveRuling(owner, contract.Address, dispute.ID, marketplace.Ruling{Outcome: marketplace.OutcomeBuyer})
	require.NoError(t, err)
	require.Equal(t, int64(10), f.balance(owner))
	require.Equal(t, int64(490), f.balance(buyer))
	require.Zero(t, f.balance(contract.Address))
}

package marketplace

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/native/common"
	"bazaar/native/ledger"
)

// BurnAddress receives commission that is burned under PolicyBurn.
var BurnAddress = [20]byte(gethcommon.HexToAddress("0x000000000000000000000000000000000000dEaD"))

// CommissionPolicy decides where commission goes when an offer names no
// affiliate.
type CommissionPolicy uint8

const (
	PolicySeller CommissionPolicy = iota
	PolicyTreasury
	PolicyBurn
)

func (p CommissionPolicy) String() string {
	switch p {
	case PolicySeller:
		return "seller"
	case PolicyTreasury:
		return "treasury"
	case PolicyBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// ParseCommissionPolicy accepts seller, treasury or burn. Empty means seller.
func ParseCommissionPolicy(s string) (CommissionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "seller":
		return PolicySeller, nil
	case "treasury":
		return PolicyTreasury, nil
	case "burn":
		return PolicyBurn, nil
	default:
		return 0, fmt.Errorf("marketplace: unknown commission policy %q", s)
	}
}

type engineState interface {
	MarketNextListingID() (uint64, error)
	MarketNextOfferID(listingID uint64) (uint64, error)
	MarketNextDisputeID() (uint64, error)
	MarketListingPut(*Listing) error
	MarketListingGet(id uint64) (*Listing, bool, error)
	MarketOfferPut(*Offer) error
	MarketOfferGet(listingID, offerID uint64) (*Offer, bool, error)
	MarketDisputePut(*Dispute) error
	MarketDisputeGet(id uint64) (*Dispute, bool, error)
	Snapshot() int
	RevertToSnapshot(int)
}

// Rails hands out the ledger rail for a funding tag.
type Rails interface {
	Rail(ledger.Funding) (ledger.Rail, error)
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine runs the listing, offer, dispute and ruling state machine. Every
// mutating call executes inside a state snapshot that is reverted on error.
type Engine struct {
	state              engineState
	rails              Rails
	emitter            events.Emitter
	pauses             common.PauseView
	nowFn              func() int64
	policy             CommissionPolicy
	treasury           [20]byte
	arbitrationFeeBps  uint32
	depositToken       string
	listingDeposit     *big.Int
	maxWithdrawTimeout int64
	feeRecipients      FeeRecipients
}

// FeeRecipients resolves which account collects the arbitration fee for the
// arbitrator bound to an offer.
type FeeRecipients interface {
	FeeRecipient(arbitrator [20]byte) ([20]byte, error)
}

// NewEngine creates a marketplace engine with a no-op emitter and the wall
// clock as time source.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
		listingDeposit: big.NewInt(0),
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetRails(rails Rails) { e.rails = rails }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetCommissionPolicy configures where unclaimed commission goes. The
// treasury address is only consulted under PolicyTreasury.
func (e *Engine) SetCommissionPolicy(policy CommissionPolicy, treasury [20]byte) {
	e.policy = policy
	e.treasury = treasury
}

// SetArbitrationFeeBps sets the share of the winning side's payout paid to
// the arbitrator on every ruling.
func (e *Engine) SetArbitrationFeeBps(bps uint32) { e.arbitrationFeeBps = bps }

// SetListingDeposit requires sellers to escrow amount of token per listing.
func (e *Engine) SetListingDeposit(token string, amount *big.Int) {
	e.depositToken = token
	e.listingDeposit = cloneBigInt(amount)
}

// SetMaxWithdrawTimeout bounds the withdraw timeout an offer may carry. Zero
// leaves it unbounded.
func (e *Engine) SetMaxWithdrawTimeout(seconds int64) { e.maxWithdrawTimeout = seconds }

// SetFeeRecipients routes arbitration fees through r. Without one the fee is
// paid to the arbitrator address itself.
func (e *Engine) SetFeeRecipients(r FeeRecipients) { e.feeRecipients = r }

func (e *Engine) feeRecipient(arbitrator [20]byte) ([20]byte, error) {
	if e.feeRecipients == nil {
		return arbitrator, nil
	}
	return e.feeRecipients.FeeRecipient(arbitrator)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.rails == nil {
		return errNilLedger
	}
	return common.Guard(e.pauses, common.ModuleMarketplace)
}

// atomic runs fn inside a state snapshot and reverts every write it made if
// it fails.
func (e *Engine) atomic(fn func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.MarketListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	return listing, nil
}

func (e *Engine) loadOffer(listingID, offerID uint64) (*Listing, *Offer, error) {
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, nil, err
	}
	offer, ok, err := e.state.MarketOfferGet(listingID, offerID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d/%d", ErrOfferNotFound, listingID, offerID)
	}
	return listing, offer, nil
}

func (e *Engine) loadDispute(id uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dispute, ok, err := e.state.MarketDisputeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDisputeNotFound, id)
	}
	return dispute, nil
}

// GetListing returns a copy of the stored listing.
func (e *Engine) GetListing(id uint64) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// GetOffer returns a copy of the stored offer.
func (e *Engine) GetOffer(listingID, offerID uint64) (*Offer, error) {
	_, offer, err := e.loadOffer(listingID, offerID)
	if err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// GetDispute returns a copy of the stored dispute.
func (e *Engine) GetDispute(id uint64) (*Dispute, error) {
	dispute, err := e.loadDispute(id)
	if err != nil {
		return nil, err
	}
	return dispute.Clone(), nil
}

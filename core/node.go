package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"bazaar/core/events"
	"bazaar/core/state"
	"bazaar/core/types"
	"bazaar/crypto"
	"bazaar/native/arbitrator"
	"bazaar/native/common"
	"bazaar/native/identity"
	"bazaar/native/ledger"
	"bazaar/native/marketplace"
	"bazaar/native/token"
	"bazaar/native/vesting"
	"bazaar/observability"
	"bazaar/storage"
)

var (
	// MarketplaceVault custodies offer escrow and listing deposits.
	MarketplaceVault = [20]byte(crypto.DeriveAddress([]byte("module"), []byte("marketplace")))
	// VestingVault custodies unreleased grants.
	VestingVault = [20]byte(crypto.DeriveAddress([]byte("module"), []byte("vesting")))

	errNilDatabase = errors.New("core: database must not be nil")
)

// Options configures the engines the node builds for every call.
type Options struct {
	CommissionPolicy   marketplace.CommissionPolicy
	Treasury           [20]byte
	ArbitrationFeeBps  uint32
	DepositToken       string
	ListingDeposit     *big.Int
	MaxWithdrawTimeout int64
	Pauses             common.PauseView
	Now                func() int64
	Logger             *slog.Logger
}

// Node serialises every state-mutating call over a single state manager.
// Each call either commits its writes and events together or leaves no trace.
type Node struct {
	db      storage.Database
	state   *state.Manager
	stateMu sync.RWMutex
	opts    Options
	sink    events.Emitter
	logger  *slog.Logger
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().Unix() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		db:     db,
		state:  state.NewManager(db),
		opts:   opts,
		sink:   events.NoopEmitter{},
		logger: logger.With("component", "node"),
	}, nil
}

// SetEventSink receives every committed event, after commit, in sequence
// order. Typical sinks are the indexer and the websocket hub.
func (n *Node) SetEventSink(sink events.Emitter) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if sink == nil {
		n.sink = events.NoopEmitter{}
		return
	}
	n.sink = sink
}

// StateManager exposes the underlying manager for genesis loading. Callers
// must not use it concurrently with node operations.
func (n *Node) StateManager() *state.Manager { return n.state }

// engines is the per-call set of modules sharing one manager and one event
// buffer.
type engines struct {
	buf      *events.Buffer
	tokens   *token.Ledger
	market   *marketplace.Engine
	arbs     *arbitrator.Engine
	vesting  *vesting.Engine
	identity *identity.Registry
}

func (n *Node) newEngines() *engines {
	buf := events.NewBuffer()

	tokens := token.NewLedger()
	tokens.SetState(n.state)
	tokens.SetEmitter(buf)

	market := marketplace.NewEngine()
	market.SetState(n.state)
	market.SetRails(ledger.NewAdapter(n.state, tokens, MarketplaceVault))
	market.SetEmitter(buf)
	market.SetNowFunc(n.opts.Now)
	market.SetPauses(n.opts.Pauses)
	market.SetCommissionPolicy(n.opts.CommissionPolicy, n.opts.Treasury)
	market.SetArbitrationFeeBps(n.opts.ArbitrationFeeBps)
	market.SetListingDeposit(n.opts.DepositToken, n.opts.ListingDeposit)
	market.SetMaxWithdrawTimeout(n.opts.MaxWithdrawTimeout)

	arbs := arbitrator.NewEngine()
	arbs.SetState(n.state)
	arbs.SetExecutor(market)
	arbs.SetEmitter(buf)
	arbs.SetNowFunc(n.opts.Now)
	arbs.SetPauses(n.opts.Pauses)
	market.SetFeeRecipients(arbs)

	vest := vesting.NewEngine()
	vest.SetState(n.state)
	vest.SetRails(ledger.NewAdapter(n.state, tokens, VestingVault))
	vest.SetEmitter(buf)
	vest.SetNowFunc(n.opts.Now)
	vest.SetPauses(n.opts.Pauses)

	registry := identity.NewRegistry()
	registry.SetState(n.state)
	registry.SetEmitter(buf)
	registry.SetNowFunc(n.opts.Now)
	registry.SetPauses(n.opts.Pauses)

	return &engines{
		buf:      buf,
		tokens:   tokens,
		market:   market,
		arbs:     arbs,
		vesting:  vest,
		identity: registry,
	}
}

// execute runs fn under the write lock. On success the caller's nonce is
// bumped, buffered events are appended to the event log, the overlay is
// committed and the events are forwarded to the sink. On failure everything
// is rolled back and the events are dropped.
func (n *Node) execute(op string, caller [20]byte, fn func(*engines) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	metrics := observability.NodeMetrics()
	e := n.newEngines()
	err := fn(e)
	if err == nil {
		err = n.commit(caller, e.buf)
	}
	metrics.RecordOperation(op, err)
	if err != nil {
		n.state.Rollback()
		n.logger.Warn("operation aborted", "op", op, "caller", crypto.Address(caller).String(), "error", err)
		return err
	}
	n.logger.Info("operation committed", "op", op, "caller", crypto.Address(caller).String(), "events", e.buf.Len())
	return nil
}

func (n *Node) commit(caller [20]byte, buf *events.Buffer) error {
	if caller != ([20]byte{}) {
		if _, err := n.state.IncrementNonce(caller[:]); err != nil {
			return err
		}
	}
	now := n.opts.Now()
	pending := buf.Events()
	records := make([]types.EventRecord, 0, len(pending))
	for _, evt := range pending {
		rec, err := n.state.AppendEvent(evt, now)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		records = append(records, rec)
	}
	if err := n.state.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	metrics := observability.NodeMetrics()
	for _, rec := range records {
		metrics.RecordEvent(rec.Type)
		if status, ok := settledStatus(rec.Type); ok {
			metrics.RecordSettlement(status)
		}
		n.sink.Emit(events.Recorded{Record: rec})
	}
	return nil
}

func settledStatus(eventType string) (string, bool) {
	switch eventType {
	case marketplace.EventTypeOfferFinalized:
		return marketplace.OfferFinalized.String(), true
	case marketplace.EventTypeOfferWithdrawn, marketplace.EventTypeOfferDeclined:
		return marketplace.OfferWithdrawn.String(), true
	default:
		return "", false
	}
}

// view runs fn under the read lock against a fresh engine set.
func (n *Node) view(fn func(*engines) error) error {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return fn(n.newEngines())
}

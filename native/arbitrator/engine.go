package arbitrator

import (
	"encoding/binary"
	"fmt"
	"time"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/crypto"
	"bazaar/native/common"
	"bazaar/native/marketplace"
)

type engineState interface {
	ArbitratorNextNonce(owner [20]byte) (uint64, error)
	ArbitratorPut(*Contract) error
	ArbitratorGet(addr [20]byte) (*Contract, bool, error)
	Snapshot() int
	RevertToSnapshot(int)
}

// RulingExecutor applies a ruling on behalf of an arbitrator address. The
// marketplace engine satisfies it.
type RulingExecutor interface {
	GiveRuling(caller [20]byte, disputeID uint64, ruling marketplace.Ruling) (*marketplace.Settlement, error)
}

type arbitratorEvent struct {
	evt *types.Event
}

func (e arbitratorEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e arbitratorEvent) Event() *types.Event { return e.evt }

// Engine manages arbitration contracts and relays their owners' rulings.
type Engine struct {
	state    engineState
	executor RulingExecutor
	emitter  events.Emitter
	pauses   common.PauseView
	nowFn    func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetExecutor(executor RulingExecutor) { e.executor = executor }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(arbitratorEvent{evt: evt})
}

// ContractAddress derives the address of owner's nonce-th contract.
func ContractAddress(owner [20]byte, nonce uint64) [20]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return [20]byte(crypto.DeriveAddress([]byte("arbitrator"), owner[:], buf[:]))
}

// Register creates a new arbitration contract controlled by owner.
func (e *Engine) Register(owner [20]byte) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleArbitrator); err != nil {
		return nil, err
	}
	if owner == ([20]byte{}) {
		return nil, fmt.Errorf("%w: zero owner", ErrUnauthorized)
	}
	snap := e.state.Snapshot()
	nonce, err := e.state.ArbitratorNextNonce(owner)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	contract := &Contract{
		Address:   ContractAddress(owner, nonce),
		Owner:     owner,
		Nonce:     nonce,
		CreatedAt: e.nowFn(),
	}
	if err := e.state.ArbitratorPut(contract); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(NewRegisteredEvent(contract))
	return contract.Clone(), nil
}

// Get returns the contract stored at addr.
func (e *Engine) Get(addr [20]byte) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	contract, ok, err := e.state.ArbitratorGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, crypto.Address(addr))
	}
	return contract, nil
}

// FeeRecipient pays arbitration fees earned by a contract to its owner.
// Addresses that are not contracts collect their own fees.
func (e *Engine) FeeRecipient(addr [20]byte) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	contract, ok, err := e.state.ArbitratorGet(addr)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return addr, nil
	}
	return contract.Owner, nil
}

// GiveRuling lets the contract owner rule on a dispute whose offer bound the
// contract as its arbitrator. The marketplace sees the contract address as
// the caller.
func (e *Engine) GiveRuling(caller, contractAddr [20]byte, disputeID uint64, ruling marketplace.Ruling) (*marketplace.Settlement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.executor == nil {
		return nil, errNilExecutor
	}
	if err := common.Guard(e.pauses, common.ModuleArbitrator); err != nil {
		return nil, err
	}
	contract, err := e.Get(contractAddr)
	if err != nil {
		return nil, err
	}
	if caller != contract.Owner {
		return nil, ErrUnauthorized
	}
	snap := e.state.Snapshot()
	settlement, err := e.executor.GiveRuling(contract.Address, disputeID, ruling)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	contract.Rulings++
	contract.LastDispute = disputeID
	contract.LastRulingAt = e.nowFn()
	if err := e.state.ArbitratorPut(contract); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(NewRulingRelayedEvent(contract, disputeID, ruling))
	return settlement, nil
}

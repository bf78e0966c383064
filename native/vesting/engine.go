package vesting

import (
	"fmt"
	"math/big"
	"time"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/native/common"
	"bazaar/native/ledger"
)

type engineState interface {
	VestingNextGrantID() (uint64, error)
	VestingGrantPut(*Grant) error
	VestingGrantGet(id uint64) (*Grant, bool, error)
	Snapshot() int
	RevertToSnapshot(int)
}

// Rails hands out the token rail grants are custodied on.
type Rails interface {
	Rail(ledger.Funding) (ledger.Rail, error)
}

type vestingEvent struct {
	evt *types.Event
}

func (e vestingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vestingEvent) Event() *types.Event { return e.evt }

// Revocation reports the value moved by Revoke.
type Revocation struct {
	Paid     *big.Int
	Returned *big.Int
}

// Engine holds vesting grants in custody and releases them on schedule.
type Engine struct {
	state   engineState
	rails   Rails
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetRails(rails Rails) { e.rails = rails }

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
	e.emitter.Emit(vestingEvent{evt: evt})
}

func (e *Engine) atomic(fn func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.rails == nil {
		return errNilTokens
	}
	if err := common.Guard(e.pauses, common.ModuleVesting); err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (e *Engine) rail(symbol string) (ledger.Rail, error) {
	return e.rails.Rail(ledger.Funding{Kind: ledger.KindToken, Token: symbol})
}

func (e *Engine) load(id uint64) (*Grant, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	grant, ok, err := e.state.VestingGrantGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return grant, nil
}

// CreateGrant validates the schedule and pulls the full grant from the
// caller, who must have approved the vesting vault for the total.
func (e *Engine) CreateGrant(caller [20]byte, params GrantParams) (*Grant, error) {
	var created *Grant
	err := e.atomic(func() error {
		if params.Beneficiary == ([20]byte{}) {
			return fmt.Errorf("%w: beneficiary required", ErrInvalidSchedule)
		}
		if err := validateSchedule(params.Cliff, params.CliffAmount, params.Schedule); err != nil {
			return err
		}
		id, err := e.state.VestingNextGrantID()
		if err != nil {
			return err
		}
		grant := &Grant{
			ID:          id,
			Owner:       caller,
			Beneficiary: params.Beneficiary,
			Token:       params.Token,
			Cliff:       params.Cliff,
			CliffAmount: cloneBigInt(params.CliffAmount),
			Schedule:    make([]Release, len(params.Schedule)),
			Released:    big.NewInt(0),
			Revocable:   params.Revocable,
			CreatedAt:   e.nowFn(),
		}
		for i, r := range params.Schedule {
			grant.Schedule[i] = Release{Time: r.Time, Amount: cloneBigInt(r.Amount)}
		}
		rail, err := e.rail(params.Token)
		if err != nil {
			return err
		}
		if err := rail.Collect(caller, grant.Total(), nil); err != nil {
			return fmt.Errorf("vesting: fund grant: %w", err)
		}
		if err := e.state.VestingGrantPut(grant); err != nil {
			return err
		}
		e.emit(NewGrantCreatedEvent(grant))
		created = grant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// Get returns a copy of the stored grant.
func (e *Engine) Get(id uint64) (*Grant, error) {
	grant, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return grant.Clone(), nil
}

// Vested reports the cumulative amount vested for grant id at the current
// time.
func (e *Engine) Vested(id uint64) (*big.Int, error) {
	grant, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return grant.VestedAt(e.nowFn()), nil
}

// Unvested reports what remains locked in grant id at the current time.
func (e *Engine) Unvested(id uint64) (*big.Int, error) {
	grant, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return grant.UnvestedAt(e.nowFn()), nil
}

// Vest pays the beneficiary everything vested but not yet released. Anyone
// may trigger it; when nothing is due it is a no-op.
func (e *Engine) Vest(id uint64) (*big.Int, error) {
	released := big.NewInt(0)
	err := e.atomic(func() error {
		grant, err := e.load(id)
		if err != nil {
			return err
		}
		due := grant.Releasable(e.nowFn())
		if due.Sign() == 0 {
			return nil
		}
		rail, err := e.rail(grant.Token)
		if err != nil {
			return err
		}
		if err := rail.Pay(grant.Beneficiary, due); err != nil {
			return err
		}
		grant.Released = new(big.Int).Add(grant.Released, due)
		if err := e.state.VestingGrantPut(grant); err != nil {
			return err
		}
		e.emit(NewReleasedEvent(grant, due))
		released = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// Revoke ends a revocable grant. The beneficiary receives what has vested
// but not been released, and the unvested remainder returns to the owner.
func (e *Engine) Revoke(caller [20]byte, id uint64) (*Revocation, error) {
	var result *Revocation
	err := e.atomic(func() error {
		grant, err := e.load(id)
		if err != nil {
			return err
		}
		if caller != grant.Owner {
			return fmt.Errorf("%w: only the grant owner may revoke", ErrUnauthorized)
		}
		if !grant.Revocable {
			return ErrNotRevocable
		}
		if grant.Revoked {
			return ErrRevoked
		}
		now := e.nowFn()
		paid := grant.Releasable(now)
		returned := grant.UnvestedAt(now)
		rail, err := e.rail(grant.Token)
		if err != nil {
			return err
		}
		if paid.Sign() > 0 {
			if err := rail.Pay(grant.Beneficiary, paid); err != nil {
				return err
			}
		}
		if returned.Sign() > 0 {
			if err := rail.Pay(grant.Owner, returned); err != nil {
				return err
			}
		}
		grant.Released = new(big.Int).Add(grant.Released, paid)
		grant.Revoked = true
		grant.RevokedAt = now
		if err := e.state.VestingGrantPut(grant); err != nil {
			return err
		}
		result = &Revocation{Paid: paid, Returned: returned}
		e.emit(NewRevokedEvent(grant, result))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

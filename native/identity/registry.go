package identity

import (
	"fmt"
	"time"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/crypto"
	"bazaar/native/common"
)

const EventTypeUserRegistered = "identity.user.registered"

type registryState interface {
	IdentityPut(*Identity) error
	IdentityGet(account [20]byte) (*Identity, bool, error)
	IdentityAccountByProxy(proxy [20]byte) ([20]byte, bool, error)
}

type identityEvent struct {
	evt *types.Event
}

func (e identityEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e identityEvent) Event() *types.Event { return e.evt }

// Registry maps accounts to the identity proxy that acts for them.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (r *Registry) SetState(state registryState) { r.state = state }

func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// ProxyAddress derives the identity proxy of account.
func ProxyAddress(account [20]byte) [20]byte {
	return [20]byte(crypto.DeriveAddress([]byte("identity"), account[:]))
}

// RegisterUser records account in the registry and returns its proxy.
func (r *Registry) RegisterUser(account [20]byte) (*Identity, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(r.pauses, common.ModuleIdentity); err != nil {
		return nil, err
	}
	if _, ok, err := r.state.IdentityGet(account); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, crypto.Address(account))
	}
	id := &Identity{Account: account, Proxy: ProxyAddress(account), RegisteredAt: r.nowFn()}
	if err := r.state.IdentityPut(id); err != nil {
		return nil, err
	}
	r.emitter.Emit(identityEvent{evt: &types.Event{
		Type: EventTypeUserRegistered,
		Attributes: map[string]string{
			"account": crypto.Address(account).String(),
			"proxy":   crypto.Address(id.Proxy).String(),
		},
	}})
	return id, nil
}

// IdentityOf returns the identity registered for account.
func (r *Registry) IdentityOf(account [20]byte) (*Identity, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	id, ok, err := r.state.IdentityGet(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, crypto.Address(account))
	}
	return id, nil
}

// ProxyFor resolves the proxy account must act through.
func (r *Registry) ProxyFor(account [20]byte) ([20]byte, error) {
	id, err := r.IdentityOf(account)
	if err != nil {
		return [20]byte{}, err
	}
	return id.Proxy, nil
}

// AccountOf resolves a proxy back to the account that owns it.
func (r *Registry) AccountOf(proxy [20]byte) ([20]byte, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, errNilState
	}
	account, ok, err := r.state.IdentityAccountByProxy(proxy)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: proxy %s", ErrNotRegistered, crypto.Address(proxy))
	}
	return account, nil
}

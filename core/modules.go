package core

import (
	"math/big"

	"bazaar/core/types"
	"bazaar/native/arbitrator"
	"bazaar/native/identity"
	"bazaar/native/marketplace"
	"bazaar/native/vesting"
)

func (n *Node) RegisterArbitrator(owner [20]byte) (*arbitrator.Contract, error) {
	var out *arbitrator.Contract
	err := n.execute("arbitrator_register", owner, func(e *engines) error {
		var err error
		out, err = e.arbs.Register(owner)
		return err
	})
	return out, err
}

// ArbitratorGiveRuling relays a contract owner's ruling to the marketplace.
func (n *Node) ArbitratorGiveRuling(caller, contract [20]byte, disputeID uint64, ruling marketplace.Ruling) (*marketplace.Settlement, error) {
	var out *marketplace.Settlement
	err := n.execute("arbitrator_giveRuling", caller, func(e *engines) error {
		var err error
		out, err = e.arbs.GiveRuling(caller, contract, disputeID, ruling)
		return err
	})
	return out, err
}

func (n *Node) GetArbitrator(contract [20]byte) (*arbitrator.Contract, error) {
	var out *arbitrator.Contract
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.arbs.Get(contract)
		return err
	})
	return out, err
}

func (n *Node) CreateGrant(caller [20]byte, params vesting.GrantParams) (*vesting.Grant, error) {
	var out *vesting.Grant
	err := n.execute("vesting_createGrant", caller, func(e *engines) error {
		var err error
		out, err = e.vesting.CreateGrant(caller, params)
		return err
	})
	return out, err
}

// GrantStatus is a grant with its vested and unvested amounts at query time.
type GrantStatus struct {
	Grant    *vesting.Grant
	Vested   *big.Int
	Unvested *big.Int
}

func (n *Node) GetGrant(id uint64) (*GrantStatus, error) {
	var out *GrantStatus
	err := n.view(func(e *engines) error {
		grant, err := e.vesting.Get(id)
		if err != nil {
			return err
		}
		now := n.opts.Now()
		out = &GrantStatus{Grant: grant, Vested: grant.VestedAt(now), Unvested: grant.UnvestedAt(now)}
		return nil
	})
	return out, err
}

func (n *Node) Vest(caller [20]byte, id uint64) (*big.Int, error) {
	var out *big.Int
	err := n.execute("vesting_vest", caller, func(e *engines) error {
		var err error
		out, err = e.vesting.Vest(id)
		return err
	})
	return out, err
}

func (n *Node) RevokeGrant(caller [20]byte, id uint64) (*vesting.Revocation, error) {
	var out *vesting.Revocation
	err := n.execute("vesting_revoke", caller, func(e *engines) error {
		var err error
		out, err = e.vesting.Revoke(caller, id)
		return err
	})
	return out, err
}

func (n *Node) TokenBalance(symbol string, addr [20]byte) (*big.Int, error) {
	var out *big.Int
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.tokens.BalanceOf(symbol, addr)
		return err
	})
	return out, err
}

func (n *Node) TokenAllowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	var out *big.Int
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.tokens.Allowance(symbol, owner, spender)
		return err
	})
	return out, err
}

func (n *Node) TokenApprove(owner [20]byte, symbol string, spender [20]byte, amount *big.Int) error {
	return n.execute("token_approve", owner, func(e *engines) error {
		return e.tokens.Approve(symbol, owner, spender, amount)
	})
}

func (n *Node) TokenTransfer(from [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	return n.execute("token_transfer", from, func(e *engines) error {
		return e.tokens.Transfer(symbol, from, to, amount)
	})
}

func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.state.GetAccount(addr[:])
}

func (n *Node) RegisterUser(account [20]byte) (*identity.Identity, error) {
	var out *identity.Identity
	err := n.execute("identity_register", account, func(e *engines) error {
		var err error
		out, err = e.identity.RegisterUser(account)
		return err
	})
	return out, err
}

func (n *Node) IdentityOf(account [20]byte) (*identity.Identity, error) {
	var out *identity.Identity
	err := n.view(func(e *engines) error {
		var err error
		out, err = e.identity.IdentityOf(account)
		return err
	})
	return out, err
}

// Events returns committed events with a sequence above after.
func (n *Node) Events(after uint64, limit int) ([]types.EventRecord, error) {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.state.Events(after, limit)
}

package genesis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bazaar/core/state"
	"bazaar/core/types"
	"bazaar/native/arbitrator"
	"bazaar/native/identity"
	"bazaar/native/token"
)

// ErrAlreadyApplied is returned when the database already holds a genesis.
var ErrAlreadyApplied = errors.New("genesis: already applied")

// Result lists what genesis created beyond balances.
type Result struct {
	Arbitrators []*arbitrator.Contract
	Users       []*identity.Identity
}

// Apply writes the genesis document into manager and commits it. Tokens,
// allocations, arbitrators and users are applied in sorted order so the
// resulting state is deterministic.
func Apply(spec *Spec, manager *state.Manager) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return nil, fmt.Errorf("state manager must not be nil")
	}
	applied, err := Applied(manager)
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, ErrAlreadyApplied
	}
	res, err := apply(spec, manager)
	if err != nil {
		manager.Rollback()
		return nil, err
	}
	if err := manager.Commit(); err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	return res, nil
}

// Applied reports whether a genesis document has been committed.
func Applied(manager *state.Manager) (bool, error) {
	var created uint64
	return manager.KVGet(state.GenesisMarkerKey(), &created)
}

func apply(spec *Spec, manager *state.Manager) (*Result, error) {
	created := spec.GenesisTimestamp().Unix()
	nowFn := func() int64 { return created }
	if err := manager.KVPut(state.GenesisMarkerKey(), uint64(created)); err != nil {
		return nil, err
	}

	// 1) Tokens (sorted)
	tokens := append([]TokenSpec(nil), spec.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		return strings.ToUpper(tokens[i].Symbol) < strings.ToUpper(tokens[j].Symbol)
	})
	authorities := make(map[string][20]byte, len(tokens))
	for _, t := range tokens {
		authority, err := ParseAccount(t.MintAuthority)
		if err != nil {
			return nil, err
		}
		if err := manager.RegisterToken(t.Symbol, t.Name, t.Decimals, authority); err != nil {
			return nil, fmt.Errorf("register token %q: %w", t.Symbol, err)
		}
		authorities[token.Normalize(t.Symbol)] = authority
	}

	// 2) Allocations (outer: addresses sorted; inner: assets sorted)
	ledger := token.NewLedger()
	ledger.SetState(manager)
	addrs := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, raw := range addrs {
		addr, err := ParseAccount(raw)
		if err != nil {
			return nil, err
		}
		assets := make([]string, 0, len(spec.Alloc[raw]))
		for asset := range spec.Alloc[raw] {
			assets = append(assets, asset)
		}
		sort.Strings(assets)
		for _, asset := range assets {
			amount, err := parseAmount(spec.Alloc[raw][asset])
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(asset, NativeAsset) {
				acc, err := manager.GetAccount(addr[:])
				if err != nil {
					return nil, err
				}
				acc.Balance.Add(acc.Balance, amount)
				if err := manager.PutAccount(addr[:], &types.Account{Nonce: acc.Nonce, Balance: acc.Balance}); err != nil {
					return nil, err
				}
				continue
			}
			symbol := token.Normalize(asset)
			if err := ledger.Mint(symbol, authorities[symbol], addr, amount); err != nil {
				return nil, fmt.Errorf("alloc %s %s: %w", raw, symbol, err)
			}
		}
	}

	res := &Result{}

	// 3) Arbitration contracts
	arbs := arbitrator.NewEngine()
	arbs.SetState(manager)
	arbs.SetNowFunc(nowFn)
	for _, arb := range spec.Arbitrators {
		owner, err := ParseAccount(arb.Owner)
		if err != nil {
			return nil, err
		}
		count := arb.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			contract, err := arbs.Register(owner)
			if err != nil {
				return nil, fmt.Errorf("arbitrator %s: %w", arb.Owner, err)
			}
			res.Arbitrators = append(res.Arbitrators, contract)
		}
	}

	// 4) Registered users
	registry := identity.NewRegistry()
	registry.SetState(manager)
	registry.SetNowFunc(nowFn)
	users := append([]string(nil), spec.Users...)
	sort.Strings(users)
	for _, raw := range users {
		addr, err := ParseAccount(raw)
		if err != nil {
			return nil, err
		}
		id, err := registry.RegisterUser(addr)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", raw, err)
		}
		res.Users = append(res.Users, id)
	}
	return res, nil
}

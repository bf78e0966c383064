package state

import (
	"fmt"
	"math/big"

	"bazaar/native/vesting"
)

type storedRelease struct {
	Time   uint64
	Amount *big.Int
}

type storedGrant struct {
	ID          uint64
	Owner       [20]byte
	Beneficiary [20]byte
	Token       string
	Cliff       uint64
	CliffAmount *big.Int
	Schedule    []storedRelease
	Released    *big.Int
	Revocable   bool
	Revoked     bool
	RevokedAt   uint64
	CreatedAt   uint64
}

// VestingNextGrantID allocates the next grant identifier.
func (m *Manager) VestingNextGrantID() (uint64, error) {
	return m.nextSequence(VestingSequenceKey())
}

func (m *Manager) VestingGrantPut(g *vesting.Grant) error {
	if g == nil {
		return fmt.Errorf("vesting: nil grant")
	}
	record := &storedGrant{
		ID:          g.ID,
		Owner:       g.Owner,
		Beneficiary: g.Beneficiary,
		Token:       g.Token,
		Cliff:       uint64(g.Cliff),
		CliffAmount: amountOf(g.CliffAmount),
		Schedule:    make([]storedRelease, len(g.Schedule)),
		Released:    amountOf(g.Released),
		Revocable:   g.Revocable,
		Revoked:     g.Revoked,
		RevokedAt:   uint64(g.RevokedAt),
		CreatedAt:   uint64(g.CreatedAt),
	}
	for i, r := range g.Schedule {
		record.Schedule[i] = storedRelease{Time: uint64(r.Time), Amount: amountOf(r.Amount)}
	}
	return m.KVPut(VestingGrantKey(g.ID), record)
}

func (m *Manager) VestingGrantGet(id uint64) (*vesting.Grant, bool, error) {
	var record storedGrant
	ok, err := m.KVGet(VestingGrantKey(id), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	grant := &vesting.Grant{
		ID:          record.ID,
		Owner:       record.Owner,
		Beneficiary: record.Beneficiary,
		Token:       record.Token,
		Cliff:       int64(record.Cliff),
		CliffAmount: amountOf(record.CliffAmount),
		Schedule:    make([]vesting.Release, len(record.Schedule)),
		Released:    amountOf(record.Released),
		Revocable:   record.Revocable,
		Revoked:     record.Revoked,
		RevokedAt:   int64(record.RevokedAt),
		CreatedAt:   int64(record.CreatedAt),
	}
	for i, r := range record.Schedule {
		grant.Schedule[i] = vesting.Release{Time: int64(r.Time), Amount: amountOf(r.Amount)}
	}
	return grant, true, nil
}

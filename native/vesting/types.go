package vesting

import (
	"errors"
	"math/big"
)

var (
	ErrNotFound         = errors.New("vesting: grant not found")
	ErrUnauthorized     = errors.New("vesting: unauthorized")
	ErrUnsortedSchedule = errors.New("vesting: schedule timestamps must be strictly increasing after the cliff")
	ErrInvalidSchedule  = errors.New("vesting: invalid schedule")
	ErrNotRevocable     = errors.New("vesting: grant is not revocable")
	ErrRevoked          = errors.New("vesting: grant revoked")
	ErrOverflow         = errors.New("vesting: amount overflow")

	errNilState  = errors.New("vesting engine: state not configured")
	errNilTokens = errors.New("vesting engine: token ledger not configured")
)

// Release is one incremental amount that vests at Time.
type Release struct {
	Time   int64
	Amount *big.Int
}

// Grant releases Token to Beneficiary: CliffAmount at Cliff, then each
// Release in order.
type Grant struct {
	ID          uint64
	Owner       [20]byte
	Beneficiary [20]byte
	Token       string
	Cliff       int64
	CliffAmount *big.Int
	Schedule    []Release
	Released    *big.Int
	Revocable   bool
	Revoked     bool
	RevokedAt   int64
	CreatedAt   int64
}

func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	out := *g
	out.CliffAmount = cloneBigInt(g.CliffAmount)
	out.Released = cloneBigInt(g.Released)
	out.Schedule = make([]Release, len(g.Schedule))
	for i, r := range g.Schedule {
		out.Schedule[i] = Release{Time: r.Time, Amount: cloneBigInt(r.Amount)}
	}
	return &out
}

// GrantParams describes a new grant.
type GrantParams struct {
	Beneficiary [20]byte
	Token       string
	Cliff       int64
	CliffAmount *big.Int
	Schedule    []Release
	Revocable   bool
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

package vesting

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidSchedule)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// validateSchedule checks that every release lands strictly after the cliff
// and strictly after the previous release, and that the total fits 256 bits.
func validateSchedule(cliff int64, cliffAmount *big.Int, schedule []Release) error {
	if cliff <= 0 {
		return fmt.Errorf("%w: cliff must be set", ErrInvalidSchedule)
	}
	total, err := toU256(cliffAmount)
	if err != nil {
		return err
	}
	prev := cliff
	for i, r := range schedule {
		if r.Time <= prev {
			return fmt.Errorf("%w: release %d at %d follows %d", ErrUnsortedSchedule, i, r.Time, prev)
		}
		amount, err := toU256(r.Amount)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: release %d has no amount", ErrInvalidSchedule, i)
		}
		if _, overflow := total.AddOverflow(total, amount); overflow {
			return ErrOverflow
		}
		prev = r.Time
	}
	if total.IsZero() {
		return fmt.Errorf("%w: grant releases nothing", ErrInvalidSchedule)
	}
	return nil
}

// Total is the cliff amount plus every scheduled release.
func (g *Grant) Total() *big.Int {
	return g.vestedUntil(maxTime)
}

const maxTime = int64(^uint64(0) >> 1)

// VestedAt reports the cumulative amount vested at t. Nothing vests before
// the cliff; a revoked grant stops accruing at its revocation time.
func (g *Grant) VestedAt(t int64) *big.Int {
	if g.Revoked && t > g.RevokedAt {
		t = g.RevokedAt
	}
	return g.vestedUntil(t)
}

func (g *Grant) vestedUntil(t int64) *big.Int {
	if t < g.Cliff {
		return big.NewInt(0)
	}
	vested := cloneBigInt(g.CliffAmount)
	for _, r := range g.Schedule {
		if r.Time > t {
			break
		}
		vested.Add(vested, r.Amount)
	}
	return vested
}

// UnvestedAt is the part of the grant that has not vested at t.
func (g *Grant) UnvestedAt(t int64) *big.Int {
	return new(big.Int).Sub(g.Total(), g.VestedAt(t))
}

// Releasable is what Vest would pay out at t.
func (g *Grant) Releasable(t int64) *big.Int {
	out := new(big.Int).Sub(g.VestedAt(t), cloneBigInt(g.Released))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

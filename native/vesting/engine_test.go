package vesting_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bazaar/core/state"
	"bazaar/native/ledger"
	"bazaar/native/token"
	"bazaar/native/vesting"
	"bazaar/storage"
)

var (
	owner       = [20]byte{0x01}
	beneficiary = [20]byte{0x02}
	authority   = [20]byte{0xaa}
	vault       = [20]byte{0xee}
)

const (
	start = int64(1_700_000_000)
	day   = int64(86_400)
	year  = 365 * day
	month = 30 * day
)

type fixture struct {
	tokens *token.Ledger
	engine *vesting.Engine
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	require.NoError(t, mgr.RegisterToken("OGN", "Origin Token", 18, authority))
	f := &fixture{tokens: token.NewLedger(), engine: vesting.NewEngine(), now: start}
	f.tokens.SetState(mgr)
	require.NoError(t, f.tokens.Mint("OGN", authority, owner, big.NewInt(100_000)))
	f.engine.SetState(mgr)
	f.engine.SetRails(ledger.NewAdapter(mgr, f.tokens, vault))
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) balance(t *testing.T, who [20]byte) int64 {
	t.Helper()
	bal, err := f.tokens.BalanceOf("OGN", who)
	require.NoError(t, err)
	return bal.Int64()
}

// fourYearParams is a one year cliff of 1200 followed by 36 monthly releases
// of 100.
func fourYearParams(revocable bool) vesting.GrantParams {
	cliff := start + year
	schedule := make([]vesting.Release, 36)
	for i := range schedule {
		schedule[i] = vesting.Release{Time: cliff + int64(i+1)*month, Amount: big.NewInt(100)}
	}
	return vesting.GrantParams{
		Beneficiary: beneficiary,
		Token:       "OGN",
		Cliff:       cliff,
		CliffAmount: big.NewInt(1200),
		Schedule:    schedule,
		Revocable:   revocable,
	}
}

func (f *fixture) grant(t *testing.T, params vesting.GrantParams) *vesting.Grant {
	t.Helper()
	require.NoError(t, f.tokens.Approve("OGN", owner, vault, big.NewInt(4800)))
	grant, err := f.engine.CreateGrant(owner, params)
	require.NoError(t, err)
	return grant
}

func TestGrantTotalIsPulledFromOwner(t *testing.T) {
	f := newFixture(t)
	grant := f.grant(t, fourYearParams(false))
	require.Equal(t, int64(4800), grant.Total().Int64())
	require.Equal(t, int64(100_000-4800), f.balance(t, owner))
	require.Equal(t, int64(4800), f.balance(t, vault))
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	f := newFixture(t)
	grant := f.grant(t, fourYearParams(false))

	got, err := f.engine.Get(grant.ID)
	require.NoError(t, err)
	got.Released.SetInt64(4800)
	got.Schedule[0].Amount.SetInt64(0)

	again, err := f.engine.Get(grant.ID)
	require.NoError(t, err)
	require.Zero(t, again.Released.Sign())
	require.Equal(t, int64(4800), again.Total().Int64())
}

func TestCreateGrantWithoutApproval(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateGrant(owner, fourYearParams(false))
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	_, err = f.engine.Get(0)
	require.ErrorIs(t, err, vesting.ErrNotFound)
}

func TestVestingSchedule(t *testing.T) {
	f := newFixture(t)
	params := fourYearParams(false)
	grant := f.grant(t, params)
	firstRelease := params.Schedule[0].Time

	cases := []struct {
		at   int64
		want int64
	}{
		{at: params.Cliff - 5, want: 0},
		{at: params.Cliff, want: 1200},
		{at: firstRelease - 5, want: 1200},
		{at: firstRelease, want: 1300},
		{at: params.Schedule[35].Time, want: 4800},
	}
	for _, tc := range cases {
		f.now = tc.at
		vested, err := f.engine.Vested(grant.ID)
		require.NoError(t, err)
		require.Equal(t, tc.want, vested.Int64(), "vested at %d", tc.at)
		unvested, err := f.engine.Unvested(grant.ID)
		require.NoError(t, err)
		require.Equal(t, 4800-tc.want, unvested.Int64())
	}
}

func TestVestIsIdempotentAfterFullRelease(t *testing.T) {
	f := newFixture(t)
	params := fourYearParams(false)
	grant := f.grant(t, params)

	f.now = params.Cliff - 5
	released, err := f.engine.Vest(grant.ID)
	require.NoError(t, err)
	require.Zero(t, released.Sign(), "nothing vests before the cliff")

	f.now = params.Cliff
	released, err = f.engine.Vest(grant.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1200), released.Int64())
	require.Equal(t, int64(1200), f.balance(t, beneficiary))

	f.now = params.Schedule[35].Time
	_, err = f.engine.Vest(grant.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4800), f.balance(t, beneficiary))

	f.now += year
	released, err = f.engine.Vest(grant.ID)
	require.NoError(t, err)
	require.Zero(t, released.Sign())
	require.Equal(t, int64(4800), f.balance(t, beneficiary))
	require.Zero(t, f.balance(t, vault))

	stored, err := f.engine.Get(grant.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4800), stored.Released.Int64())
}

func TestUnsortedScheduleRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Approve("OGN", owner, vault, big.NewInt(4800)))

	params := fourYearParams(false)
	params.Schedule[3], params.Schedule[4] = params.Schedule[4], params.Schedule[3]
	_, err := f.engine.CreateGrant(owner, params)
	require.ErrorIs(t, err, vesting.ErrUnsortedSchedule)

	params = fourYearParams(false)
	params.Schedule[0].Time = params.Cliff
	_, err = f.engine.CreateGrant(owner, params)
	require.ErrorIs(t, err, vesting.ErrUnsortedSchedule, "releases must follow the cliff")

	params = fourYearParams(false)
	params.Schedule[1].Time = params.Schedule[0].Time
	_, err = f.engine.CreateGrant(owner, params)
	require.ErrorIs(t, err, vesting.ErrUnsortedSchedule)

	require.Equal(t, int64(100_000), f.balance(t, owner))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	params := fourYearParams(true)
	grant := f.grant(t, params)

	f.now = params.Schedule[1].Time
	_, err := f.engine.Revoke(beneficiary, grant.ID)
	require.ErrorIs(t, err, vesting.ErrUnauthorized)

	rev, err := f.engine.Revoke(owner, grant.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1400), rev.Paid.Int64())
	require.Equal(t, int64(3400), rev.Returned.Int64())
	require.Equal(t, int64(1400), f.balance(t, beneficiary))
	require.Equal(t, int64(100_000-1400), f.balance(t, owner))

	_, err = f.engine.Revoke(owner, grant.ID)
	require.ErrorIs(t, err, vesting.ErrRevoked)

	f.now += 10 * year
	released, err := f.engine.Vest(grant.ID)
	require.NoError(t, err)
	require.Zero(t, released.Sign(), "revoked grants stop accruing")
}

func TestRevokeRequiresRevocableGrant(t *testing.T) {
	f := newFixture(t)
	grant := f.grant(t, fourYearParams(false))
	_, err := f.engine.Revoke(owner, grant.ID)
	require.ErrorIs(t, err, vesting.ErrNotRevocable)
}

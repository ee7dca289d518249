package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

func TestFundAndBalance(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("100")))

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("100")))
	assert.True(t, bal.Locked.IsZero())
}

func TestBalanceAutoInitializesMissingAccount(t *testing.T) {
	l := New()
	bal := l.Balance("ghost")
	assert.True(t, bal.Available.IsZero())
	assert.True(t, bal.Locked.IsZero())
}

func TestLockMovesAvailableToLocked(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("100")))
	require.NoError(t, l.Lock("T1", d("40")))

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("60")))
	assert.True(t, bal.Locked.Equal(d("40")))
}

func TestLockFailsWhenAvailableInsufficient(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("10")))
	err := l.Lock("T1", d("40"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("10")))
	assert.True(t, bal.Locked.IsZero())
}

func TestDebitFailsWhenFieldInsufficient(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("10")))
	err := l.Debit("T1", d("20"), Available)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestReleaseMovesLockedBackToAvailable(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("100")))
	require.NoError(t, l.Lock("T1", d("100")))

	l.Release("T1", d("30"), "test release")

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("30")))
	assert.True(t, bal.Locked.Equal(d("70")))
}

func TestReleaseShortfallClampsToLocked(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("100")))
	require.NoError(t, l.Lock("T1", d("20")))

	// Requesting more than is actually locked should release only what's
	// there rather than erroring or going negative.
	l.Release("T1", d("999"), "overrelease")

	bal := l.Balance("T1")
	assert.True(t, bal.Locked.IsZero())
	assert.True(t, bal.Available.Equal(d("100")))
}

func TestTransferMovesBetweenTraders(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("100")))

	require.NoError(t, l.Transfer("T1", "T2", d("40"), Available, Available))

	assert.True(t, l.Balance("T1").Available.Equal(d("60")))
	assert.True(t, l.Balance("T2").Available.Equal(d("40")))
}

func TestTransferFailsLeavesBothUnchanged(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("10")))

	err := l.Transfer("T1", "T2", d("40"), Available, Available)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.True(t, l.Balance("T1").Available.Equal(d("10")))
	assert.True(t, l.Balance("T2").Available.IsZero())
}

func TestSnapshotReturnsEveryAccount(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("10")))
	require.NoError(t, l.Fund("T2", d("20")))

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap["T1"].Available.Equal(d("10")))
	assert.True(t, snap["T2"].Available.Equal(d("20")))
}

func TestResetClearsEveryAccount(t *testing.T) {
	l := New()
	require.NoError(t, l.Fund("T1", d("10")))

	l.Reset()

	assert.Empty(t, l.Snapshot())
	assert.True(t, l.Balance("T1").Available.IsZero())
}

func TestNonPositiveAmountRejected(t *testing.T) {
	l := New()
	assert.ErrorIs(t, l.Credit("T1", d("-1"), Available), ErrNonPositiveAmount)
	assert.ErrorIs(t, l.Debit("T1", d("-1"), Available), ErrNonPositiveAmount)
	assert.ErrorIs(t, l.Lock("T1", d("-1")), ErrNonPositiveAmount)
}

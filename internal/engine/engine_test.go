package engine

import (
	"testing"

	"freightex/internal/book"
	"freightex/internal/common"
	"freightex/internal/contract"
	"freightex/internal/ledger"
	"freightex/internal/settlement"
	"freightex/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const platform = "Platform"

func newTestEngine() (*Engine, *ledger.Ledger, *book.Manager) {
	l := ledger.New()
	books := book.NewManager()
	st := store.New()
	registry := contract.NewRegistry(l)
	settle := settlement.New(l, registry, platform)
	return New(books, st, l, settle, registry), l, books
}

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

// Scenario 1: empty ask, bid rests.
func TestSubmit_EmptyAsk_BidRests(t *testing.T) {
	e, l, books := newTestEngine()
	require.NoError(t, l.Fund("T1", d("1000")))

	matches, err := e.Submit(common.Bid, "L1_C1", d("100"), 1, "T1", common.LegFreight, nil, "L1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	bids, asks := books.Get("L1_C1").Snapshot()
	require.Len(t, bids, 1)
	assert.Empty(t, asks)
	assert.Equal(t, uint64(1), bids[0].Qty)
	assert.True(t, bids[0].Price.Equal(d("100")))

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("900")), "got %s", bal.Available)
	assert.True(t, bal.Locked.Equal(d("100")), "got %s", bal.Locked)
}

// Scenario 2: immediate cross with price improvement.
func TestSubmit_ImmediateCross_PriceImprovement(t *testing.T) {
	e, l, _ := newTestEngine()
	require.NoError(t, l.Fund("T1", d("1000")))

	_, err := e.Submit(common.Ask, "L1_C1", d("80"), 1, "T2", common.LegFreight, nil, "L1")
	require.NoError(t, err)

	contractID := "C1"
	matches, err := e.Submit(common.Bid, "L1_C1", d("100"), 1, "T1", common.LegFreight, &contractID, "L1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Price.Equal(d("80")))

	bal := l.Balance("T1")
	assert.True(t, bal.Available.Equal(d("920")), "got %s", bal.Available)
	// The 80 matched stays locked behind the pending freight hold.
	assert.True(t, bal.Locked.Equal(d("80")), "got %s", bal.Locked)

	// Freight hold pending, not yet paid out to T2.
	balT2 := l.Balance("T2")
	assert.True(t, balT2.Available.IsZero())
}

// Scenario 3: partial fill against single resting order, multiple qty.
func TestSubmit_PartialFill(t *testing.T) {
	e, l, books := newTestEngine()
	require.NoError(t, l.Fund("T1", d("300")))

	_, err := e.Submit(common.Ask, "L1_C1", d("10"), 50, "T2", common.LegFreight, nil, "L1")
	require.NoError(t, err)

	matches, err := e.Submit(common.Bid, "L1_C1", d("10"), 30, "T1", common.LegFreight, nil, "L1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(30), matches[0].Qty)

	_, asks := books.Get("L1_C1").Snapshot()
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(20), asks[0].Qty)
}

// Scenario 4: contract ownership transfer with price improvement.
func TestSubmit_OwnershipTransfer(t *testing.T) {
	e, l, _ := newTestEngine()
	require.NoError(t, l.Fund("WealthyCorp", d("2000")))

	_, err := e.Submit(common.Ask, "contract:C1", d("1450"), 1, "ShipperA", common.ContractOwnership, strPtr("C1"), "")
	require.NoError(t, err)

	matches, err := e.Submit(common.Bid, "contract:C1", d("1500"), 1, "WealthyCorp", common.ContractOwnership, strPtr("C1"), "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Price.Equal(d("1450")))

	shipperBal := l.Balance("ShipperA")
	assert.True(t, shipperBal.Available.Equal(d("1435.5")), "got %s", shipperBal.Available)

	platformBal := l.Balance(platform)
	assert.True(t, platformBal.Available.Equal(d("14.5")), "got %s", platformBal.Available)

	wealthyBal := l.Balance("WealthyCorp")
	assert.True(t, wealthyBal.Locked.IsZero())
	assert.True(t, wealthyBal.Available.Equal(d("550")), "got %s", wealthyBal.Available)
}

func TestSubmit_RejectsBadOrder(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.Submit(common.Bid, "L1_C1", d("0"), 1, "T1", common.LegFreight, nil, "L1")
	assert.ErrorIs(t, err, ErrBadOrder)

	_, err = e.Submit(common.Bid, "L1_C1", d("10"), 0, "T1", common.LegFreight, nil, "L1")
	assert.ErrorIs(t, err, ErrBadOrder)
}

func TestSubmit_RejectsInsufficientFunds(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.Submit(common.Bid, "L1_C1", d("100"), 1, "Broke", common.LegFreight, nil, "L1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSubmit_NeverCrossesBook(t *testing.T) {
	e, l, books := newTestEngine()
	require.NoError(t, l.Fund("T1", d("1000")))
	require.NoError(t, l.Fund("T2", d("1000")))

	_, err := e.Submit(common.Ask, "L1_C1", d("90"), 5, "T2", common.LegFreight, nil, "L1")
	require.NoError(t, err)
	_, err = e.Submit(common.Bid, "L1_C1", d("80"), 5, "T1", common.LegFreight, nil, "L1")
	require.NoError(t, err)

	assert.True(t, books.Get("L1_C1").BestBidBelowAsk())
}

func strPtr(s string) *string { return &s }

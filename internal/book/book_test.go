package book

import (
	"testing"

	"freightex/internal/common"
	"freightex/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id string, side common.Side, price float64, qty uint64) *store.Order {
	return &store.Order{
		ID:       id,
		BookID:   "L1_C1",
		Trader:   "trader-" + id,
		Side:     side,
		Price:    decimal.NewFromFloat(price),
		Qty:      qty,
		TotalQty: qty,
	}
}

func TestInsertAndPeek(t *testing.T) {
	bk := New("L1_C1")

	bk.Insert(testOrder("b1", common.Bid, 10, 5))
	bk.Insert(testOrder("b2", common.Bid, 12, 3))
	bk.Insert(testOrder("a1", common.Ask, 15, 4))

	best, ok := bk.Peek(common.Bid)
	require.True(t, ok)
	assert.Equal(t, "b2", best.ID, "highest bid price should be best")

	bestAsk, ok := bk.Peek(common.Ask)
	require.True(t, ok)
	assert.Equal(t, "a1", bestAsk.ID)
}

func TestInsertSamePriceFIFO(t *testing.T) {
	bk := New("L1_C1")
	bk.Insert(testOrder("b1", common.Bid, 10, 5))
	bk.Insert(testOrder("b2", common.Bid, 10, 5))

	best, ok := bk.Peek(common.Bid)
	require.True(t, ok)
	assert.Equal(t, "b1", best.ID, "earliest arrival at equal price wins priority")
}

func TestRemoveEmptiesLevel(t *testing.T) {
	bk := New("L1_C1")
	bk.Insert(testOrder("b1", common.Bid, 10, 5))

	bk.Remove("b1")

	_, ok := bk.Peek(common.Bid)
	assert.False(t, ok, "book should be empty after removing its only order")

	bids, asks := bk.Snapshot()
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestRemoveKeepsOtherOrdersAtLevel(t *testing.T) {
	bk := New("L1_C1")
	bk.Insert(testOrder("b1", common.Bid, 10, 5))
	bk.Insert(testOrder("b2", common.Bid, 10, 3))

	bk.Remove("b1")

	best, ok := bk.Peek(common.Bid)
	require.True(t, ok)
	assert.Equal(t, "b2", best.ID)
}

func TestBestBidBelowAsk(t *testing.T) {
	bk := New("L1_C1")
	assert.True(t, bk.BestBidBelowAsk(), "empty book is never crossed")

	bk.Insert(testOrder("b1", common.Bid, 10, 5))
	bk.Insert(testOrder("a1", common.Ask, 15, 5))
	assert.True(t, bk.BestBidBelowAsk())
}

func TestSnapshotOrdering(t *testing.T) {
	bk := New("L1_C1")
	bk.Insert(testOrder("b1", common.Bid, 10, 5))
	bk.Insert(testOrder("b2", common.Bid, 12, 3))
	bk.Insert(testOrder("a1", common.Ask, 20, 1))
	bk.Insert(testOrder("a2", common.Ask, 15, 2))

	bids, asks := bk.Snapshot()
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)

	assert.True(t, bids[0].Price.GreaterThan(bids[1].Price), "bids must descend")
	assert.True(t, asks[0].Price.LessThan(asks[1].Price), "asks must ascend")
}

func TestManagerLazyCreateAndReset(t *testing.T) {
	m := NewManager()
	bk := m.Get("L1_C1")
	bk.Insert(testOrder("b1", common.Bid, 10, 5))

	same := m.Get("L1_C1")
	assert.Same(t, bk, same, "Get must return the same book instance for a repeated id")
	assert.Contains(t, m.IDs(), "L1_C1")

	m.Reset()
	assert.Empty(t, m.IDs())
}

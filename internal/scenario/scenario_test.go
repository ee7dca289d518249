package scenario

import (
	"testing"

	"freightex/internal/book"
	"freightex/internal/contract"
	"freightex/internal/engine"
	"freightex/internal/ledger"
	"freightex/internal/settlement"
	"freightex/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

func newTestBuilder() *Builder {
	l := ledger.New()
	books := book.NewManager()
	st := store.New()
	registry := contract.NewRegistry(l)
	settle := settlement.New(l, registry, Platform)
	eng := engine.New(books, st, l, settle, registry)
	return &Builder{Engine: eng, Books: books, Registry: registry, Ledger: l, Settle: settle}
}

// TestDefaultTimelineRunsEndToEnd drives every scripted action directly
// (bypassing the scheduler's real-time pacing) to exercise the full
// scenario from contract creation through DELIVERED_FINAL.
func TestDefaultTimelineRunsEndToEnd(t *testing.T) {
	b := newTestBuilder()
	timeline := b.Default()
	require.NotEmpty(t, timeline)

	for i, entry := range timeline {
		require.NoErrorf(t, entry.Action(), "timeline entry %d at sim time %v failed", i, entry.SimTimeS)
	}

	c, ok := b.Registry.Get(ContractID)
	require.True(t, ok)
	assert.Equal(t, contract.DeliveredFinal, c.Status)
	assert.Equal(t, WealthyCorp, c.CurrentOwner)

	for _, leg := range c.Legs {
		assert.Equal(t, contract.Settled, leg.Status, "leg %s should be settled", leg.ID)
	}
}

func TestOwnershipBiddingWarRefundsPriceImprovement(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.fundActors())
	require.NoError(t, b.createContract())

	require.NoError(t, b.postOwnershipAsk())
	require.NoError(t, b.ownershipBid(CheapLtd, mustDecimal("1000"))())
	require.NoError(t, b.ownershipBid(FastPLC, mustDecimal("1200"))())
	require.NoError(t, b.ownershipBid(WealthyCorp, mustDecimal("1500"))())

	c, ok := b.Registry.Get(ContractID)
	require.True(t, ok)
	assert.Equal(t, WealthyCorp, c.CurrentOwner)

	bal := b.Ledger.Balance(ShipperA)
	assert.True(t, bal.Available.GreaterThanOrEqual(mustDecimal("1435")), "shipper should be credited payout, got %s", bal.Available)

	// WealthyCorp bid 1500 but cleared at ShipperA's 1450 ask: the 50
	// difference is refunded from locked to available.
	wealthy := b.Ledger.Balance(WealthyCorp)
	assert.True(t, wealthy.Locked.IsZero(), "got locked %s", wealthy.Locked)
	assert.True(t, wealthy.Available.Equal(mustDecimal("550")), "got available %s", wealthy.Available)
}
